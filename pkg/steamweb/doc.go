// Package steamweb is a thin client for the Steam Web API and community
// endpoints the authenticator engine depends on: the two-factor time
// service, the credentials login flow, token refresh, mobile-confirmation
// listing and actions, and authenticator enrollment.
//
// The package only speaks the wire protocol. Signing, clock correction and
// session lifecycle live in the service layer; callers pass in already
// computed timestamps and confirmation hashes. All base URLs are fields on
// Client so tests can point it at local fakes.
package steamweb
