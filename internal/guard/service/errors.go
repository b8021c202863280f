package service

import (
	"errors"
	"fmt"

	"github.com/cs2central/steam-authenticator-linux/pkg/steamweb"
)

var (
	// ErrAuthRejected means Steam refused the credentials or guard code.
	ErrAuthRejected = errors.New("service: authentication rejected")

	// ErrRateLimited means Steam asked us to back off.
	ErrRateLimited = errors.New("service: rate limited")

	// ErrSessionExpired means the stored session can no longer be refreshed
	// and the account needs a full login.
	ErrSessionExpired = errors.New("service: session expired")

	// ErrUnauthorized means a single request was rejected; the session may
	// still be recoverable by refreshing.
	ErrUnauthorized = errors.New("service: unauthorized")

	// ErrRemoteUnavailable means Steam could not be reached at all.
	ErrRemoteUnavailable = errors.New("service: steam unavailable")

	// ErrNoSecrets means the account has no authenticator secrets, so it
	// cannot generate codes or act on confirmations.
	ErrNoSecrets = errors.New("service: account has no authenticator secrets")

	// ErrNotLoggedIn means the account has no stored session at all.
	ErrNotLoggedIn = errors.New("service: not logged in")
)

// translate maps wire-level failures onto the service taxonomy so callers
// never have to import steamweb to branch on outcomes.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, steamweb.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	if errors.Is(err, steamweb.ErrNeedAuth) {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	var steamErr *steamweb.Error
	if errors.As(err, &steamErr) {
		switch {
		case steamErr.AuthRejected():
			return fmt.Errorf("%w: %v", ErrAuthRejected, err)
		case steamErr.RateLimited():
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	return err
}
