package domain

import (
	"encoding/base64"
	"log/slog"
	"time"
)

// SecretSize is the decoded length of Steam Guard shared and identity
// secrets.
const SecretSize = 20

// Account is a linked Steam Guard authenticator for one Steam account.
// SharedSecret drives code generation, IdentitySecret signs confirmation
// requests. Both are present together or absent together; an account
// without secrets can hold a session but cannot generate codes or act on
// confirmations.
//
// Secret bytes never leave this type through String, LogValue or error
// messages.
type Account struct {
	AccountName    string
	SteamID        string
	SharedSecret   []byte
	IdentitySecret []byte
	DeviceID       string
	RevocationCode string
	SerialNumber   string
	URI            string
	TokenGID       string
	Session        *Session
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount builds a validated Account from base64-encoded secrets. Every
// invalid field is reported, not just the first.
func NewAccount(accountName, steamID, sharedSecret, identitySecret, deviceID string) (*Account, error) {
	verr := &ValidationError{}

	if accountName == "" {
		verr.add("account_name", "must not be empty")
	}
	if steamID == "" {
		verr.add("steamid", "must not be empty")
	}

	shared := decodeSecret(verr, "shared_secret", sharedSecret)
	identity := decodeSecret(verr, "identity_secret", identitySecret)
	if (sharedSecret == "") != (identitySecret == "") {
		verr.add("identity_secret", "shared and identity secrets must be set together")
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if deviceID == "" && steamID != "" {
		deviceID = DeviceIDFor(steamID)
	}

	now := time.Now().UTC()
	return &Account{
		AccountName:    accountName,
		SteamID:        steamID,
		SharedSecret:   shared,
		IdentitySecret: identity,
		DeviceID:       deviceID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func decodeSecret(verr *ValidationError, field, encoded string) []byte {
	if encoded == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		verr.add(field, "not valid base64")
		return nil
	}
	if len(raw) != SecretSize {
		verr.add(field, "wrong decoded length")
		return nil
	}
	return raw
}

// HasSecrets reports whether the account can generate codes and sign
// confirmation requests.
func (a *Account) HasSecrets() bool {
	return len(a.SharedSecret) == SecretSize && len(a.IdentitySecret) == SecretSize
}

// LoggedIn reports whether the account currently holds a session. The
// session may still be rejected by Steam; this is a local view only.
func (a *Account) LoggedIn() bool {
	return a.Session != nil && a.Session.AccessToken != ""
}

// SharedSecretB64 returns the shared secret re-encoded for persistence.
func (a *Account) SharedSecretB64() string {
	if len(a.SharedSecret) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(a.SharedSecret)
}

// IdentitySecretB64 returns the identity secret re-encoded for persistence.
func (a *Account) IdentitySecretB64() string {
	if len(a.IdentitySecret) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(a.IdentitySecret)
}

func (a *Account) String() string {
	return "Account(" + a.AccountName + ")"
}

// LogValue keeps secret material out of structured logs.
func (a *Account) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("account", a.AccountName),
		slog.String("steamid", a.SteamID),
		slog.Bool("has_secrets", a.HasSecrets()),
		slog.Bool("logged_in", a.LoggedIn()),
	)
}
