package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pquerna/otp"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store"
	"github.com/cs2central/steam-authenticator-linux/pkg/guardcode"
	"github.com/cs2central/steam-authenticator-linux/pkg/slogx"
	"github.com/cs2central/steam-authenticator-linux/pkg/steamweb"
)

var (
	// ErrAuthenticatorPresent means the account already has an
	// authenticator; it must be removed before a new one can be linked.
	ErrAuthenticatorPresent = errors.New("service: authenticator already present")

	// ErrPhoneNeeded means Steam requires a verified phone number first.
	ErrPhoneNeeded = errors.New("service: account needs a verified phone number")

	// ErrEmailConfirmationNeeded means Steam sent a confirmation email that
	// must be clicked before linking can continue.
	ErrEmailConfirmationNeeded = errors.New("service: confirm the email Steam just sent, then retry")

	// ErrBadActivationCode means the SMS or email activation code was wrong.
	ErrBadActivationCode = errors.New("service: wrong activation code")
)

// finalizeAttempts caps the want_more loop. Steam normally asks for two or
// three consecutive codes; the original desktop clients allow up to 30.
const finalizeAttempts = 30

// Linker attaches and detaches mobile authenticators. Linking is two-phase:
// Link stores the freshly issued secrets immediately, before the activation
// code round, because a lost revocation code locks the user out of the
// account.
type Linker struct {
	Store    store.Store
	Client   *steamweb.Client
	Sessions *SessionManager
	Clock    *ClockSync
}

// Link requests a new authenticator for a logged-in account. The returned
// account is already persisted with its secrets and revocation code and
// waits for FinalizeLink with the activation code.
func (l *Linker) Link(ctx context.Context, accountName string) (*domain.Account, error) {
	acct, err := l.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("loading account %q: %w", accountName, err)
	}
	if acct.HasSecrets() {
		return nil, ErrAuthenticatorPresent
	}

	var link steamweb.AuthenticatorLink
	err = l.Sessions.Do(ctx, accountName, func(ctx context.Context, cred steamweb.SessionCredentials) error {
		deviceID := acct.DeviceID
		if deviceID == "" {
			deviceID = domain.DeviceIDFor(cred.SteamID)
		}
		link, err = l.Client.AddAuthenticator(ctx, cred.AccessToken, cred.SteamID, deviceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch link.Status {
	case steamweb.LinkStatusOK:
	case steamweb.LinkStatusAuthenticatorPresent:
		return nil, ErrAuthenticatorPresent
	case steamweb.LinkStatusMustProvidePhone:
		return nil, ErrPhoneNeeded
	case steamweb.LinkStatusMustConfirmEmail:
		return nil, ErrEmailConfirmationNeeded
	default:
		return nil, fmt.Errorf("service: authenticator link failed with status %d", link.Status)
	}

	if link.URI != "" {
		if _, err := otp.NewKeyFromURL(link.URI); err != nil {
			return nil, fmt.Errorf("service: malformed enrollment uri: %w", err)
		}
	}

	session := acct.Session
	updated, err := domain.NewAccount(acct.AccountName, acct.SteamID,
		link.SharedSecret, link.IdentitySecret, acct.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("service: steam returned malformed secrets: %w", err)
	}
	updated.Session = session
	updated.RevocationCode = link.RevocationCode
	updated.SerialNumber = link.SerialNumber
	updated.URI = link.URI
	updated.TokenGID = link.TokenGID
	updated.CreatedAt = acct.CreatedAt

	if err := l.Store.Accounts().Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("storing pending authenticator: %w", err)
	}

	slogx.FromContext(ctx).Info("authenticator issued, awaiting activation code",
		slog.String("account", accountName),
		slog.Int("confirm_type", link.ConfirmType))
	return updated, nil
}

// FinalizeLink activates a pending authenticator with the SMS or email
// code. Steam may demand codes from several consecutive windows before it
// accepts; each retry regenerates the guard code at the server-provided
// time.
func (l *Linker) FinalizeLink(ctx context.Context, accountName, activationCode string) error {
	acct, err := l.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return fmt.Errorf("loading account %q: %w", accountName, err)
	}
	if !acct.HasSecrets() {
		return ErrNoSecrets
	}

	serverTime := l.Clock.Now(ctx).Unix()
	return l.Sessions.Do(ctx, accountName, func(ctx context.Context, cred steamweb.SessionCredentials) error {
		for attempt := 0; attempt < finalizeAttempts; attempt++ {
			code := guardcode.Code(acct.SharedSecret, time.Unix(serverTime, 0))
			res, err := l.Client.FinalizeAddAuthenticator(ctx,
				cred.AccessToken, cred.SteamID, activationCode, code, uint64(serverTime))
			if err != nil {
				return err
			}

			switch {
			case res.Status == steamweb.LinkStatusBadActivationCode:
				return ErrBadActivationCode
			case res.Status != steamweb.LinkStatusOK && res.Status != 0:
				return fmt.Errorf("service: finalize failed with status %d", res.Status)
			case res.Success:
				slogx.FromContext(ctx).Info("authenticator activated",
					slog.String("account", accountName))
				return nil
			case res.WantMore:
				if next, err := strconv.ParseInt(res.ServerTime, 10, 64); err == nil && next > 0 {
					serverTime = next
				} else {
					serverTime += guardcode.Period
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(500 * time.Millisecond):
				}
			default:
				return fmt.Errorf("service: finalize stalled with status %d", res.Status)
			}
		}
		return fmt.Errorf("%w: too many finalize attempts", ErrAuthRejected)
	})
}

// Unlink removes the authenticator using the stored revocation code and
// strips the secrets from the vault. The account record itself stays.
func (l *Linker) Unlink(ctx context.Context, accountName string) error {
	acct, err := l.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return fmt.Errorf("loading account %q: %w", accountName, err)
	}
	if acct.RevocationCode == "" {
		return fmt.Errorf("service: account %q has no revocation code", accountName)
	}

	err = l.Sessions.Do(ctx, accountName, func(ctx context.Context, cred steamweb.SessionCredentials) error {
		ok, err := l.Client.RemoveAuthenticator(ctx, cred.AccessToken, acct.RevocationCode)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("service: steam refused to remove the authenticator")
		}
		return nil
	})
	if err != nil {
		return err
	}

	acct.SharedSecret = nil
	acct.IdentitySecret = nil
	acct.RevocationCode = ""
	acct.SerialNumber = ""
	acct.URI = ""
	acct.TokenGID = ""
	if err := l.Store.Accounts().Put(ctx, acct); err != nil {
		return fmt.Errorf("storing unlinked account: %w", err)
	}

	slogx.FromContext(ctx).Info("authenticator removed",
		slog.String("account", accountName))
	return nil
}
