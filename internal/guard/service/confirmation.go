package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store"
	"github.com/cs2central/steam-authenticator-linux/pkg/guardcode"
	"github.com/cs2central/steam-authenticator-linux/pkg/slogx"
	"github.com/cs2central/steam-authenticator-linux/pkg/steamweb"
)

// Outcome reports what happened to one confirmation in a batch. Err is nil
// on success.
type Outcome struct {
	Confirmation domain.Confirmation
	Err          error
}

// ConfirmationEngine lists and resolves pending mobile confirmations. Every
// request carries a fresh identity-secret signature over the Steam-adjusted
// timestamp.
type ConfirmationEngine struct {
	Store    store.Store
	Client   *steamweb.Client
	Sessions *SessionManager
	Clock    *ClockSync

	// Limiter paces batch resolution. Nil means a conservative default.
	Limiter *rate.Limiter
}

func (e *ConfirmationEngine) limiter() *rate.Limiter {
	if e.Limiter != nil {
		return e.Limiter
	}
	return rate.NewLimiter(rate.Limit(2), 1)
}

// signedQuery builds the p/a/k/t parameters for one mobileconf request.
func (e *ConfirmationEngine) signedQuery(ctx context.Context, acct *domain.Account, tag string) (steamweb.ConfirmationQuery, error) {
	if !acct.HasSecrets() {
		return steamweb.ConfirmationQuery{}, ErrNoSecrets
	}
	now := e.Clock.Now(ctx)
	return steamweb.ConfirmationQuery{
		DeviceID: acct.DeviceID,
		SteamID:  acct.SteamID,
		Time:     now.Unix(),
		Hash:     guardcode.ConfirmationHash(acct.IdentitySecret, tag, now),
		Tag:      tag,
	}, nil
}

// List fetches the pending confirmations for an account. An empty list is a
// successful outcome, not an error.
func (e *ConfirmationEngine) List(ctx context.Context, accountName string) ([]domain.Confirmation, error) {
	acct, err := e.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("loading account %q: %w", accountName, err)
	}

	var confs []steamweb.Confirmation
	err = e.Sessions.Do(ctx, accountName, func(ctx context.Context, cred steamweb.SessionCredentials) error {
		q, err := e.signedQuery(ctx, acct, guardcode.TagList)
		if err != nil {
			return err
		}
		confs, err = e.Client.GetConfirmations(ctx, cred, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Confirmation, len(confs))
	for i, c := range confs {
		out[i] = domain.Confirmation{
			ID:       c.ID,
			Nonce:    c.Nonce,
			Type:     domain.ConfirmationType(c.Type),
			TypeName: c.TypeName,
			Creator:  c.Creator,
			Headline: c.Headline,
			Summary:  c.Summary,
		}
	}
	return out, nil
}

// Resolve accepts or denies a single confirmation.
func (e *ConfirmationEngine) Resolve(ctx context.Context, accountName string, conf domain.Confirmation, accept bool) error {
	acct, err := e.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return fmt.Errorf("loading account %q: %w", accountName, err)
	}

	tag := guardcode.TagFor(accept)
	return e.Sessions.Do(ctx, accountName, func(ctx context.Context, cred steamweb.SessionCredentials) error {
		q, err := e.signedQuery(ctx, acct, tag)
		if err != nil {
			return err
		}
		return e.Client.RespondConfirmation(ctx, cred, q, tag, conf.ID, conf.Nonce)
	})
}

// ResolveAll acts on every confirmation in order, one rate-limited request
// each. A failed item never aborts the batch; the returned outcomes line up
// with the input, one per confirmation. Cancellation stops issuing new
// requests and marks the untouched remainder with the context error.
func (e *ConfirmationEngine) ResolveAll(ctx context.Context, accountName string, confs []domain.Confirmation, accept bool) []Outcome {
	outcomes := make([]Outcome, len(confs))
	limiter := e.limiter()
	log := slogx.FromContext(ctx)

	for i, conf := range confs {
		outcomes[i].Confirmation = conf

		if err := limiter.Wait(ctx); err != nil {
			for j := i; j < len(confs); j++ {
				outcomes[j].Confirmation = confs[j]
				outcomes[j].Err = err
			}
			return outcomes
		}

		if err := e.Resolve(ctx, accountName, conf, accept); err != nil {
			outcomes[i].Err = err
			log.Warn("confirmation failed",
				slog.String("account", accountName),
				slog.String("confirmation_id", conf.ID),
				slog.Any("error", err))
		}
	}
	return outcomes
}

// ResolveBatch acts on many confirmations with a single multiajaxop call.
// Steam treats the batch as one operation, so there is no per-item outcome;
// callers that need partial results use ResolveAll.
func (e *ConfirmationEngine) ResolveBatch(ctx context.Context, accountName string, confs []domain.Confirmation, accept bool) error {
	if len(confs) == 0 {
		return nil
	}
	acct, err := e.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return fmt.Errorf("loading account %q: %w", accountName, err)
	}

	ids := make([]string, len(confs))
	keys := make([]string, len(confs))
	for i, c := range confs {
		ids[i] = c.ID
		keys[i] = c.Nonce
	}

	tag := guardcode.TagFor(accept)
	return e.Sessions.Do(ctx, accountName, func(ctx context.Context, cred steamweb.SessionCredentials) error {
		q, err := e.signedQuery(ctx, acct, tag)
		if err != nil {
			return err
		}
		return e.Client.RespondConfirmations(ctx, cred, q, tag, ids, keys)
	})
}
