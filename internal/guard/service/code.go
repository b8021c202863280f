package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/store"
	"github.com/cs2central/steam-authenticator-linux/pkg/guardcode"
)

// GuardCode is one generated login code plus how long it stays valid.
type GuardCode struct {
	Code      string
	ExpiresIn time.Duration
	Account   string
}

// CodeService turns stored shared secrets into login codes using the
// Steam-adjusted clock.
type CodeService struct {
	Store store.Store
	Clock *ClockSync
}

// Code generates the current guard code for a stored account.
func (s *CodeService) Code(ctx context.Context, accountName string) (GuardCode, error) {
	acct, err := s.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return GuardCode{}, fmt.Errorf("loading account %q: %w", accountName, err)
	}
	if !acct.HasSecrets() {
		return GuardCode{}, ErrNoSecrets
	}

	now := s.Clock.Now(ctx)
	return GuardCode{
		Code:      guardcode.Code(acct.SharedSecret, now),
		ExpiresIn: time.Duration(guardcode.SecondsRemaining(now)) * time.Second,
		Account:   acct.AccountName,
	}, nil
}
