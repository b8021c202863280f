package store

import (
	"context"
	"errors"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
)

var ErrNotFound = errors.New("store: not found")

// Accounts is the secret vault. Put is an upsert keyed by account name and
// always revalidates through the domain factory so malformed secrets can
// never land on disk, whichever path they arrived by.
type Accounts interface {
	Get(ctx context.Context, name string) (*domain.Account, error)
	Put(ctx context.Context, a *domain.Account) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]*domain.Account, error)
}

// Store is the root data access interface. Concrete drivers (sqlite, memory)
// implement this.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// Close releases any underlying resources (optional for memory).
	Close() error

	// Ping verifies the backing storage is still alive.
	Ping(ctx context.Context) error
}

// Validate round-trips an account through the domain factory, returning a
// fresh validated copy. Drivers call this on every Put.
func Validate(a *domain.Account) (*domain.Account, error) {
	fresh, err := domain.MaFileFrom(a).ToAccount()
	if err != nil {
		return nil, err
	}
	fresh.CreatedAt = a.CreatedAt
	fresh.UpdatedAt = a.UpdatedAt
	return fresh, nil
}
