package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store"
)

// Store is an in-memory vault for tests and ephemeral runs. Accounts are
// copied on the way in and out so callers cannot mutate stored state.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewStore() *Store {
	return &Store{accounts: make(map[string]*domain.Account)}
}

func (s *Store) Accounts() store.Accounts   { return (*accountsRepo)(s) }
func (s *Store) ApplyMigrations() error     { return nil }
func (s *Store) Close() error               { return nil }
func (s *Store) Ping(context.Context) error { return nil }

type accountsRepo Store

func (r *accountsRepo) Get(_ context.Context, name string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(a), nil
}

func (r *accountsRepo) Put(_ context.Context, a *domain.Account) error {
	fresh, err := store.Validate(a)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.accounts[fresh.AccountName]; ok {
		fresh.CreatedAt = existing.CreatedAt
	} else if fresh.CreatedAt.IsZero() {
		fresh.CreatedAt = now
	}
	fresh.UpdatedAt = now
	r.accounts[fresh.AccountName] = fresh
	return nil
}

func (r *accountsRepo) Remove(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[name]; !ok {
		return store.ErrNotFound
	}
	delete(r.accounts, name)
	return nil
}

func (r *accountsRepo) List(_ context.Context) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountName < out[j].AccountName })
	return out, nil
}

func clone(a *domain.Account) *domain.Account {
	cp := *a
	cp.SharedSecret = append([]byte(nil), a.SharedSecret...)
	cp.IdentitySecret = append([]byte(nil), a.IdentitySecret...)
	if a.Session != nil {
		sess := *a.Session
		cp.Session = &sess
	}
	return &cp
}
