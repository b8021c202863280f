// Package storetest runs the Accounts contract against any driver.
package storetest

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store"
	"github.com/stretchr/testify/require"
)

func secret(fill byte) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{fill}, domain.SecretSize))
}

func account(t *testing.T, name string) *domain.Account {
	t.Helper()
	a, err := domain.NewAccount(name, "76561198000000001", secret(1), secret(2), "")
	require.NoError(t, err)
	return a
}

// Run exercises every Accounts operation against the given store.
func Run(t *testing.T, s store.Store) {
	ctx := context.Background()
	accounts := s.Accounts()

	t.Run("get missing", func(t *testing.T) {
		_, err := accounts.Get(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, accounts.Put(ctx, account(t, "alice")))

		got, err := accounts.Get(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, "alice", got.AccountName)
		require.True(t, got.HasSecrets())
		require.NotEmpty(t, got.DeviceID)
		require.False(t, got.CreatedAt.IsZero())
	})

	t.Run("put is an upsert", func(t *testing.T) {
		a := account(t, "bob")
		require.NoError(t, accounts.Put(ctx, a))

		a.Session = &domain.Session{SteamID: a.SteamID, AccessToken: "at", RefreshToken: "rt"}
		require.NoError(t, accounts.Put(ctx, a))

		got, err := accounts.Get(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, got.Session)
		require.Equal(t, "rt", got.Session.RefreshToken)
	})

	t.Run("put rejects invalid accounts", func(t *testing.T) {
		bad := &domain.Account{AccountName: "mallory", SteamID: "765",
			SharedSecret: []byte("short")}
		err := accounts.Put(ctx, bad)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("list is sorted by name", func(t *testing.T) {
		require.NoError(t, accounts.Put(ctx, account(t, "zed")))

		all, err := accounts.List(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(all), 3)
		for i := 1; i < len(all); i++ {
			require.Less(t, all[i-1].AccountName, all[i].AccountName)
		}
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, accounts.Put(ctx, account(t, "gone")))
		require.NoError(t, accounts.Remove(ctx, "gone"))
		_, err := accounts.Get(ctx, "gone")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.ErrorIs(t, accounts.Remove(ctx, "gone"), store.ErrNotFound)
	})

	t.Run("stored state is isolated from the caller", func(t *testing.T) {
		a := account(t, "carol")
		require.NoError(t, accounts.Put(ctx, a))
		a.SharedSecret[0] ^= 0xFF

		got, err := accounts.Get(ctx, "carol")
		require.NoError(t, err)
		require.NotEqual(t, a.SharedSecret[0], got.SharedSecret[0])
	})
}
