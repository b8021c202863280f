package service_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/service"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store/drivers/memory"
	"github.com/stretchr/testify/require"
)

func newLinker(srv *httptest.Server, vault *memory.Store) *service.Linker {
	client := newClient(srv)
	clock := &service.ClockSync{Client: client}
	return &service.Linker{
		Store:    vault,
		Client:   client,
		Sessions: &service.SessionManager{Store: vault, Client: client, Clock: clock},
		Clock:    clock,
	}
}

// seedUnlinked stores a logged-in account that has no authenticator yet.
func seedUnlinked(t *testing.T, vault *memory.Store, name string) {
	t.Helper()
	acct, err := domain.NewAccount(name, "76561198000000001", "", "", "")
	require.NoError(t, err)
	fresh := time.Now().Add(time.Hour)
	acct.Session = &domain.Session{
		SteamID:      acct.SteamID,
		AccessToken:  makeJWT(t, fresh),
		RefreshToken: makeJWT(t, fresh),
	}
	require.NoError(t, vault.Accounts().Put(context.Background(), acct))
}

func TestLink(t *testing.T) {
	t.Parallel()

	mux := confMux(t)
	mux.HandleFunc("/ITwoFactorService/AddAuthenticator/v1/", func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.URL.Query().Get("access_token"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "1", r.PostForm.Get("authenticator_type"))
		require.NotEmpty(t, r.PostForm.Get("device_identifier"))
		fmt.Fprintf(w, `{"response":{
			"status":1,
			"shared_secret":%q,
			"identity_secret":%q,
			"revocation_code":"R12345",
			"serial_number":"987",
			"uri":"otpauth://totp/Steam:alice?secret=GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ&issuer=Steam",
			"token_gid":"tg1",
			"server_time":"1700000000",
			"confirm_type":1
		}}`, b64Secret(7), b64Secret(8))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	vault := memory.NewStore()
	seedUnlinked(t, vault, "alice")

	acct, err := newLinker(srv, vault).Link(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, acct.HasSecrets())
	require.Equal(t, "R12345", acct.RevocationCode)

	// Secrets must already be persisted before finalization.
	stored, err := vault.Accounts().Get(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, stored.HasSecrets())
	require.Equal(t, "R12345", stored.RevocationCode)
	require.True(t, stored.LoggedIn())
}

func TestLinkStatusErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"already linked", 29, service.ErrAuthenticatorPresent},
		{"phone needed", 2, service.ErrPhoneNeeded},
		{"email confirmation", 84, service.ErrEmailConfirmationNeeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := confMux(t)
			mux.HandleFunc("/ITwoFactorService/AddAuthenticator/v1/", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"response":{"status":%d}}`, tc.status)
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			vault := memory.NewStore()
			seedUnlinked(t, vault, "alice")

			_, err := newLinker(srv, vault).Link(context.Background(), "alice")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLinkRefusesWhenSecretsExist(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(confMux(t))
	defer srv.Close()

	vault := memory.NewStore()
	fresh := time.Now().Add(time.Hour)
	seedAccount(t, vault, "alice", &fresh)

	_, err := newLinker(srv, vault).Link(context.Background(), "alice")
	require.ErrorIs(t, err, service.ErrAuthenticatorPresent)
}

func TestFinalizeLink(t *testing.T) {
	t.Parallel()

	t.Run("retries while steam wants more codes", func(t *testing.T) {
		var attempts atomic.Int32
		mux := confMux(t)
		mux.HandleFunc("/ITwoFactorService/FinalizeAddAuthenticator/v1/", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "12345", r.PostForm.Get("activation_code"))
			require.Len(t, r.PostForm.Get("authenticator_code"), 5)
			if attempts.Add(1) < 3 {
				fmt.Fprintf(w, `{"response":{"status":1,"want_more":true,"server_time":"%d"}}`,
					time.Now().Unix()+30)
				return
			}
			fmt.Fprint(w, `{"response":{"status":1,"success":true}}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		vault := memory.NewStore()
		fresh := time.Now().Add(time.Hour)
		seedAccount(t, vault, "alice", &fresh)

		require.NoError(t, newLinker(srv, vault).FinalizeLink(context.Background(), "alice", "12345"))
		require.Equal(t, int32(3), attempts.Load())
	})

	t.Run("bad activation code", func(t *testing.T) {
		mux := confMux(t)
		mux.HandleFunc("/ITwoFactorService/FinalizeAddAuthenticator/v1/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"response":{"status":89}}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		vault := memory.NewStore()
		fresh := time.Now().Add(time.Hour)
		seedAccount(t, vault, "alice", &fresh)

		err := newLinker(srv, vault).FinalizeLink(context.Background(), "alice", "00000")
		require.ErrorIs(t, err, service.ErrBadActivationCode)
	})
}

func TestUnlink(t *testing.T) {
	t.Parallel()

	mux := confMux(t)
	mux.HandleFunc("/ITwoFactorService/RemoveAuthenticator/v1/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "R12345", r.PostForm.Get("revocation_code"))
		fmt.Fprint(w, `{"response":{"success":true}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	vault := memory.NewStore()
	fresh := time.Now().Add(time.Hour)
	acct := seedAccount(t, vault, "alice", &fresh)
	acct.RevocationCode = "R12345"
	require.NoError(t, vault.Accounts().Put(ctx, acct))

	require.NoError(t, newLinker(srv, vault).Unlink(ctx, "alice"))

	stored, err := vault.Accounts().Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, stored.HasSecrets())
	require.Empty(t, stored.RevocationCode)
}
