package domain_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/stretchr/testify/require"
)

func b64Secret(fill byte) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{fill}, domain.SecretSize))
}

func TestNewAccount(t *testing.T) {
	t.Parallel()

	t.Run("valid account", func(t *testing.T) {
		acct, err := domain.NewAccount("someone", "76561198000000001", b64Secret(1), b64Secret(2), "")
		require.NoError(t, err)
		require.Equal(t, "someone", acct.AccountName)
		require.True(t, acct.HasSecrets())
		require.False(t, acct.LoggedIn())
		require.True(t, strings.HasPrefix(acct.DeviceID, "android:"))
	})

	t.Run("device id derivation is stable", func(t *testing.T) {
		a, err := domain.NewAccount("a", "76561198000000001", b64Secret(1), b64Secret(2), "")
		require.NoError(t, err)
		b, err := domain.NewAccount("b", "76561198000000001", b64Secret(3), b64Secret(4), "")
		require.NoError(t, err)
		require.Equal(t, a.DeviceID, b.DeviceID)

		c, err := domain.NewAccount("c", "76561198000000002", b64Secret(1), b64Secret(2), "")
		require.NoError(t, err)
		require.NotEqual(t, a.DeviceID, c.DeviceID)
	})

	t.Run("explicit device id wins", func(t *testing.T) {
		acct, err := domain.NewAccount("someone", "765", b64Secret(1), b64Secret(2), "android:custom")
		require.NoError(t, err)
		require.Equal(t, "android:custom", acct.DeviceID)
	})

	t.Run("secrets absent together is allowed", func(t *testing.T) {
		acct, err := domain.NewAccount("someone", "765", "", "", "")
		require.NoError(t, err)
		require.False(t, acct.HasSecrets())
	})

	t.Run("every bad field is reported", func(t *testing.T) {
		_, err := domain.NewAccount("", "", "not base64!!", "", "")
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Fields, 4)
		require.Contains(t, err.Error(), "account_name")
		require.Contains(t, err.Error(), "steamid")
		require.Contains(t, err.Error(), "shared_secret")
	})

	t.Run("short secret rejected", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte("tooshort"))
		_, err := domain.NewAccount("someone", "765", short, b64Secret(2), "")
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		require.ErrorIs(t, err, domain.ErrInvalidSecret)
	})

	t.Run("empty name alone is not a secret error", func(t *testing.T) {
		_, err := domain.NewAccount("", "765", b64Secret(1), b64Secret(2), "")
		require.Error(t, err)
		require.NotErrorIs(t, err, domain.ErrInvalidSecret)
	})
}

func TestAccountRedaction(t *testing.T) {
	t.Parallel()

	acct, err := domain.NewAccount("someone", "765", b64Secret(0xAB), b64Secret(0xCD), "")
	require.NoError(t, err)

	require.NotContains(t, acct.String(), acct.SharedSecretB64())

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("account loaded", "account", acct)

	out := buf.String()
	require.NotContains(t, out, acct.SharedSecretB64())
	require.NotContains(t, out, acct.IdentitySecretB64())
	require.Contains(t, out, "someone")
	require.Contains(t, out, "has_secrets")
}

func TestMaFileRoundTrip(t *testing.T) {
	t.Parallel()

	record := domain.MaFile{
		AccountName:    "someone",
		SteamID:        "76561198000000001",
		SharedSecret:   b64Secret(1),
		IdentitySecret: b64Secret(2),
		DeviceID:       "android:dev",
		RevocationCode: "R12345",
		SerialNumber:   "999",
		URI:            "otpauth://totp/Steam:someone?secret=AAAA&issuer=Steam",
		Session: domain.MaFileSession{
			SteamID:      "76561198000000001",
			AccessToken:  "at",
			RefreshToken: "rt",
		},
	}

	acct, err := record.ToAccount()
	require.NoError(t, err)
	require.NotNil(t, acct.Session)
	require.Equal(t, "rt", acct.Session.RefreshToken)
	require.Equal(t, "R12345", acct.RevocationCode)

	back := domain.MaFileFrom(acct)
	require.Equal(t, record, back)

	raw, err := json.Marshal(back)
	require.NoError(t, err)
	var again domain.MaFile
	require.NoError(t, json.Unmarshal(raw, &again))
	require.Equal(t, record, again)
}

func TestMaFileSessionSteamIDFallback(t *testing.T) {
	t.Parallel()

	record := domain.MaFile{
		AccountName:    "someone",
		SteamID:        "765",
		SharedSecret:   b64Secret(1),
		IdentitySecret: b64Secret(2),
		Session:        domain.MaFileSession{AccessToken: "at"},
	}
	acct, err := record.ToAccount()
	require.NoError(t, err)
	require.Equal(t, "765", acct.Session.SteamID)
}

func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(fmt.Sprintf(`{"exp":%d,"sub":"765"}`, exp.Unix())))
	return header + "." + payload + ".c2ln"
}

func TestSessionExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("fresh token", func(t *testing.T) {
		s := &domain.Session{AccessToken: makeJWT(t, now.Add(time.Hour))}
		require.False(t, s.AccessExpired(now))
	})

	t.Run("past exp", func(t *testing.T) {
		s := &domain.Session{AccessToken: makeJWT(t, now.Add(-time.Minute))}
		require.True(t, s.AccessExpired(now))
	})

	t.Run("within the safety buffer counts as expired", func(t *testing.T) {
		s := &domain.Session{AccessToken: makeJWT(t, now.Add(10*time.Second))}
		require.True(t, s.AccessExpired(now))
	})

	t.Run("unparseable token counts as expired", func(t *testing.T) {
		s := &domain.Session{AccessToken: "not-a-jwt", RefreshToken: ""}
		require.True(t, s.AccessExpired(now))
		require.True(t, s.RefreshExpired(now))
	})

	t.Run("TokenExpiry exposes the claim", func(t *testing.T) {
		exp := now.Add(time.Hour).Truncate(time.Second)
		got, ok := domain.TokenExpiry(makeJWT(t, exp))
		require.True(t, ok)
		require.Equal(t, exp.Unix(), got.Unix())
	})
}

func TestConfirmationTypeNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Trade", domain.ConfirmationTrade.String())
	require.Equal(t, "Market Listing", domain.ConfirmationMarketListing.String())
	require.Equal(t, "Account Recovery", domain.ConfirmationAccountRecovery.String())
	require.Equal(t, "Unknown", domain.ConfirmationType(42).String())
}

func TestRandomDeviceID(t *testing.T) {
	t.Parallel()

	a := domain.RandomDeviceID()
	b := domain.RandomDeviceID()
	require.True(t, strings.HasPrefix(a, "android:"))
	require.NotEqual(t, a, b)
}
