package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store"
	"github.com/cs2central/steam-authenticator-linux/pkg/guardcode"
	"github.com/cs2central/steam-authenticator-linux/pkg/slogx"
	"github.com/cs2central/steam-authenticator-linux/pkg/steamweb"
)

const (
	defaultDeviceName = "Steam Authenticator (Linux)"

	// loginPollLimit caps how long we poll a login session for tokens.
	loginPollLimit = 12
)

// SessionManager owns login, refresh and authenticated request execution.
// All session mutation for one account is serialized behind a per-account
// lock; concurrent refreshes collapse into a single network call because
// later holders of the lock see the already-fresh token and return it.
type SessionManager struct {
	Store      store.Store
	Client     *steamweb.Client
	Clock      *ClockSync
	DeviceName string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (m *SessionManager) lockFor(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[string]*sync.Mutex)
	}
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// Login runs the credentials flow end to end: fetch the RSA key, encrypt
// the password, open an auth session, answer the guard challenge with a
// generated code when the account has secrets, then poll for tokens. On
// success the fresh session is stored; on failure or cancellation the
// stored account is left untouched.
func (m *SessionManager) Login(ctx context.Context, accountName, password string) error {
	lock := m.lockFor(accountName)
	lock.Lock()
	defer lock.Unlock()

	acct, err := m.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return fmt.Errorf("loading account %q: %w", accountName, err)
	}
	log := slogx.FromContext(ctx)

	key, err := m.Client.GetPasswordRSAPublicKey(ctx, accountName)
	if err != nil {
		return translate(err)
	}
	encrypted, err := steamweb.EncryptPassword(password, key)
	if err != nil {
		return err
	}

	deviceName := m.DeviceName
	if deviceName == "" {
		deviceName = defaultDeviceName
	}
	sess, err := m.Client.BeginAuthSession(ctx, accountName, encrypted, key.Timestamp, deviceName)
	if err != nil {
		return translate(err)
	}

	if acct.HasSecrets() {
		code := guardcode.Code(acct.SharedSecret, m.Clock.Now(ctx))
		if err := m.Client.SubmitGuardCode(ctx, sess, code, steamweb.GuardCodeTypeDevice); err != nil {
			return translate(err)
		}
	}

	pair, err := m.pollForTokens(ctx, sess)
	if err != nil {
		return err
	}

	steamID := sess.SteamID
	if steamID == "" {
		steamID = acct.SteamID
	}
	acct.Session = &domain.Session{
		SteamID:      steamID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IssuedAt:     time.Now().UTC(),
	}
	if acct.SteamID == "" {
		acct.SteamID = steamID
	}
	if err := m.Store.Accounts().Put(ctx, acct); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	log.Info("logged in", slog.String("account", accountName))
	return nil
}

func (m *SessionManager) pollForTokens(ctx context.Context, sess steamweb.AuthSession) (steamweb.TokenPair, error) {
	interval := time.Duration(sess.Interval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	for attempt := 0; attempt < loginPollLimit; attempt++ {
		pair, pending, err := m.Client.PollAuthSession(ctx, sess)
		if err != nil {
			return steamweb.TokenPair{}, translate(err)
		}
		if !pending {
			return pair, nil
		}

		select {
		case <-ctx.Done():
			return steamweb.TokenPair{}, ctx.Err()
		case <-time.After(interval):
		}
	}
	return steamweb.TokenPair{}, fmt.Errorf("%w: login never produced tokens", ErrAuthRejected)
}

// Refresh ensures the account holds a usable access token, minting a new
// one from the refresh token when needed. Callers that race on the same
// account serialize on the per-account lock; whoever arrives after the
// winner sees a fresh token and returns without a network call.
func (m *SessionManager) Refresh(ctx context.Context, accountName string) (*domain.Session, error) {
	lock := m.lockFor(accountName)
	lock.Lock()
	defer lock.Unlock()
	return m.refreshLocked(ctx, accountName, "")
}

// refreshLocked must run under the account's lock. A non-empty rejectedToken
// marks a forced refresh after an unauthorized call; if the stored token no
// longer matches it, another caller already rotated the session and the
// stored one is returned as-is.
func (m *SessionManager) refreshLocked(ctx context.Context, accountName, rejectedToken string) (*domain.Session, error) {
	acct, err := m.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("loading account %q: %w", accountName, err)
	}
	if acct.Session == nil || acct.Session.RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}

	now := time.Now()
	if rejectedToken == "" {
		if !acct.Session.AccessExpired(now) {
			return acct.Session, nil
		}
	} else if acct.Session.AccessToken != rejectedToken {
		return acct.Session, nil
	}
	if acct.Session.RefreshExpired(now) {
		return nil, m.expireLocked(ctx, acct)
	}

	pair, err := m.Client.RefreshAccessToken(ctx, acct.Session.RefreshToken, acct.Session.SteamID)
	if err != nil {
		if errors.Is(err, steamweb.ErrNeedAuth) {
			return nil, m.expireLocked(ctx, acct)
		}
		return nil, translate(err)
	}

	sess := &domain.Session{
		SteamID:      acct.Session.SteamID,
		AccessToken:  pair.AccessToken,
		RefreshToken: acct.Session.RefreshToken,
		IssuedAt:     time.Now().UTC(),
	}
	if pair.RefreshToken != "" {
		sess.RefreshToken = pair.RefreshToken
	}
	acct.Session = sess
	if err := m.Store.Accounts().Put(ctx, acct); err != nil {
		return nil, fmt.Errorf("storing refreshed session: %w", err)
	}

	slogx.FromContext(ctx).Debug("access token refreshed",
		slog.String("account", accountName))
	return sess, nil
}

// expireLocked clears the dead session and reports ErrSessionExpired.
func (m *SessionManager) expireLocked(ctx context.Context, acct *domain.Account) error {
	acct.Session = nil
	if err := m.Store.Accounts().Put(ctx, acct); err != nil {
		slogx.FromContext(ctx).Warn("failed to clear expired session",
			slog.String("account", acct.AccountName), slog.Any("error", err))
	}
	return ErrSessionExpired
}

// Logout drops the stored session without contacting Steam.
func (m *SessionManager) Logout(ctx context.Context, accountName string) error {
	lock := m.lockFor(accountName)
	lock.Lock()
	defer lock.Unlock()

	acct, err := m.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return fmt.Errorf("loading account %q: %w", accountName, err)
	}
	acct.Session = nil
	return m.Store.Accounts().Put(ctx, acct)
}

// Do runs fn with valid session credentials. If fn comes back unauthorized
// it forces exactly one refresh and retries; a second rejection expires the
// session and reports ErrSessionExpired. Concurrent rejections collapse:
// only the caller whose token is still the stored one rotates it, the rest
// retry with the winner's fresh token.
func (m *SessionManager) Do(ctx context.Context, accountName string, fn func(ctx context.Context, cred steamweb.SessionCredentials) error) error {
	sess, err := m.Refresh(ctx, accountName)
	if err != nil {
		return err
	}

	err = fn(ctx, credentials(sess))
	if err == nil || !errors.Is(err, steamweb.ErrNeedAuth) {
		return translate(err)
	}

	lock := m.lockFor(accountName)
	lock.Lock()
	sess, rerr := m.refreshLocked(ctx, accountName, sess.AccessToken)
	lock.Unlock()
	if rerr != nil {
		return rerr
	}

	err = fn(ctx, credentials(sess))
	if errors.Is(err, steamweb.ErrNeedAuth) {
		lock.Lock()
		defer lock.Unlock()
		if acct, gerr := m.Store.Accounts().Get(ctx, accountName); gerr == nil {
			return m.expireLocked(ctx, acct)
		}
		return ErrSessionExpired
	}
	return translate(err)
}

func credentials(sess *domain.Session) steamweb.SessionCredentials {
	return steamweb.SessionCredentials{
		SteamID:     sess.SteamID,
		AccessToken: sess.AccessToken,
	}
}
