package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryBuffer treats tokens as expired slightly before their real deadline
// so a request signed at the boundary does not race the server clock.
const expiryBuffer = 30 * time.Second

// Session holds the tokens from a completed login. Steam issues both as
// JWTs; the access token authenticates web requests, the refresh token
// mints replacement access tokens without re-entering credentials.
type Session struct {
	SteamID      string
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
}

// AccessExpired reports whether the access token's own exp claim has
// passed. Advisory only: the server is the source of truth, and a token
// that fails to parse is treated as expired so the caller refreshes.
func (s *Session) AccessExpired(now time.Time) bool {
	return tokenExpired(s.AccessToken, now)
}

// RefreshExpired reports whether the refresh token can no longer mint
// access tokens, meaning a full login is required.
func (s *Session) RefreshExpired(now time.Time) bool {
	return tokenExpired(s.RefreshToken, now)
}

func tokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return true
	}
	return !now.Add(expiryBuffer).Before(exp)
}

// TokenExpiry decodes the exp claim from a JWT without verifying its
// signature. We never trust these tokens ourselves, we only hand them back
// to Steam, so the claim is read purely to decide when to refresh.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
