package steamweb

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
)

const authService = "IAuthenticationService"

// Steam Guard code types for UpdateAuthSessionWithSteamGuardCode.
const (
	GuardCodeTypeEmail  = 2
	GuardCodeTypeDevice = 3
)

// RSAKey is the per-account public key Steam hands out for password
// encryption, valid only together with its timestamp.
type RSAKey struct {
	Modulus   string
	Exponent  string
	Timestamp uint64
}

// AuthSession identifies an in-progress credentials login.
type AuthSession struct {
	ClientID  uint64
	RequestID []byte
	SteamID   string
	Interval  int // suggested polling interval in seconds
}

// TokenPair is the result of a completed login or poll.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccountName  string
}

// GetPasswordRSAPublicKey fetches the RSA key to encrypt a password with.
func (c *Client) GetPasswordRSAPublicKey(ctx context.Context, accountName string) (RSAKey, error) {
	var out struct {
		Response struct {
			PublicKeyMod string `json:"publickey_mod"`
			PublicKeyExp string `json:"publickey_exp"`
			Timestamp    string `json:"timestamp"`
		} `json:"response"`
	}

	query := url.Values{"account_name": {accountName}}
	endpoint := c.apiURL(authService, "GetPasswordRSAPublicKey", 1)
	if err := c.do(ctx, "GET", endpoint, query, nil, nil, &out); err != nil {
		return RSAKey{}, err
	}
	if out.Response.PublicKeyMod == "" || out.Response.PublicKeyExp == "" {
		return RSAKey{}, fmt.Errorf("%w: empty rsa key", ErrProtocol)
	}

	ts, _ := strconv.ParseUint(out.Response.Timestamp, 10, 64)
	return RSAKey{
		Modulus:   out.Response.PublicKeyMod,
		Exponent:  out.Response.PublicKeyExp,
		Timestamp: ts,
	}, nil
}

// EncryptPassword encrypts a password with the account's RSA key using
// PKCS#1 v1.5, returning standard base64 as the login endpoint expects.
func EncryptPassword(password string, key RSAKey) (string, error) {
	mod, ok := new(big.Int).SetString(key.Modulus, 16)
	if !ok {
		return "", fmt.Errorf("%w: malformed rsa modulus", ErrProtocol)
	}
	exp, ok := new(big.Int).SetString(key.Exponent, 16)
	if !ok || !exp.IsInt64() {
		return "", fmt.Errorf("%w: malformed rsa exponent", ErrProtocol)
	}

	pub := &rsa.PublicKey{N: mod, E: int(exp.Int64())}
	enc, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(password))
	if err != nil {
		return "", fmt.Errorf("steamweb: password encryption failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(enc), nil
}

// BeginAuthSession starts a credentials login with an encrypted password.
func (c *Client) BeginAuthSession(
	ctx context.Context,
	accountName, encryptedPassword string,
	encryptionTimestamp uint64,
	deviceName string,
) (AuthSession, error) {
	var out struct {
		Response struct {
			ClientID  string `json:"client_id"`
			RequestID string `json:"request_id"` // base64
			SteamID   string `json:"steamid"`
			Interval  int    `json:"interval"`
		} `json:"response"`
	}

	form := url.Values{
		"account_name":         {accountName},
		"encrypted_password":   {encryptedPassword},
		"encryption_timestamp": {strconv.FormatUint(encryptionTimestamp, 10)},
		"device_friendly_name": {deviceName},
		"platform_type":        {"3"}, // mobile app
		"persistence":          {"1"},
	}
	endpoint := c.apiURL(authService, "BeginAuthSessionViaCredentials", 1)
	if err := c.do(ctx, "POST", endpoint, nil, form, nil, &out); err != nil {
		return AuthSession{}, err
	}

	clientID, err := strconv.ParseUint(out.Response.ClientID, 10, 64)
	if err != nil || clientID == 0 {
		return AuthSession{}, fmt.Errorf("%w: missing client_id", ErrProtocol)
	}
	requestID, err := base64.StdEncoding.DecodeString(out.Response.RequestID)
	if err != nil {
		return AuthSession{}, fmt.Errorf("%w: malformed request_id", ErrProtocol)
	}

	return AuthSession{
		ClientID:  clientID,
		RequestID: requestID,
		SteamID:   out.Response.SteamID,
		Interval:  out.Response.Interval,
	}, nil
}

// SubmitGuardCode attaches a Steam Guard code to an auth session.
func (c *Client) SubmitGuardCode(ctx context.Context, sess AuthSession, code string, codeType int) error {
	form := url.Values{
		"client_id": {strconv.FormatUint(sess.ClientID, 10)},
		"steamid":   {sess.SteamID},
		"code":      {code},
		"code_type": {strconv.Itoa(codeType)},
	}
	endpoint := c.apiURL(authService, "UpdateAuthSessionWithSteamGuardCode", 1)
	return c.do(ctx, "POST", endpoint, nil, form, nil, nil)
}

// PollAuthSession checks whether the auth session has produced tokens yet.
// pending is true while the session is still waiting on Steam.
func (c *Client) PollAuthSession(ctx context.Context, sess AuthSession) (pair TokenPair, pending bool, err error) {
	var out struct {
		Response struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			AccountName  string `json:"account_name"`
		} `json:"response"`
	}

	form := url.Values{
		"client_id":  {strconv.FormatUint(sess.ClientID, 10)},
		"request_id": {base64.StdEncoding.EncodeToString(sess.RequestID)},
	}
	endpoint := c.apiURL(authService, "PollAuthSessionStatus", 1)
	if err := c.do(ctx, "POST", endpoint, nil, form, nil, &out); err != nil {
		return TokenPair{}, false, err
	}

	if out.Response.RefreshToken == "" {
		return TokenPair{}, true, nil
	}
	return TokenPair{
		AccessToken:  out.Response.AccessToken,
		RefreshToken: out.Response.RefreshToken,
		AccountName:  out.Response.AccountName,
	}, false, nil
}

// RefreshAccessToken exchanges a refresh token for a fresh access token.
// Steam may also rotate the refresh token; the returned pair carries
// whichever tokens the service handed back.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken, steamID string) (TokenPair, error) {
	var out struct {
		Response struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"response"`
	}

	form := url.Values{
		"refresh_token": {refreshToken},
		"steamid":       {steamID},
	}
	endpoint := c.apiURL(authService, "GenerateAccessTokenForApp", 1)
	if err := c.do(ctx, "POST", endpoint, nil, form, nil, &out); err != nil {
		return TokenPair{}, err
	}

	if out.Response.AccessToken == "" {
		return TokenPair{}, fmt.Errorf("%w: refresh returned no access token", ErrNeedAuth)
	}
	return TokenPair{
		AccessToken:  out.Response.AccessToken,
		RefreshToken: out.Response.RefreshToken,
	}, nil
}
