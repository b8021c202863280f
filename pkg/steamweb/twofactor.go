package steamweb

import (
	"context"
	"net/url"
	"strconv"
)

const twoFactorService = "ITwoFactorService"

// AddAuthenticator status codes (the "status" field, distinct from EResult).
const (
	LinkStatusOK                   = 1
	LinkStatusMustProvidePhone     = 2
	LinkStatusAuthenticatorPresent = 29
	LinkStatusMustConfirmEmail     = 84
	LinkStatusBadActivationCode    = 89
)

// AuthenticatorLink is the secret bundle returned when an authenticator is
// attached to an account. Everything here must be persisted before
// finalization: losing the revocation code locks the user out.
type AuthenticatorLink struct {
	Status          int    `json:"status"`
	SharedSecret    string `json:"shared_secret"`   // base64
	IdentitySecret  string `json:"identity_secret"` // base64
	RevocationCode  string `json:"revocation_code"`
	SerialNumber    string `json:"serial_number"`
	URI             string `json:"uri"` // otpauth:// enrollment URI
	TokenGID        string `json:"token_gid"`
	AccountName     string `json:"account_name"`
	ServerTime      string `json:"server_time"`
	PhoneNumberHint string `json:"phone_number_hint"`
	ConfirmType     int    `json:"confirm_type"` // 1 = SMS, 3 = email
}

// FinalizeResult reports one FinalizeAddAuthenticator attempt. WantMore
// means Steam is asking for the next code window before activating.
type FinalizeResult struct {
	Status     int    `json:"status"`
	Success    bool   `json:"success"`
	WantMore   bool   `json:"want_more"`
	ServerTime string `json:"server_time"`
}

// AddAuthenticator asks Steam to attach a new mobile authenticator to the
// logged-in account. The returned link still needs FinalizeAddAuthenticator
// with an SMS/email activation code.
func (c *Client) AddAuthenticator(ctx context.Context, accessToken, steamID, deviceID string) (AuthenticatorLink, error) {
	var out struct {
		Response AuthenticatorLink `json:"response"`
	}

	form := url.Values{
		"steamid":            {steamID},
		"authenticator_type": {"1"},
		"device_identifier":  {deviceID},
		"sms_phone_id":       {"1"},
	}
	query := url.Values{"access_token": {accessToken}}
	endpoint := c.apiURL(twoFactorService, "AddAuthenticator", 1)
	if err := c.do(ctx, "POST", endpoint, query, form, nil, &out); err != nil {
		return AuthenticatorLink{}, err
	}
	return out.Response, nil
}

// FinalizeAddAuthenticator submits the activation code plus a guard code
// generated from the newly issued shared secret.
func (c *Client) FinalizeAddAuthenticator(
	ctx context.Context,
	accessToken, steamID, activationCode, authenticatorCode string,
	authenticatorTime uint64,
) (FinalizeResult, error) {
	var out struct {
		Response FinalizeResult `json:"response"`
	}

	form := url.Values{
		"steamid":            {steamID},
		"activation_code":    {activationCode},
		"authenticator_code": {authenticatorCode},
		"authenticator_time": {strconv.FormatUint(authenticatorTime, 10)},
	}
	query := url.Values{"access_token": {accessToken}}
	endpoint := c.apiURL(twoFactorService, "FinalizeAddAuthenticator", 1)
	if err := c.do(ctx, "POST", endpoint, query, form, nil, &out); err != nil {
		return FinalizeResult{}, err
	}
	return out.Response, nil
}

// RemoveAuthenticator detaches the authenticator using its revocation code.
func (c *Client) RemoveAuthenticator(ctx context.Context, accessToken, revocationCode string) (bool, error) {
	var out struct {
		Response struct {
			Success bool `json:"success"`
		} `json:"response"`
	}

	form := url.Values{
		"revocation_code":   {revocationCode},
		"revocation_reason": {"1"},
		"steamguard_scheme": {"2"},
	}
	query := url.Values{"access_token": {accessToken}}
	endpoint := c.apiURL(twoFactorService, "RemoveAuthenticator", 1)
	if err := c.do(ctx, "POST", endpoint, query, form, nil, &out); err != nil {
		return false, err
	}
	return out.Response.Success, nil
}
