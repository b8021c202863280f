package steamweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cs2central/steam-authenticator-linux/pkg/idx"
	"github.com/cs2central/steam-authenticator-linux/pkg/slogx"
)

const (
	// DefaultCommunityURL serves the mobileconf endpoints.
	DefaultCommunityURL = "https://steamcommunity.com"
	// DefaultAPIURL serves the IAuthenticationService and ITwoFactorService families.
	DefaultAPIURL = "https://api.steampowered.com"

	// defaultUserAgent mirrors what the mobile confirmation pages expect.
	defaultUserAgent = "Mozilla/5.0 (Linux; Android 6.0; Nexus 5) AppleWebKit/537.36"

	maxResponseBytes = 4 << 20
)

// Client talks to the Steam Web API and community endpoints.
// The zero value is not usable; construct it with NewClient.
type Client struct {
	CommunityURL string
	APIURL       string
	HTTPClient   *http.Client
	UserAgent    string
}

// NewClient creates a client against the production Steam endpoints.
func NewClient() *Client {
	return &Client{
		CommunityURL: DefaultCommunityURL,
		APIURL:       DefaultAPIURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent: defaultUserAgent,
	}
}

// SessionCredentials carry the bearer state attached to community requests.
type SessionCredentials struct {
	SteamID     string
	AccessToken string
}

func (s SessionCredentials) cookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: "dob", Value: ""},
		{Name: "steamid", Value: s.SteamID},
		// The community endpoints authenticate via this composite cookie.
		{Name: "steamLoginSecure", Value: s.SteamID + "||" + s.AccessToken},
	}
}

// do performs one round-trip and decodes the JSON body into target (if
// non-nil). Protocol-level failures come back as *Error or one of the
// package sentinels.
func (c *Client) do(
	ctx context.Context,
	method, rawURL string,
	query, form url.Values,
	cookies []*http.Cookie,
	target any,
) error {
	u := rawURL
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("steamweb: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	l := slogx.FromContext(ctx).With(
		slog.String("req_id", idx.New().String()),
		slog.String("method", method),
		slog.String("endpoint", req.URL.Path),
	)

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		l.Debug("steam request failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}

	l.Debug("steam request",
		slog.Int("status", resp.StatusCode),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	if err := checkResponse(resp); err != nil {
		return err
	}

	if target != nil {
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrProtocol, req.URL.Path, err)
		}
	}
	return nil
}

// checkResponse maps transport and x-eresult failures to typed errors.
func checkResponse(resp *http.Response) error {
	if er := resp.Header.Get("x-eresult"); er != "" && er != "1" {
		code, err := strconv.Atoi(er)
		if err != nil {
			return fmt.Errorf("%w: malformed x-eresult %q", ErrProtocol, er)
		}
		return &Error{
			StatusCode: resp.StatusCode,
			EResult:    code,
			Message:    resp.Header.Get("x-error_message"),
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrNeedAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Error{StatusCode: resp.StatusCode, EResult: EResultRateLimitExceeded, Message: "too many requests"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

func (c *Client) apiURL(service, method string, version int) string {
	return fmt.Sprintf("%s/%s/%s/v%d/", c.APIURL, service, method, version)
}
