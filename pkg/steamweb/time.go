package steamweb

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// QueryTime asks the two-factor service for its current time. The returned
// instant is the server's clock, not the local one; callers compute the
// offset against their own sample of local time.
func (c *Client) QueryTime(ctx context.Context) (time.Time, error) {
	var out struct {
		Response struct {
			ServerTime string `json:"server_time"`
		} `json:"response"`
	}

	endpoint := c.apiURL("ITwoFactorService", "QueryTime", 1)
	if err := c.do(ctx, "POST", endpoint, nil, url.Values{}, nil, &out); err != nil {
		return time.Time{}, err
	}

	secs, err := strconv.ParseInt(out.Response.ServerTime, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, ErrProtocol
	}
	return time.Unix(secs, 0).UTC(), nil
}
