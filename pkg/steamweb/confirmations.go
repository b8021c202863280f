package steamweb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Confirmation is one pending mobile confirmation as the getlist endpoint
// reports it. The (ID, Nonce) pair is what an accept/deny call needs.
type Confirmation struct {
	ID       string   `json:"id"`
	Nonce    string   `json:"nonce"`
	Type     int      `json:"type"`
	TypeName string   `json:"type_name"`
	Creator  string   `json:"creator_id"`
	Headline string   `json:"headline"`
	Summary  []string `json:"summary"`
}

// ConfirmationQuery carries the signed parameters every mobileconf call
// requires. Time and Hash must have been produced together for Tag.
type ConfirmationQuery struct {
	DeviceID string
	SteamID  string
	Time     int64
	Hash     string
	Tag      string
}

func (q ConfirmationQuery) values() url.Values {
	return url.Values{
		"p":   {q.DeviceID},
		"a":   {q.SteamID},
		"k":   {q.Hash},
		"t":   {strconv.FormatInt(q.Time, 10)},
		"m":   {"react"},
		"tag": {q.Tag},
	}
}

type confResponse struct {
	Success  bool           `json:"success"`
	NeedAuth bool           `json:"needauth"`
	Detail   string         `json:"detail"`
	Message  string         `json:"message"`
	Conf     []Confirmation `json:"conf"`
}

func (r confResponse) err() error {
	if r.Success {
		return nil
	}
	if r.NeedAuth {
		return ErrNeedAuth
	}
	msg := r.Message
	if msg == "" {
		msg = r.Detail
	}
	if msg == "" {
		msg = "confirmation request rejected"
	}
	return &Error{StatusCode: 200, EResult: EResultFail, Message: msg}
}

// GetConfirmations lists pending confirmations. An empty slice with a nil
// error is a normal outcome.
func (c *Client) GetConfirmations(
	ctx context.Context,
	cred SessionCredentials,
	q ConfirmationQuery,
) ([]Confirmation, error) {
	var out confResponse

	endpoint := c.CommunityURL + "/mobileconf/getlist"
	if err := c.do(ctx, "GET", endpoint, q.values(), nil, cred.cookies(), &out); err != nil {
		return nil, err
	}
	if err := out.err(); err != nil {
		return nil, err
	}
	return out.Conf, nil
}

// RespondConfirmation accepts or denies a single confirmation. The op must
// match the tag the query was signed with ("allow" or "cancel").
func (c *Client) RespondConfirmation(
	ctx context.Context,
	cred SessionCredentials,
	q ConfirmationQuery,
	op, confID, confKey string,
) error {
	query := q.values()
	query.Set("op", op)
	query.Set("cid", confID)
	query.Set("ck", confKey)

	var out confResponse
	endpoint := c.CommunityURL + "/mobileconf/ajaxop"
	if err := c.do(ctx, "GET", endpoint, query, nil, cred.cookies(), &out); err != nil {
		return err
	}
	return out.err()
}

// RespondConfirmations acts on several confirmations in one request via
// multiajaxop. Steam treats the batch atomically; per-item reporting is the
// service layer's job when it needs it.
func (c *Client) RespondConfirmations(
	ctx context.Context,
	cred SessionCredentials,
	q ConfirmationQuery,
	op string,
	confIDs, confKeys []string,
) error {
	if len(confIDs) != len(confKeys) {
		return fmt.Errorf("steamweb: %d ids but %d keys", len(confIDs), len(confKeys))
	}

	form := q.values()
	form.Set("op", op)
	for i := range confIDs {
		form.Add("cid[]", confIDs[i])
		form.Add("ck[]", confKeys[i])
	}

	var out confResponse
	endpoint := c.CommunityURL + "/mobileconf/multiajaxop"
	if err := c.do(ctx, "POST", endpoint, nil, form, cred.cookies(), &out); err != nil {
		return err
	}
	return out.err()
}
