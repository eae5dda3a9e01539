package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// SessionFromURL picks up a session delivered in a redirect, either in the
// fragment or the query string. It returns (nil, nil) when the URL carries
// no tokens or URL detection is disabled.
func (c *Client) SessionFromURL(ctx context.Context, u *url.URL) (*Session, error) {
	if !c.cfg.DetectSessionInURL || u == nil {
		return nil, nil
	}

	params, err := url.ParseQuery(u.Fragment)
	if err != nil || (params.Get("access_token") == "" && params.Get("error_description") == "") {
		params = u.Query()
	}

	if desc := params.Get("error_description"); desc != "" {
		return nil, errors.New(desc)
	}

	accessToken := params.Get("access_token")
	if accessToken == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := c.api.WithToken(accessToken).GetUser()
	if err != nil {
		return nil, fmt.Errorf("session from url: %w", err)
	}

	now := c.now()
	sess := &Session{
		AccessToken:  accessToken,
		RefreshToken: params.Get("refresh_token"),
		TokenType:    params.Get("token_type"),
		User:         userFromAPI(resp.User),
	}
	if at, err := strconv.ParseInt(params.Get("expires_at"), 10, 64); err == nil {
		sess.ExpiresAt = at
	} else if in, err := strconv.Atoi(params.Get("expires_in")); err == nil {
		sess.ExpiresAt = now.Add(time.Duration(in) * time.Second).Unix()
	}

	if err := c.setSession(ctx, sess); err != nil {
		return nil, err
	}

	event := EventSignedIn
	if params.Get("type") == "recovery" {
		event = EventPasswordRecovery
	}
	c.events.emit(AuthChange{Event: event, Session: sess})

	return sess, nil
}
