package backend

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"wodbox/internal/logger"
)

func (c *Client) autoRefresh(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess := c.currentSession()
			if sess == nil || sess.ExpiresIn(c.now()) > c.margin {
				continue
			}
			if err := c.refresh(ctx); err != nil {
				logger.WithError(err).Warn("Auto refresh failed")
			}
		}
	}
}

// refresh exchanges the refresh token for a new session and announces it.
// Only a refresh token the server rejects signs the user out locally; when
// the server is unreachable or failing the session is kept for the next try.
func (c *Client) refresh(ctx context.Context) error {
	sess := c.currentSession()
	if sess == nil {
		return ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	next, err := c.exchangeRefreshToken(sess.RefreshToken)
	if err != nil {
		if !rejected(err) {
			return err
		}
		if clearErr := c.setSession(ctx, nil); clearErr != nil {
			logger.WithError(clearErr).Warn("Failed to clear persisted session")
		}
		c.events.emit(AuthChange{Event: EventSignedOut})
		return err
	}

	if err := c.setSession(ctx, next); err != nil {
		logger.WithError(err).Warn("Failed to persist refreshed session")
	}
	c.events.emit(AuthChange{Event: EventTokenRefreshed, Session: next})
	return nil
}

func (c *Client) exchangeRefreshToken(token string) (*Session, error) {
	resp, err := c.api.RefreshToken(token)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return sessionFromAPI(resp.Session, c.now()), nil
}

var statusCodePattern = regexp.MustCompile(`response status code (\d{3})`)

// rejected reports whether err carries a 4xx answer from the auth server.
// Rate limiting and timeouts are not rejections.
func rejected(err error) bool {
	m := statusCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return false
	}
	code, _ := strconv.Atoi(m[1])
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}
