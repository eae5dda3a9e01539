package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/supabase-community/gotrue-go/types"

	"wodbox/internal/logger"
)

// SignUp registers a new account. The returned session is nil when the
// backend requires email confirmation before the first sign-in.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*User, *Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	resp, err := c.api.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
		Data:     metadata,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("sign up: %w", err)
	}

	if resp.AccessToken == "" {
		user := userFromAPI(resp.User)
		return &user, nil, nil
	}

	sess := sessionFromAPI(resp.Session, c.now())
	if err := c.setSession(ctx, sess); err != nil {
		logger.WithError(err).Warn("Failed to persist session after sign up")
	}
	c.events.emit(AuthChange{Event: EventSignedIn, Session: sess})

	user := sess.User
	return &user, sess, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*User, *Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	resp, err := c.api.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, nil, fmt.Errorf("sign in: %w", err)
	}

	sess := sessionFromAPI(resp.Session, c.now())
	if err := c.setSession(ctx, sess); err != nil {
		logger.WithError(err).Warn("Failed to persist session after sign in")
	}
	c.events.emit(AuthChange{Event: EventSignedIn, Session: sess})

	user := sess.User
	return &user, sess, nil
}

// SignOut revokes the refresh token remotely. The local session is dropped
// even when the remote call fails; that failure is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	var remoteErr error
	if sess := c.currentSession(); sess != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.api.WithToken(sess.AccessToken).Logout(); err != nil {
			remoteErr = fmt.Errorf("sign out: %w", err)
		}
	}

	if err := c.setSession(ctx, nil); err != nil {
		logger.WithError(err).Warn("Failed to clear persisted session")
	}
	c.events.emit(AuthChange{Event: EventSignedOut})

	return remoteErr
}

// GetSession returns the current session, refreshing it first when it is
// about to expire. It returns (nil, nil) when nobody is signed in.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	sess := c.currentSession()
	if sess == nil {
		return nil, nil
	}
	if sess.ExpiresIn(c.now()) > c.margin {
		return sess, nil
	}
	if err := c.refresh(ctx); err != nil {
		if !rejected(err) && sess.ExpiresIn(c.now()) > 0 {
			logger.WithError(err).Warn("Session refresh failed, using current token")
			return sess, nil
		}
		return nil, err
	}
	return c.currentSession(), nil
}

// GetUser asks the backend who the current access token belongs to.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	sess := c.currentSession()
	if sess == nil {
		return nil, ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := c.api.WithToken(sess.AccessToken).GetUser()
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user := userFromAPI(resp.User)
	return &user, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.api.Recover(types.RecoverRequest{Email: email}); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	sess := c.currentSession()
	if sess == nil {
		return ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := c.api.WithToken(sess.AccessToken).UpdateUser(types.UpdateUserRequest{Password: &password})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	sess.User = userFromAPI(resp.User)
	if err := c.setSession(ctx, sess); err != nil {
		logger.WithError(err).Warn("Failed to persist session after user update")
	}
	c.events.emit(AuthChange{Event: EventUserUpdated, Session: sess})
	return nil
}

type resendRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

// Resend asks the backend to send the sign-up confirmation email again.
func (c *Client) Resend(ctx context.Context, email string) error {
	body, err := json.Marshal(resendRequest{Type: "signup", Email: email})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL()+"/resend", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.BackendAnonKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("resend confirmation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend confirmation: response status code %d: %s", resp.StatusCode, msg)
	}
	return nil
}
