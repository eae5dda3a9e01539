package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wodbox/internal/config"
)

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("Auto-confirmed account gets a session", func(t *testing.T) {
		fake := newFakeAuth()
		store := NewMemoryStore()
		c := newTestClient(t, fake, store)
		events := collect(c)

		user, sess, err := c.SignUp(ctx, "ana@box.com", "secret123", map[string]interface{}{
			"full_name": "Ana Lopez",
			"role":      "athlete",
		})

		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "ana@box.com", user.Email)
		assert.Equal(t, "Ana Lopez", user.UserMetadata["full_name"])

		change := nextEvent(t, events)
		assert.Equal(t, EventSignedIn, change.Event)
		assert.Equal(t, user.ID, change.Session.User.ID)

		stored, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, sess.AccessToken, stored.AccessToken)
	})

	t.Run("Confirmation required returns no session", func(t *testing.T) {
		fake := newFakeAuth()
		fake.autoConfirm = false
		c := newTestClient(t, fake, NewMemoryStore())

		user, sess, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)

		require.NoError(t, err)
		assert.Nil(t, sess)
		assert.NotEmpty(t, user.ID)

		current, err := c.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, current)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		fake := newFakeAuth()
		c := newTestClient(t, fake, NewMemoryStore())

		_, _, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)
		require.NoError(t, err)

		_, _, err = c.SignUp(ctx, "ana@box.com", "secret123", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})
}

func TestSignInWithPassword(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAuth()
	c := newTestClient(t, fake, NewMemoryStore())

	_, _, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)
	require.NoError(t, err)
	require.NoError(t, c.SignOut(ctx))

	t.Run("Wrong password", func(t *testing.T) {
		user, sess, err := c.SignInWithPassword(ctx, "ana@box.com", "nope")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid login credentials")
		assert.Nil(t, user)
		assert.Nil(t, sess)
	})

	t.Run("Success", func(t *testing.T) {
		user, sess, err := c.SignInWithPassword(ctx, "ana@box.com", "secret123")

		require.NoError(t, err)
		assert.Equal(t, "ana@box.com", user.Email)
		assert.NotEmpty(t, sess.RefreshToken)

		got, err := c.GetUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("Clears session and emits SIGNED_OUT", func(t *testing.T) {
		fake := newFakeAuth()
		store := NewMemoryStore()
		c := newTestClient(t, fake, store)

		_, _, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)
		require.NoError(t, err)
		events := collect(c)

		require.NoError(t, c.SignOut(ctx))

		assert.Equal(t, EventSignedOut, nextEvent(t, events).Event)
		stored, _ := store.Load(ctx)
		assert.Nil(t, stored)
		_, err = c.GetUser(ctx)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("Remote failure still clears the local session", func(t *testing.T) {
		fake := newFakeAuth()
		fake.failLogout = true
		c := newTestClient(t, fake, NewMemoryStore())

		_, _, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)
		require.NoError(t, err)

		err = c.SignOut(ctx)

		require.Error(t, err)
		sess, err := c.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("Without a session no remote call is made", func(t *testing.T) {
		fake := newFakeAuth()
		c := newTestClient(t, fake, NewMemoryStore())

		require.NoError(t, c.SignOut(ctx))
		assert.Equal(t, 0, fake.callCount("logout"))
	})
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("Restores a persisted session", func(t *testing.T) {
		fake := newFakeAuth()
		store := NewMemoryStore()
		first := newTestClient(t, fake, store)
		user, _, err := first.SignUp(ctx, "ana@box.com", "secret123", nil)
		require.NoError(t, err)

		second := newTestClient(t, fake, store)
		events := collect(second)
		require.NoError(t, second.Start(ctx))

		change := nextEvent(t, events)
		assert.Equal(t, EventInitialSession, change.Event)
		require.NotNil(t, change.Session)
		assert.Equal(t, user.ID, change.Session.User.ID)
	})

	t.Run("Expired session is refreshed", func(t *testing.T) {
		fake := newFakeAuth()
		store := NewMemoryStore()
		first := newTestClient(t, fake, store)
		_, sess, err := first.SignUp(ctx, "ana@box.com", "secret123", nil)
		require.NoError(t, err)

		sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
		require.NoError(t, store.Save(ctx, sess))

		second := newTestClient(t, fake, store)
		require.NoError(t, second.Start(ctx))

		current, err := second.GetSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.True(t, current.ExpiresAt > time.Now().Unix())
		assert.Equal(t, 1, fake.callCount("token:refresh_token"))
	})

	t.Run("Rejected refresh discards the session", func(t *testing.T) {
		fake := newFakeAuth()
		store := NewMemoryStore()
		first := newTestClient(t, fake, store)
		_, sess, err := first.SignUp(ctx, "ana@box.com", "secret123", nil)
		require.NoError(t, err)

		sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
		require.NoError(t, store.Save(ctx, sess))
		fake.rejectRefresh = true

		second := newTestClient(t, fake, store)
		events := collect(second)
		require.NoError(t, second.Start(ctx))

		change := nextEvent(t, events)
		assert.Equal(t, EventInitialSession, change.Event)
		assert.Nil(t, change.Session)
		stored, _ := store.Load(ctx)
		assert.Nil(t, stored)
	})
	t.Run("Unreachable server keeps the persisted session", func(t *testing.T) {
		fake := newFakeAuth()
		store := NewMemoryStore()
		first := newTestClient(t, fake, store)
		_, sess, err := first.SignUp(ctx, "ana@box.com", "secret123", nil)
		require.NoError(t, err)

		sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
		require.NoError(t, store.Save(ctx, sess))

		down := httptest.NewServer(http.NotFoundHandler())
		down.Close()
		second := New(&config.Config{
			BackendURL:     down.URL,
			BackendAnonKey: "anon-key",
			PersistSession: true,
		}, Deps{Store: store})
		t.Cleanup(func() { _ = second.Close() })
		events := collect(second)

		assert.Error(t, second.Start(ctx))

		change := nextEvent(t, events)
		assert.Equal(t, EventInitialSession, change.Event)
		require.NotNil(t, change.Session)
		assert.Equal(t, sess.RefreshToken, change.Session.RefreshToken)
		stored, _ := store.Load(ctx)
		assert.NotNil(t, stored)
	})
}

func TestRefreshFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		status     int
		signedOut  bool
		keepsStore bool
	}{
		{name: "Server error keeps the session", status: http.StatusServiceUnavailable, keepsStore: true},
		{name: "Rate limited keeps the session", status: http.StatusTooManyRequests, keepsStore: true},
		{name: "Rejected token signs out", status: http.StatusBadRequest, signedOut: true},
		{name: "Unauthorized signs out", status: http.StatusUnauthorized, signedOut: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeAuth()
			store := NewMemoryStore()
			c := newTestClient(t, fake, store)
			_, _, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)
			require.NoError(t, err)

			fake.mu.Lock()
			fake.refreshStatus = tt.status
			fake.mu.Unlock()
			events := collect(c)

			err = c.refresh(ctx)

			require.Error(t, err)
			assert.Equal(t, tt.signedOut, rejected(err))
			stored, _ := store.Load(ctx)
			if tt.keepsStore {
				assert.NotNil(t, c.currentSession())
				assert.NotNil(t, stored)
				select {
				case change := <-events:
					t.Fatalf("unexpected auth change %s", change.Event)
				case <-time.After(100 * time.Millisecond):
				}
				return
			}
			assert.Nil(t, c.currentSession())
			assert.Nil(t, stored)
			assert.Equal(t, EventSignedOut, nextEvent(t, events).Event)
		})
	}
}

func TestGetSession_RefreshUnavailable(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAuth()
	c := newTestClient(t, fake, NewMemoryStore())
	_, sess, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)
	require.NoError(t, err)

	fake.mu.Lock()
	fake.refreshStatus = http.StatusBadGateway
	fake.mu.Unlock()
	c.margin = 2 * time.Hour

	got, err := c.GetSession(ctx)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.AccessToken, got.AccessToken)
	assert.Equal(t, 1, fake.callCount("token:refresh_token"))
}

func TestRejected(t *testing.T) {
	assert.True(t, rejected(errors.New("refresh token: response status code 400: invalid grant")))
	assert.True(t, rejected(errors.New("response status code 403: forbidden")))
	assert.False(t, rejected(errors.New("response status code 500: boom")))
	assert.False(t, rejected(errors.New("response status code 408")))
	assert.False(t, rejected(errors.New(`Post "http://127.0.0.1:1/token": dial tcp: connection refused`)))
}

func TestAutoRefresh(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAuth()
	c := newTestClient(t, fake, NewMemoryStore())
	c.cfg.AutoRefreshToken = true
	c.tick = 10 * time.Millisecond
	c.margin = 2 * time.Hour

	_, _, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)
	require.NoError(t, err)
	events := collect(c)
	require.NoError(t, c.Start(ctx))

	assert.Equal(t, EventInitialSession, nextEvent(t, events).Event)
	assert.Equal(t, EventTokenRefreshed, nextEvent(t, events).Event)
}

func TestUpdatePasswordAndRecover(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAuth()
	c := newTestClient(t, fake, NewMemoryStore())

	assert.ErrorIs(t, c.UpdatePassword(ctx, "newsecret"), ErrNoSession)

	_, _, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)
	require.NoError(t, err)
	events := collect(c)

	require.NoError(t, c.UpdatePassword(ctx, "newsecret"))
	assert.Equal(t, EventUserUpdated, nextEvent(t, events).Event)

	require.NoError(t, c.SignOut(ctx))
	_, _, err = c.SignInWithPassword(ctx, "ana@box.com", "newsecret")
	assert.NoError(t, err)

	require.NoError(t, c.ResetPasswordForEmail(ctx, "ana@box.com"))
	assert.Equal(t, []string{"ana@box.com"}, fake.recovered)
}

func TestResend(t *testing.T) {
	fake := newFakeAuth()
	c := newTestClient(t, fake, NewMemoryStore())

	err := c.Resend(context.Background(), "ana@box.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"ana@box.com"}, fake.resent)
}

func TestSessionFromURL(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Client, *fakeAuth, fakeUser) {
		fake := newFakeAuth()
		c := newTestClient(t, fake, NewMemoryStore())
		_, _, err := c.SignUp(ctx, "ana@box.com", "secret123", nil)
		require.NoError(t, err)
		require.NoError(t, c.SignOut(ctx))
		return c, fake, fake.users["ana@box.com"]
	}

	t.Run("Fragment tokens sign the user in", func(t *testing.T) {
		c, _, u := setup(t)
		events := collect(c)
		token := signToken(t, u, time.Hour)
		link, _ := url.Parse("http://localhost:4200/auth/callback#access_token=" + token +
			"&refresh_token=refresh-" + u.ID + "&expires_in=3600&token_type=bearer&type=signup")

		sess, err := c.SessionFromURL(ctx, link)

		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, u.ID, sess.User.ID)
		assert.Equal(t, EventSignedIn, nextEvent(t, events).Event)
	})

	t.Run("Recovery link emits PASSWORD_RECOVERY", func(t *testing.T) {
		c, _, u := setup(t)
		events := collect(c)
		token := signToken(t, u, time.Hour)
		link, _ := url.Parse("http://localhost:4200/auth/callback?access_token=" + token + "&type=recovery")

		_, err := c.SessionFromURL(ctx, link)

		require.NoError(t, err)
		assert.Equal(t, EventPasswordRecovery, nextEvent(t, events).Event)
	})

	t.Run("Error description is returned", func(t *testing.T) {
		c, _, _ := setup(t)
		link, _ := url.Parse("http://localhost:4200/auth/callback#error=access_denied&error_description=Email+link+is+invalid+or+has+expired")

		sess, err := c.SessionFromURL(ctx, link)

		assert.Nil(t, sess)
		assert.EqualError(t, err, "Email link is invalid or has expired")
	})

	t.Run("No tokens", func(t *testing.T) {
		c, _, _ := setup(t)
		link, _ := url.Parse("http://localhost:4200/auth/callback")

		sess, err := c.SessionFromURL(ctx, link)

		assert.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("Detection disabled", func(t *testing.T) {
		c, _, u := setup(t)
		c.cfg.DetectSessionInURL = false
		link, _ := url.Parse("http://localhost:4200/auth/callback#access_token=" + signToken(t, u, time.Hour))

		sess, err := c.SessionFromURL(ctx, link)

		assert.NoError(t, err)
		assert.Nil(t, sess)
	})
}

func TestListenersReceiveEventsInOrder(t *testing.T) {
	d := newDispatcher()
	defer d.close()

	got := make(chan AuthEvent, 8)
	unsubscribe := d.subscribe(func(change AuthChange) { got <- change.Event })

	d.emit(AuthChange{Event: EventSignedIn})
	d.emit(AuthChange{Event: EventTokenRefreshed})
	d.emit(AuthChange{Event: EventSignedOut})

	for _, want := range []AuthEvent{EventSignedIn, EventTokenRefreshed, EventSignedOut} {
		select {
		case e := <-got:
			assert.Equal(t, want, e)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	unsubscribe()
	d.emit(AuthChange{Event: EventSignedIn})
	select {
	case e := <-got:
		t.Fatalf("unexpected event after unsubscribe: %s", e)
	case <-time.After(50 * time.Millisecond):
	}
}
