package backend_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wodbox/internal/auth"
	"wodbox/internal/backend"
	"wodbox/internal/datastore/memstore"
	"wodbox/internal/profile"
	"wodbox/internal/session"
)

func TestSignInWithoutProfileLeavesNobodySignedIn(t *testing.T) {
	ctx := context.Background()
	client := backend.NewFakeAuthClient(t, "ana@box.com", "secret123")
	profiles := profile.NewService(memstore.New())
	authSvc := auth.NewService(client, profiles, auth.Options{ProfileRetryDelay: time.Millisecond})

	state := session.New(authSvc, client, profiles, nil)
	require.NoError(t, state.Init(ctx))
	t.Cleanup(state.Close)

	signedOut := make(chan struct{})
	var once sync.Once
	client.OnAuthStateChange(func(change backend.AuthChange) {
		if change.Event == backend.EventSignedOut {
			once.Do(func() { close(signedOut) })
		}
	})

	_, err := state.SignIn(ctx, "ana@box.com", "secret123")
	require.ErrorIs(t, err, auth.ErrProfileNotFound)

	select {
	case <-signedOut:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sign out")
	}

	assert.False(t, state.IsAuthenticated())
	assert.Nil(t, state.CurrentUser())
	sess, err := client.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}
