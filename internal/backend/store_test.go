package backend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "wodbox-auth-token"

func testSession() *Session {
	return &Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		ExpiresAt:    1736160000,
		User:         User{ID: "6f1c2a8e-0000-4000-8000-000000000001", Email: "ana@box.com"},
	}
}

func TestRedisStoreLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("Nothing stored", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectGet(testKey).RedisNil()

		sess, err := NewRedisStore(rdb, testKey).Load(ctx)

		assert.NoError(t, err)
		assert.Nil(t, sess)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Stored session", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		data, _ := json.Marshal(testSession())
		mock.ExpectGet(testKey).SetVal(string(data))

		sess, err := NewRedisStore(rdb, testKey).Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, "ana@box.com", sess.User.Email)
		assert.Equal(t, "refresh", sess.RefreshToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Corrupt payload", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectGet(testKey).SetVal("{not json")

		sess, err := NewRedisStore(rdb, testKey).Load(ctx)

		assert.Error(t, err)
		assert.Nil(t, sess)
	})

	t.Run("Redis failure", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectGet(testKey).SetErr(errors.New("connection refused"))

		_, err := NewRedisStore(rdb, testKey).Load(ctx)

		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestRedisStoreSaveAndClear(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	store := NewRedisStore(rdb, testKey)

	data, _ := json.Marshal(testSession())
	mock.ExpectSet(testKey, data, 0).SetVal("OK")
	mock.ExpectDel(testKey).SetVal(1)

	require.NoError(t, store.Save(ctx, testSession()))
	require.NoError(t, store.Clear(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	original := testSession()
	require.NoError(t, store.Save(ctx, original))
	original.AccessToken = "mutated"

	sess, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", sess.AccessToken)

	require.NoError(t, store.Clear(ctx))
	sess, _ = store.Load(ctx)
	assert.Nil(t, sess)
}
