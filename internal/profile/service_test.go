package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wodbox/internal/datastore"
	"wodbox/internal/datastore/memstore"
)

const userID = "6f1c2a8e-0000-4000-8000-000000000001"

func strPtr(s string) *string {
	return &s
}

func TestService_GetProfile(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Seed(Table, datastore.Record{
		"id": userID, "full_name": "Ana Lopez", "role": "athlete",
	}))
	svc := NewService(store)

	t.Run("Found", func(t *testing.T) {
		p, err := svc.GetProfile(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, "Ana Lopez", p.FullName)
		assert.Equal(t, RoleAthlete, p.Role)
		assert.Nil(t, p.BoxID)
	})

	t.Run("Missing", func(t *testing.T) {
		p, err := svc.GetProfile(ctx, "nobody")

		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Backend failure", func(t *testing.T) {
		store.Fail("get", Table, errors.New("connection reset"))
		defer store.Fail("get", Table, nil)

		_, err := svc.GetProfile(ctx, userID)

		assert.ErrorContains(t, err, "connection reset")
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("Row with unknown role fails validation", func(t *testing.T) {
		require.NoError(t, store.Seed(Table, datastore.Record{"id": "u-bad", "full_name": "X", "role": "admin"}))

		_, err := svc.GetProfile(ctx, "u-bad")

		assert.ErrorContains(t, err, "invalid Profile")
	})
}

func TestService_CreateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc := NewService(memstore.New())

		p, err := svc.CreateProfile(ctx, CreateRequest{
			ID: userID, FullName: "Ana Lopez", Role: RoleAthlete, BoxID: strPtr("box-1"),
		})

		require.NoError(t, err)
		assert.Equal(t, userID, p.ID)
		assert.Equal(t, "box-1", *p.BoxID)
		assert.False(t, p.CreatedAt.IsZero())
	})

	t.Run("Empty box id is stored as null", func(t *testing.T) {
		store := memstore.New()
		svc := NewService(store)

		_, err := svc.CreateProfile(ctx, CreateRequest{ID: userID, FullName: "Ana", Role: RoleAthlete, BoxID: strPtr("")})

		require.NoError(t, err)
		_, has := store.Rows(Table)[0]["box_id"]
		assert.False(t, has)
	})

	t.Run("Invalid role", func(t *testing.T) {
		svc := NewService(memstore.New())

		_, err := svc.CreateProfile(ctx, CreateRequest{ID: userID, FullName: "Ana", Role: "admin"})

		assert.ErrorIs(t, err, ErrInvalidRole)
	})
}

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Seed(Table, datastore.Record{
		"id": userID, "full_name": "Ana Lopez", "role": "athlete",
	}))
	svc := NewService(store)

	t.Run("Partial update keeps role", func(t *testing.T) {
		p, err := svc.UpdateProfile(ctx, userID, UpdateRequest{
			Phone:     strPtr("+34 600 000 000"),
			BirthDate: strPtr("1990-04-02"),
		})

		require.NoError(t, err)
		assert.Equal(t, "+34 600 000 000", *p.Phone)
		assert.Equal(t, datastore.Date("1990-04-02"), *p.BirthDate)
		assert.Equal(t, RoleAthlete, p.Role)
		assert.Equal(t, "Ana Lopez", p.FullName)
	})

	t.Run("Nothing to save", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, userID, UpdateRequest{})

		assert.ErrorIs(t, err, ErrNothingToSave)
	})

	t.Run("Missing profile", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, "nobody", UpdateRequest{FullName: strPtr("X")})

		assert.ErrorIs(t, err, ErrNotFound)
	})
}
