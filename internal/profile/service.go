package profile

import (
	"context"
	"errors"

	"wodbox/internal/datastore"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrInvalidRole   = errors.New("invalid role")
	ErrNothingToSave = errors.New("no profile fields to update")
)

type Service interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	CreateProfile(ctx context.Context, req CreateRequest) (*Profile, error)
	UpdateProfile(ctx context.Context, id string, req UpdateRequest) (*Profile, error)
}

type service struct {
	db datastore.Database
}

func NewService(db datastore.Database) Service {
	return &service{db: db}
}

func (s *service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	p, err := datastore.GetOne[Profile](ctx, s.db, Table, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *service) CreateProfile(ctx context.Context, req CreateRequest) (*Profile, error) {
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return datastore.InsertOne[Profile](ctx, s.db, Table, req.record())
}

func (s *service) UpdateProfile(ctx context.Context, id string, req UpdateRequest) (*Profile, error) {
	rec := req.record()
	if len(rec) == 0 {
		return nil, ErrNothingToSave
	}

	p, err := datastore.UpdateOne[Profile](ctx, s.db, Table, id, rec)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}
