package box

import (
	"context"
	"errors"

	"wodbox/internal/datastore"
)

var (
	ErrBoxNotFound   = errors.New("box not found")
	ErrNothingToSave = errors.New("no box fields to update")
)

type Service interface {
	GetMyBox(ctx context.Context, ownerID string) (*Box, error)
	GetBoxByID(ctx context.Context, id string) (*Box, error)
	CreateBox(ctx context.Context, ownerID string, req CreateBoxRequest) (*Box, error)
	UpdateBox(ctx context.Context, id string, req UpdateBoxRequest) (*Box, error)
	DeactivateBox(ctx context.Context, id string) (*Box, error)
	DeleteBox(ctx context.Context, id string) error
}

type service struct {
	db datastore.Database
}

func NewService(db datastore.Database) Service {
	return &service{db: db}
}

// GetMyBox returns the box owned by ownerID, or nil when the owner has not
// created one yet.
func (s *service) GetMyBox(ctx context.Context, ownerID string) (*Box, error) {
	boxes, err := datastore.QueryAll[Box](ctx, s.db, Table, datastore.QueryOptions{
		Filter: map[string]any{"owner_id": ownerID},
		Limit:  datastore.Int(1),
	})
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, nil
	}
	return &boxes[0], nil
}

func (s *service) GetBoxByID(ctx context.Context, id string) (*Box, error) {
	b, err := datastore.GetOne[Box](ctx, s.db, Table, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrBoxNotFound
	}
	return b, err
}

func (s *service) CreateBox(ctx context.Context, ownerID string, req CreateBoxRequest) (*Box, error) {
	settings := DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	rec := datastore.Record{
		"owner_id": ownerID,
		"name":     req.Name,
		"settings": settings,
	}
	setOptional(rec, "slug", req.Slug)
	setOptional(rec, "email", req.Email)
	setOptional(rec, "phone", req.Phone)
	setOptional(rec, "address", req.Address)

	return datastore.InsertOne[Box](ctx, s.db, Table, rec)
}

func (s *service) UpdateBox(ctx context.Context, id string, req UpdateBoxRequest) (*Box, error) {
	rec := datastore.Record{}
	setOptional(rec, "name", req.Name)
	setOptional(rec, "slug", req.Slug)
	setOptional(rec, "email", req.Email)
	setOptional(rec, "phone", req.Phone)
	setOptional(rec, "address", req.Address)
	if req.Settings != nil {
		rec["settings"] = *req.Settings
	}
	if len(rec) == 0 {
		return nil, ErrNothingToSave
	}

	return s.update(ctx, id, rec)
}

func (s *service) DeactivateBox(ctx context.Context, id string) (*Box, error) {
	return s.update(ctx, id, datastore.Record{"is_active": false})
}

func (s *service) DeleteBox(ctx context.Context, id string) error {
	return s.db.Delete(ctx, Table, id)
}

func (s *service) update(ctx context.Context, id string, rec datastore.Record) (*Box, error) {
	b, err := datastore.UpdateOne[Box](ctx, s.db, Table, id, rec)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrBoxNotFound
	}
	return b, err
}

func setOptional(rec datastore.Record, col string, v *string) {
	if v != nil {
		rec[col] = *v
	}
}
