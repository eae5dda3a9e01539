package booking

import (
	"context"
	"errors"

	"wodbox/internal/datastore"
)

var ErrBookingNotFound = errors.New("booking not found")

type repository struct {
	db datastore.Database
}

func NewRepository(db datastore.Database) Repository {
	return &repository{db: db}
}

func (r *repository) CreateBooking(ctx context.Context, rec datastore.Record) (*Booking, error) {
	return datastore.InsertOne[Booking](ctx, r.db, Table, rec)
}

func (r *repository) GetBookingByID(ctx context.Context, id string) (*Booking, error) {
	b, err := datastore.GetOne[Booking](ctx, r.db, Table, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

func (r *repository) UpdateBooking(ctx context.Context, id string, rec datastore.Record) (*Booking, error) {
	b, err := datastore.UpdateOne[Booking](ctx, r.db, Table, id, rec)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

func (r *repository) DeleteBooking(ctx context.Context, id string) error {
	return r.db.Delete(ctx, Table, id)
}

// GetAthleteBookings returns the athlete's bookings, newest first.
func (r *repository) GetAthleteBookings(ctx context.Context, athleteID string) ([]Booking, error) {
	return datastore.QueryAll[Booking](ctx, r.db, Table, datastore.QueryOptions{
		Filter: map[string]any{"athlete_id": athleteID},
		Order:  &datastore.Order{Column: "created_at", Ascending: false},
	})
}

// GetClassBookings returns a class roster in booking order.
func (r *repository) GetClassBookings(ctx context.Context, classID string) ([]Booking, error) {
	return datastore.QueryAll[Booking](ctx, r.db, Table, datastore.QueryOptions{
		Filter: map[string]any{"class_id": classID},
		Order:  &datastore.Order{Column: "booked_at", Ascending: true},
	})
}
