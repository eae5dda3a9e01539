package booking

import (
	"context"

	"wodbox/internal/datastore"
)

type Repository interface {
	CreateBooking(ctx context.Context, rec datastore.Record) (*Booking, error)
	GetBookingByID(ctx context.Context, id string) (*Booking, error)
	UpdateBooking(ctx context.Context, id string, rec datastore.Record) (*Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	GetAthleteBookings(ctx context.Context, athleteID string) ([]Booking, error)
	GetClassBookings(ctx context.Context, classID string) ([]Booking, error)
}
