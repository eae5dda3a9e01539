package booking

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"

	"wodbox/internal/datastore"
	"wodbox/internal/metrics"
)

var (
	ErrBookingNotActive = errors.New("booking is not confirmed")
	ErrAlreadyCheckedIn = errors.New("athlete already checked in")
	ErrAlreadyBooked    = errors.New("athlete already booked this class")
	ErrClassFull        = errors.New("class is full")
)

// Postgres error codes raised by the bookings table constraints and the
// capacity trigger.
const (
	uniqueViolation = "23505"
	raiseException  = "P0001"
)

type Service interface {
	GetMyBookings(ctx context.Context, athleteID string) ([]Booking, error)
	GetClassBookings(ctx context.Context, classID string) ([]Booking, error)
	GetBookingByID(ctx context.Context, id string) (*Booking, error)
	CreateBooking(ctx context.Context, athleteID string, req CreateBookingRequest) (*Booking, error)
	CancelBooking(ctx context.Context, id, reason string) (*Booking, error)
	CheckIn(ctx context.Context, id string) (*Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

type service struct {
	bookingRepo Repository
	now         func() time.Time
}

func NewService(bookingRepo Repository) Service {
	return &service{bookingRepo: bookingRepo, now: time.Now}
}

func (s *service) GetMyBookings(ctx context.Context, athleteID string) ([]Booking, error) {
	return s.bookingRepo.GetAthleteBookings(ctx, athleteID)
}

func (s *service) GetClassBookings(ctx context.Context, classID string) ([]Booking, error) {
	return s.bookingRepo.GetClassBookings(ctx, classID)
}

func (s *service) GetBookingByID(ctx context.Context, id string) (*Booking, error) {
	return s.bookingRepo.GetBookingByID(ctx, id)
}

// CreateBooking books the athlete into a class. Capacity and duplicate
// bookings are enforced by the database; their errors are mapped to
// ErrClassFull and ErrAlreadyBooked.
func (s *service) CreateBooking(ctx context.Context, athleteID string, req CreateBookingRequest) (*Booking, error) {
	rec := datastore.Record{
		"class_id":   req.ClassID,
		"athlete_id": athleteID,
		"status":     StatusConfirmed,
		"booked_at":  s.now().UTC(),
		"checked_in": false,
	}
	if req.Notes != nil {
		rec["notes"] = *req.Notes
	}

	booking, err := s.bookingRepo.CreateBooking(ctx, rec)
	if err != nil {
		return nil, mapConstraintError(err)
	}

	metrics.RecordBooking("created")
	return booking, nil
}

func (s *service) CancelBooking(ctx context.Context, id, reason string) (*Booking, error) {
	booking, err := s.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != StatusConfirmed {
		return nil, ErrBookingNotActive
	}

	booking, err = s.bookingRepo.UpdateBooking(ctx, id, datastore.Record{
		"status":              StatusCancelled,
		"cancelled_at":        s.now().UTC(),
		"cancellation_reason": reason,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordBooking("cancelled")
	return booking, nil
}

func (s *service) CheckIn(ctx context.Context, id string) (*Booking, error) {
	booking, err := s.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != StatusConfirmed {
		return nil, ErrBookingNotActive
	}
	if booking.CheckedIn {
		return nil, ErrAlreadyCheckedIn
	}

	booking, err = s.bookingRepo.UpdateBooking(ctx, id, datastore.Record{
		"checked_in":    true,
		"checked_in_at": s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordBooking("checked_in")
	return booking, nil
}

func (s *service) DeleteBooking(ctx context.Context, id string) error {
	if err := s.bookingRepo.DeleteBooking(ctx, id); err != nil {
		return err
	}
	metrics.RecordBooking("deleted")
	return nil
}

func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case uniqueViolation:
		return ErrAlreadyBooked
	case raiseException:
		return ErrClassFull
	}
	return err
}
