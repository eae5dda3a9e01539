package booking

import "time"

const Table = "bookings"

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusWaitlist  Status = "waitlist"
	StatusCompleted Status = "completed"
)

type Booking struct {
	ID                 string     `db:"id" json:"id" validate:"required"`
	ClassID            string     `db:"class_id" json:"class_id" validate:"required"`
	AthleteID          string     `db:"athlete_id" json:"athlete_id" validate:"required"`
	Status             Status     `db:"status" json:"status" validate:"oneof=confirmed cancelled waitlist completed"`
	BookedAt           time.Time  `db:"booked_at" json:"booked_at"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason"`
	CheckedIn          bool       `db:"checked_in" json:"checked_in"`
	CheckedInAt        *time.Time `db:"checked_in_at" json:"checked_in_at"`
	Notes              *string    `db:"notes" json:"notes"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateBookingRequest struct {
	ClassID string  `json:"class_id" binding:"required"`
	Notes   *string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"required"`
}
