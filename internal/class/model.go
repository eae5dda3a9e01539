package class

import (
	"database/sql"
	"encoding/json"
	"time"

	"wodbox/internal/datastore"
)

const (
	Table         = "classes"
	WodTypesTable = "wod_types"

	availabilityProcedure = "check_class_availability"
)

type WodType struct {
	ID              string    `db:"id" json:"id" validate:"required"`
	BoxID           string    `db:"box_id" json:"box_id" validate:"required"`
	Name            string    `db:"name" json:"name" validate:"required"`
	Description     *string   `db:"description" json:"description"`
	Color           *string   `db:"color" json:"color"`
	Icon            *string   `db:"icon" json:"icon"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes" validate:"gte=0"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	DisplayOrder    int       `db:"display_order" json:"display_order"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Class is one scheduled session. Date is YYYY-MM-DD, times are HH:MM:SS
// in the box's timezone.
type Class struct {
	ID                 string         `db:"id" json:"id" validate:"required"`
	BoxID              string         `db:"box_id" json:"box_id" validate:"required"`
	WodTypeID          string         `db:"wod_type_id" json:"wod_type_id" validate:"required"`
	TrainerID          *string        `db:"trainer_id" json:"trainer_id"`
	Date               datastore.Date `db:"date" json:"date" validate:"required"`
	StartTime          string         `db:"start_time" json:"start_time" validate:"required"`
	EndTime            string         `db:"end_time" json:"end_time" validate:"required"`
	Capacity           int            `db:"capacity" json:"capacity" validate:"gte=0"`
	IsCancelled        bool           `db:"is_cancelled" json:"is_cancelled"`
	CancellationReason *string        `db:"cancellation_reason" json:"cancellation_reason"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// ClassWithDetails is a class joined with its WOD type and live booking
// count.
type ClassWithDetails struct {
	Class
	WodType         WodType `db:"wod_type" json:"wod_type"`
	CurrentBookings int     `db:"current_bookings" json:"current_bookings"`
	SpotsAvailable  int     `db:"-" json:"spots_available"`
}

type CreateClassRequest struct {
	WodTypeID string  `json:"wod_type_id" binding:"required"`
	TrainerID *string `json:"trainer_id,omitempty"`
	Date      string  `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime string  `json:"start_time" binding:"required,datetime=15:04:05"`
	EndTime   string  `json:"end_time" binding:"required,datetime=15:04:05"`
	Capacity  int     `json:"capacity" binding:"required,min=1"`
}

type UpdateClassRequest struct {
	WodTypeID *string `json:"wod_type_id,omitempty"`
	TrainerID *string `json:"trainer_id,omitempty"`
	Date      *string `json:"date,omitempty" binding:"omitempty,datetime=2006-01-02"`
	StartTime *string `json:"start_time,omitempty" binding:"omitempty,datetime=15:04:05"`
	EndTime   *string `json:"end_time,omitempty" binding:"omitempty,datetime=15:04:05"`
	Capacity  *int    `json:"capacity,omitempty" binding:"omitempty,min=1"`
}

type CancelClassRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type CreateWodTypeRequest struct {
	Name            string  `json:"name" binding:"required"`
	Description     *string `json:"description,omitempty"`
	Color           *string `json:"color,omitempty" binding:"omitempty,hexcolor"`
	Icon            *string `json:"icon,omitempty"`
	DurationMinutes int     `json:"duration_minutes" binding:"required,min=1"`
	DisplayOrder    int     `json:"display_order"`
}

// availability is one result of the availability procedure. It is NULL
// when the class does not exist.
type availability struct {
	sql.NullBool
}

func (a *availability) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		a.Valid = false
		return nil
	}
	a.Valid = true
	return json.Unmarshal(data, &a.Bool)
}
