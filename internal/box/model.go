package box

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const Table = "boxes"

// Settings is the box configuration stored as a JSON column.
type Settings struct {
	Timezone                string `json:"timezone"`
	Currency                string `json:"currency"`
	BookingWindowDays       int    `json:"booking_window_days"`
	CancellationWindowHours int    `json:"cancellation_window_hours"`
	MaxBookingsPerDay       int    `json:"max_bookings_per_day"`
}

func DefaultSettings() Settings {
	return Settings{
		Timezone:                "UTC",
		Currency:                "EUR",
		BookingWindowDays:       7,
		CancellationWindowHours: 2,
		MaxBookingsPerDay:       1,
	}
}

func (s *Settings) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = Settings{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into box settings", src)
	}
	return json.Unmarshal(data, s)
}

func (s Settings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

type Box struct {
	ID        string    `db:"id" json:"id" validate:"required"`
	OwnerID   string    `db:"owner_id" json:"owner_id" validate:"required"`
	Name      string    `db:"name" json:"name" validate:"required"`
	Slug      *string   `db:"slug" json:"slug"`
	Email     *string   `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone"`
	Address   *string   `db:"address" json:"address"`
	Settings  Settings  `db:"settings" json:"settings"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type CreateBoxRequest struct {
	Name     string    `json:"name" binding:"required,min=2"`
	Slug     *string   `json:"slug,omitempty" binding:"omitempty,max=64"`
	Email    *string   `json:"email,omitempty" binding:"omitempty,email"`
	Phone    *string   `json:"phone,omitempty"`
	Address  *string   `json:"address,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
}

type UpdateBoxRequest struct {
	Name     *string   `json:"name,omitempty" binding:"omitempty,min=2"`
	Slug     *string   `json:"slug,omitempty"`
	Email    *string   `json:"email,omitempty" binding:"omitempty,email"`
	Phone    *string   `json:"phone,omitempty"`
	Address  *string   `json:"address,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
}
