package profile

import (
	"time"

	"wodbox/internal/datastore"
)

const Table = "profiles"

type Role string

const (
	RoleBusinessOwner Role = "business_owner"
	RoleAthlete       Role = "athlete"
	RoleTrainer       Role = "trainer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBusinessOwner, RoleAthlete, RoleTrainer:
		return true
	}
	return false
}

// Profile extends the auth identity with box membership and role. Its id
// is the auth user id.
type Profile struct {
	ID               string          `db:"id" json:"id" validate:"required"`
	FullName         string          `db:"full_name" json:"full_name"`
	Role             Role            `db:"role" json:"role" validate:"required,oneof=business_owner athlete trainer"`
	BoxID            *string         `db:"box_id" json:"box_id"`
	Phone            *string         `db:"phone" json:"phone"`
	EmergencyContact *string         `db:"emergency_contact" json:"emergency_contact"`
	BirthDate        *datastore.Date `db:"birth_date" json:"birth_date"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	ID       string  `json:"id" binding:"required"`
	FullName string  `json:"full_name" binding:"required"`
	Role     Role    `json:"role" binding:"required,oneof=business_owner athlete trainer"`
	BoxID    *string `json:"box_id,omitempty"`
}

func (r CreateRequest) record() datastore.Record {
	rec := datastore.Record{
		"id":        r.ID,
		"full_name": r.FullName,
		"role":      string(r.Role),
	}
	if r.BoxID != nil && *r.BoxID != "" {
		rec["box_id"] = *r.BoxID
	}
	return rec
}

// UpdateRequest carries the editable profile fields. Role is fixed at
// sign-up and has no field here.
type UpdateRequest struct {
	FullName         *string `json:"full_name,omitempty" binding:"omitempty,min=1"`
	BoxID            *string `json:"box_id,omitempty" binding:"omitempty,uuid"`
	Phone            *string `json:"phone,omitempty"`
	EmergencyContact *string `json:"emergency_contact,omitempty"`
	BirthDate        *string `json:"birth_date,omitempty" binding:"omitempty,datetime=2006-01-02"`
}

func (r UpdateRequest) record() datastore.Record {
	rec := datastore.Record{}
	if r.FullName != nil {
		rec["full_name"] = *r.FullName
	}
	if r.BoxID != nil {
		rec["box_id"] = *r.BoxID
	}
	if r.Phone != nil {
		rec["phone"] = *r.Phone
	}
	if r.EmergencyContact != nil {
		rec["emergency_contact"] = *r.EmergencyContact
	}
	if r.BirthDate != nil {
		rec["birth_date"] = *r.BirthDate
	}
	return rec
}
