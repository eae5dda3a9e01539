package class

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"wodbox/internal/datastore"
	"wodbox/internal/metrics"
)

var (
	ErrClassNotFound   = errors.New("class not found")
	ErrClassCancelled  = errors.New("class already cancelled")
	ErrNothingToSave   = errors.New("no class fields to update")
	ErrInvalidSchedule = errors.New("class must end after it starts")
)

type Service interface {
	GetClassesByBox(ctx context.Context, boxID string) ([]Class, error)
	GetClassesByDate(ctx context.Context, date string) ([]Class, error)
	GetAvailableClasses(ctx context.Context, boxID string, from datastore.Date) ([]ClassWithDetails, error)
	GetClassByID(ctx context.Context, id string) (*Class, error)
	CreateClass(ctx context.Context, boxID string, req CreateClassRequest) (*Class, error)
	UpdateClass(ctx context.Context, id string, req UpdateClassRequest) (*Class, error)
	CancelClass(ctx context.Context, id, reason string) (*Class, error)
	DeleteClass(ctx context.Context, id string) error
	CheckAvailability(ctx context.Context, classID string) (bool, error)
	ListWodTypes(ctx context.Context, boxID string) ([]WodType, error)
	CreateWodType(ctx context.Context, boxID string, req CreateWodTypeRequest) (*WodType, error)
}

type service struct {
	db     datastore.Database
	runner datastore.Runner
	now    func() time.Time
}

// NewService builds the class service. runner serves the joined schedule
// read that the generic CRUD surface cannot express.
func NewService(db datastore.Database, runner datastore.Runner) Service {
	return &service{db: db, runner: runner, now: time.Now}
}

func (s *service) GetClassesByBox(ctx context.Context, boxID string) ([]Class, error) {
	return datastore.QueryAll[Class](ctx, s.db, Table, datastore.QueryOptions{
		Filter: map[string]any{"box_id": boxID},
		Order:  &datastore.Order{Column: "date", Ascending: true},
	})
}

func (s *service) GetClassesByDate(ctx context.Context, date string) ([]Class, error) {
	return datastore.QueryAll[Class](ctx, s.db, Table, datastore.QueryOptions{
		Filter: map[string]any{"date": date},
		Order:  &datastore.Order{Column: "start_time", Ascending: true},
	})
}

const availableClassesQuery = `
SELECT c.*,
	w.id AS "wod_type.id",
	w.box_id AS "wod_type.box_id",
	w.name AS "wod_type.name",
	w.description AS "wod_type.description",
	w.color AS "wod_type.color",
	w.icon AS "wod_type.icon",
	w.duration_minutes AS "wod_type.duration_minutes",
	w.is_active AS "wod_type.is_active",
	w.display_order AS "wod_type.display_order",
	w.created_at AS "wod_type.created_at",
	COUNT(b.id) FILTER (WHERE b.status IN ('confirmed', 'completed')) AS current_bookings
FROM classes c
JOIN wod_types w ON w.id = c.wod_type_id
LEFT JOIN bookings b ON b.class_id = c.id
WHERE c.box_id = $1 AND c.date >= $2 AND c.is_cancelled = false
GROUP BY c.id, w.id
ORDER BY c.date ASC, c.start_time ASC`

// GetAvailableClasses lists the box's non-cancelled classes from the given
// date on, each with its WOD type and remaining spots. An empty from means
// today.
func (s *service) GetAvailableClasses(ctx context.Context, boxID string, from datastore.Date) ([]ClassWithDetails, error) {
	if from == "" {
		from = datastore.Today(s.now())
	}

	start := time.Now()
	classes := []ClassWithDetails{}
	err := s.runner.Run(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &classes, availableClassesQuery, boxID, from)
	})
	metrics.RecordBackendCall("query", Table, err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("available classes: %w", err)
	}

	for i := range classes {
		if err := datastore.Validate(&classes[i].Class); err != nil {
			return nil, err
		}
		classes[i].SpotsAvailable = max(classes[i].Capacity-classes[i].CurrentBookings, 0)
	}
	return classes, nil
}

func (s *service) GetClassByID(ctx context.Context, id string) (*Class, error) {
	c, err := datastore.GetOne[Class](ctx, s.db, Table, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrClassNotFound
	}
	return c, err
}

func (s *service) CreateClass(ctx context.Context, boxID string, req CreateClassRequest) (*Class, error) {
	if req.EndTime <= req.StartTime {
		return nil, ErrInvalidSchedule
	}

	rec := datastore.Record{
		"box_id":       boxID,
		"wod_type_id":  req.WodTypeID,
		"date":         req.Date,
		"start_time":   req.StartTime,
		"end_time":     req.EndTime,
		"capacity":     req.Capacity,
		"is_cancelled": false,
	}
	if req.TrainerID != nil {
		rec["trainer_id"] = *req.TrainerID
	}

	return datastore.InsertOne[Class](ctx, s.db, Table, rec)
}

func (s *service) UpdateClass(ctx context.Context, id string, req UpdateClassRequest) (*Class, error) {
	rec := datastore.Record{}
	for col, v := range map[string]*string{
		"wod_type_id": req.WodTypeID,
		"trainer_id":  req.TrainerID,
		"date":        req.Date,
		"start_time":  req.StartTime,
		"end_time":    req.EndTime,
	} {
		if v != nil {
			rec[col] = *v
		}
	}
	if req.Capacity != nil {
		rec["capacity"] = *req.Capacity
	}
	if len(rec) == 0 {
		return nil, ErrNothingToSave
	}

	if req.StartTime != nil || req.EndTime != nil {
		current, err := s.GetClassByID(ctx, id)
		if err != nil {
			return nil, err
		}
		startTime, endTime := current.StartTime, current.EndTime
		if req.StartTime != nil {
			startTime = *req.StartTime
		}
		if req.EndTime != nil {
			endTime = *req.EndTime
		}
		if endTime <= startTime {
			return nil, ErrInvalidSchedule
		}
	}

	return s.update(ctx, id, rec)
}

func (s *service) CancelClass(ctx context.Context, id, reason string) (*Class, error) {
	current, err := s.GetClassByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsCancelled {
		return nil, ErrClassCancelled
	}

	return s.update(ctx, id, datastore.Record{
		"is_cancelled":        true,
		"cancellation_reason": reason,
	})
}

func (s *service) DeleteClass(ctx context.Context, id string) error {
	return s.db.Delete(ctx, Table, id)
}

// CheckAvailability asks the backend whether the class still has a free
// spot. An unknown class is ErrClassNotFound.
func (s *service) CheckAvailability(ctx context.Context, classID string) (bool, error) {
	res, err := datastore.ExecuteAll[availability](ctx, s.db, availabilityProcedure, datastore.Record{"class_id": classID})
	if err != nil {
		return false, err
	}
	if len(res) == 0 {
		return false, nil
	}
	if !res[0].Valid {
		return false, ErrClassNotFound
	}
	return res[0].Bool, nil
}

func (s *service) ListWodTypes(ctx context.Context, boxID string) ([]WodType, error) {
	return datastore.QueryAll[WodType](ctx, s.db, WodTypesTable, datastore.QueryOptions{
		Filter: map[string]any{"box_id": boxID, "is_active": true},
		Order:  &datastore.Order{Column: "display_order", Ascending: true},
	})
}

func (s *service) CreateWodType(ctx context.Context, boxID string, req CreateWodTypeRequest) (*WodType, error) {
	rec := datastore.Record{
		"box_id":           boxID,
		"name":             req.Name,
		"duration_minutes": req.DurationMinutes,
		"display_order":    req.DisplayOrder,
		"is_active":        true,
	}
	if req.Description != nil {
		rec["description"] = *req.Description
	}
	if req.Color != nil {
		rec["color"] = *req.Color
	}
	if req.Icon != nil {
		rec["icon"] = *req.Icon
	}

	return datastore.InsertOne[WodType](ctx, s.db, WodTypesTable, rec)
}

func (s *service) update(ctx context.Context, id string, rec datastore.Record) (*Class, error) {
	c, err := datastore.UpdateOne[Class](ctx, s.db, Table, id, rec)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrClassNotFound
	}
	return c, err
}
