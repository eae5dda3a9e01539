package datastore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type txRunner struct {
	db *sqlx.DB
}

func (r txRunner) Run(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type classRow struct {
	ID        string `db:"id" json:"id" validate:"required"`
	BoxID     string `db:"box_id" json:"box_id" validate:"required"`
	Date      string `db:"date" json:"date"`
	StartTime string `db:"start_time" json:"start_time"`
	Capacity  int    `db:"capacity" json:"capacity" validate:"gte=0"`
}

var classColumns = []string{"id", "box_id", "date", "start_time", "capacity"}

func newPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgres(txRunner{db: sqlx.NewDb(db, "postgres")}), mock
}

func TestQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("Filter and order by start time", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "classes" WHERE "date" = $1 ORDER BY "start_time" ASC`)).
			WithArgs("2024-01-15").
			WillReturnRows(sqlmock.NewRows(classColumns).
				AddRow("c1", "b1", "2024-01-15", "07:00:00", 12).
				AddRow("c2", "b1", "2024-01-15", "18:00:00", 12))
		mock.ExpectCommit()

		classes, err := QueryAll[classRow](ctx, p, "classes", QueryOptions{
			Filter: map[string]any{"date": "2024-01-15"},
			Order:  &Order{Column: "start_time", Ascending: true},
		})

		require.NoError(t, err)
		require.Len(t, classes, 2)
		assert.Equal(t, "07:00:00", classes[0].StartTime)
		assert.Equal(t, "18:00:00", classes[1].StartTime)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No matches is an empty slice", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "classes" WHERE "date" = $1`)).
			WithArgs("2030-01-01").
			WillReturnRows(sqlmock.NewRows(classColumns))
		mock.ExpectCommit()

		classes, err := QueryAll[classRow](ctx, p, "classes", QueryOptions{
			Filter: map[string]any{"date": "2030-01-01"},
		})

		require.NoError(t, err)
		assert.NotNil(t, classes)
		assert.Empty(t, classes)
	})

	t.Run("Filters are ANDed in column order", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bookings" WHERE "athlete_id" = $1 AND "cancelled_at" IS NULL AND "status" = $2 ORDER BY "created_at" DESC LIMIT $3`)).
			WithArgs("a1", "confirmed", 5).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()

		var rows []struct {
			ID string `db:"id"`
		}
		err := p.Query(ctx, "bookings", QueryOptions{
			Filter: map[string]any{"status": "confirmed", "athlete_id": "a1", "cancelled_at": nil},
			Order:  &Order{Column: "created_at"},
			Limit:  Int(5),
		}, &rows)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Offset without limit reads one page", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "classes" LIMIT $1 OFFSET $2`)).
			WithArgs(DefaultPageSize, 20).
			WillReturnRows(sqlmock.NewRows(classColumns))
		mock.ExpectCommit()

		_, err := QueryAll[classRow](ctx, p, "classes", QueryOptions{Offset: Int(20)})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Backend error fails the whole call", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "classes"`).WillReturnError(errors.New("permission denied for table classes"))
		mock.ExpectRollback()

		classes, err := QueryAll[classRow](ctx, p, "classes", QueryOptions{})

		assert.Nil(t, classes)
		assert.ErrorContains(t, err, "query classes: permission denied")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rows failing validation are rejected", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "classes"`).
			WillReturnRows(sqlmock.NewRows(classColumns).AddRow("c1", "", "2024-01-15", "07:00:00", 12))
		mock.ExpectCommit()

		_, err := QueryAll[classRow](ctx, p, "classes", QueryOptions{})

		assert.ErrorContains(t, err, "invalid classRow")
	})
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "classes" WHERE id = $1`)).
			WithArgs("c1").
			WillReturnRows(sqlmock.NewRows(classColumns).AddRow("c1", "b1", "2024-01-15", "07:00:00", 12))
		mock.ExpectCommit()

		c, err := GetOne[classRow](ctx, p, "classes", "c1")

		require.NoError(t, err)
		assert.Equal(t, "b1", c.BoxID)
	})

	t.Run("Zero rows is ErrNotFound", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "classes" WHERE id = $1`)).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(classColumns))
		mock.ExpectRollback()

		c, err := GetOne[classRow](ctx, p, "classes", "missing")

		assert.Nil(t, c)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInsert(t *testing.T) {
	p, mock := newPostgres(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "classes" ("box_id", "capacity", "date", "start_time") VALUES ($1, $2, $3, $4) RETURNING *`)).
		WithArgs("b1", 15, "2024-01-15", "07:00:00").
		WillReturnRows(sqlmock.NewRows(classColumns).AddRow("c9", "b1", "2024-01-15", "07:00:00", 15))
	mock.ExpectCommit()

	c, err := InsertOne[classRow](context.Background(), p, "classes", Record{
		"box_id":     "b1",
		"date":       "2024-01-15",
		"start_time": "07:00:00",
		"capacity":   15,
	})

	require.NoError(t, err)
	assert.Equal(t, "c9", c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns the updated row", func(t *testing.T) {
		p, mock := newPostgres(t)
		now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "bookings" SET "checked_in" = $1, "checked_in_at" = $2 WHERE id = $3 RETURNING *`)).
			WithArgs(true, now, "bk1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "checked_in"}).AddRow("bk1", true))
		mock.ExpectCommit()

		var row struct {
			ID        string `db:"id"`
			CheckedIn bool   `db:"checked_in"`
		}
		err := p.Update(ctx, "bookings", "bk1", Record{"checked_in": true, "checked_in_at": now}, &row)

		require.NoError(t, err)
		assert.True(t, row.CheckedIn)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing id is ErrNotFound", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "boxes" SET "is_active" = $1 WHERE id = $2 RETURNING id`)).
			WithArgs(false, "nope").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := p.Update(ctx, "boxes", "nope", Record{"is_active": false}, nil)

		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty record", func(t *testing.T) {
		p, _ := newPostgres(t)

		err := p.Update(ctx, "boxes", "b1", Record{}, nil)

		assert.Error(t, err)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing row is not an error", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "bookings" WHERE id = $1`)).
			WithArgs("gone").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.NoError(t, p.Delete(ctx, "bookings", "gone"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Backend failure surfaces", func(t *testing.T) {
		p, mock := newPostgres(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "bookings" WHERE id = $1`)).
			WithArgs("bk1").
			WillReturnError(errors.New("violates foreign key constraint"))
		mock.ExpectRollback()

		err := p.Delete(ctx, "bookings", "bk1")

		assert.ErrorContains(t, err, "delete bookings")
	})
}

func TestExecute(t *testing.T) {
	p, mock := newPostgres(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "check_class_availability"("class_id" => $1)`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"check_class_availability"}).AddRow(true))
	mock.ExpectCommit()

	result, err := ExecuteAll[bool](context.Background(), p, "check_class_availability", Record{"class_id": "c1"})

	require.NoError(t, err)
	assert.Equal(t, []bool{true}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
