package datastore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

var ErrNotFound = errors.New("record not found")

// Record is a partial row keyed by column name.
type Record map[string]any

type Order struct {
	Column    string
	Ascending bool
}

// QueryOptions narrows a Query. Filter entries are ANDed equality checks.
// An Offset without a Limit reads one page of DefaultPageSize rows.
type QueryOptions struct {
	Filter map[string]any
	Order  *Order
	Limit  *int
	Offset *int
}

const DefaultPageSize = 10

// Database is the CRUD surface domain services are written against.
// dest is a pointer to a slice for Query and Execute, and a pointer to a
// single row for the others; a nil dest discards the returned row.
type Database interface {
	Query(ctx context.Context, table string, opts QueryOptions, dest any) error
	GetByID(ctx context.Context, table, id string, dest any) error
	Insert(ctx context.Context, table string, rec Record, dest any) error
	Update(ctx context.Context, table, id string, rec Record, dest any) error
	Delete(ctx context.Context, table, id string) error
	Execute(ctx context.Context, name string, params Record, dest any) error
}

func Int(v int) *int {
	return &v
}

var validate = validator.New()

// Validate checks the validate tags of a decoded row. Non-struct values
// pass unchecked.
func Validate(v any) error {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(rv.Interface()); err != nil {
		return fmt.Errorf("invalid %s: %w", rv.Type().Name(), err)
	}
	return nil
}

func QueryAll[T any](ctx context.Context, db Database, table string, opts QueryOptions) ([]T, error) {
	var items []T
	if err := db.Query(ctx, table, opts, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	for i := range items {
		if err := Validate(&items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func GetOne[T any](ctx context.Context, db Database, table, id string) (*T, error) {
	var item T
	if err := db.GetByID(ctx, table, id, &item); err != nil {
		return nil, err
	}
	if err := Validate(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func InsertOne[T any](ctx context.Context, db Database, table string, rec Record) (*T, error) {
	var item T
	if err := db.Insert(ctx, table, rec, &item); err != nil {
		return nil, err
	}
	if err := Validate(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateOne[T any](ctx context.Context, db Database, table, id string, rec Record) (*T, error) {
	var item T
	if err := db.Update(ctx, table, id, rec, &item); err != nil {
		return nil, err
	}
	if err := Validate(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func ExecuteAll[T any](ctx context.Context, db Database, name string, params Record) ([]T, error) {
	var items []T
	if err := db.Execute(ctx, name, params, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
