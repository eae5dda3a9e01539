// Package memstore is an in-memory datastore.Database for tests. Rows are
// held as decoded JSON objects and copied into destinations through JSON,
// so entity json tags must match column names.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wodbox/internal/datastore"
)

type Procedure func(params datastore.Record) (any, error)

type Store struct {
	mu       sync.Mutex
	tables   map[string][]map[string]any
	defaults map[string]datastore.Record
	procs    map[string]Procedure
	failures map[string]error
	calls    map[string]int
	now      func() time.Time
}

var _ datastore.Database = (*Store)(nil)

func New() *Store {
	return &Store{
		tables:   map[string][]map[string]any{},
		defaults: map[string]datastore.Record{},
		procs:    map[string]Procedure{},
		failures: map[string]error{},
		calls:    map[string]int{},
		now:      time.Now,
	}
}

// SetDefaults registers column defaults applied on insert, standing in for
// the database's DEFAULT clauses.
func (s *Store) SetDefaults(table string, rec datastore.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[table] = rec
}

func (s *Store) RegisterProcedure(name string, fn Procedure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[name] = fn
}

// Fail makes every subsequent op on table return err until cleared with a
// nil err. op is one of query, get, insert, update, delete, rpc.
func (s *Store) Fail(op, table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op+":"+table)
		return
	}
	s.failures[op+":"+table] = err
}

// Calls reports how many times op ran against table.
func (s *Store) Calls(op, table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op+":"+table]
}

// Seed inserts rows verbatim, without defaults or generated fields.
func (s *Store) Seed(table string, rows ...datastore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		row, err := normalize(r)
		if err != nil {
			return err
		}
		s.tables[table] = append(s.tables[table], row)
	}
	return nil
}

func (s *Store) begin(op, table string) error {
	key := op + ":" + table
	s.calls[key]++
	return s.failures[key]
}

func (s *Store) Query(ctx context.Context, table string, opts datastore.QueryOptions, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("query", table); err != nil {
		return err
	}

	filter, err := normalize(opts.Filter)
	if err != nil {
		return err
	}

	var rows []map[string]any
	for _, row := range s.tables[table] {
		if matches(row, filter) {
			rows = append(rows, row)
		}
	}

	if opts.Order != nil {
		col, asc := opts.Order.Column, opts.Order.Ascending
		sort.SliceStable(rows, func(i, j int) bool {
			if asc {
				return less(rows[i][col], rows[j][col])
			}
			return less(rows[j][col], rows[i][col])
		})
	}

	limit := opts.Limit
	if opts.Offset != nil && limit == nil {
		limit = datastore.Int(datastore.DefaultPageSize)
	}
	if opts.Offset != nil {
		if *opts.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[*opts.Offset:]
		}
	}
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}

	if rows == nil {
		rows = []map[string]any{}
	}
	return decode(rows, dest)
}

func (s *Store) GetByID(ctx context.Context, table, id string, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("get", table); err != nil {
		return err
	}

	row, _ := s.find(table, id)
	if row == nil {
		return datastore.ErrNotFound
	}
	return decode(row, dest)
}

func (s *Store) Insert(ctx context.Context, table string, rec datastore.Record, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("insert", table); err != nil {
		return err
	}

	row, err := normalize(rec)
	if err != nil {
		return err
	}
	for k, v := range s.defaults[table] {
		if _, ok := row[k]; !ok {
			row[k] = v
		}
	}
	if row, err = normalize(row); err != nil {
		return err
	}

	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	} else if existing, _ := s.find(table, fmt.Sprint(row["id"])); existing != nil {
		return fmt.Errorf("duplicate key value violates unique constraint \"%s_pkey\"", table)
	}
	now := s.now().UTC().Format(time.RFC3339Nano)
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = now
	}
	if _, ok := row["updated_at"]; !ok {
		row["updated_at"] = now
	}

	s.tables[table] = append(s.tables[table], row)
	if dest == nil {
		return nil
	}
	return decode(row, dest)
}

func (s *Store) Update(ctx context.Context, table, id string, rec datastore.Record, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("update", table); err != nil {
		return err
	}

	row, _ := s.find(table, id)
	if row == nil {
		return datastore.ErrNotFound
	}
	changes, err := normalize(rec)
	if err != nil {
		return err
	}
	for k, v := range changes {
		row[k] = v
	}
	if _, ok := changes["updated_at"]; !ok {
		row["updated_at"] = s.now().UTC().Format(time.RFC3339Nano)
	}

	if dest == nil {
		return nil
	}
	return decode(row, dest)
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("delete", table); err != nil {
		return err
	}

	if _, i := s.find(table, id); i >= 0 {
		rows := s.tables[table]
		s.tables[table] = append(rows[:i:i], rows[i+1:]...)
	}
	return nil
}

func (s *Store) Execute(ctx context.Context, name string, params datastore.Record, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.begin("rpc", name); err != nil {
		s.mu.Unlock()
		return err
	}
	fn, ok := s.procs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("function %s does not exist", name)
	}

	result, err := fn(params)
	if err != nil {
		return err
	}
	if rv := reflect.ValueOf(result); !rv.IsValid() || rv.Kind() != reflect.Slice {
		result = []any{result}
	}
	return decode(result, dest)
}

// Rows returns a copy of every row in table, for assertions.
func (s *Store) Rows(table string) []datastore.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]datastore.Record, 0, len(s.tables[table]))
	for _, row := range s.tables[table] {
		cp := datastore.Record{}
		for k, v := range row {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

func (s *Store) find(table, id string) (map[string]any, int) {
	for i, row := range s.tables[table] {
		if fmt.Sprint(row["id"]) == id {
			return row, i
		}
	}
	return nil, -1
}

func matches(row, filter map[string]any) bool {
	for k, want := range filter {
		if !reflect.DeepEqual(row[k], want) {
			return false
		}
	}
	return true
}

func less(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b != nil
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case float64:
		bv, ok := b.(float64)
		return ok && av < bv
	case bool:
		bv, ok := b.(bool)
		return ok && !av && bv
	}
	return false
}

// normalize round-trips v through JSON so stored values and filter values
// share one representation.
func normalize(v any) (map[string]any, error) {
	out := map[string]any{}
	if v == nil {
		return out, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func decode(v any, dest any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode into %T: %w", dest, err)
	}
	return nil
}
