package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"wodbox/internal/metrics"
)

// Runner opens a transaction scoped to the caller's identity.
type Runner interface {
	Run(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type Postgres struct {
	runner Runner
}

func NewPostgres(runner Runner) *Postgres {
	return &Postgres{runner: runner}
}

func (p *Postgres) Query(ctx context.Context, table string, opts QueryOptions, dest any) error {
	query, args := buildSelect(table, opts)

	return p.run(ctx, "query", table, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, dest, query, args...)
	})
}

func (p *Postgres) GetByID(ctx context.Context, table, id string, dest any) error {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, pq.QuoteIdentifier(table))

	return p.run(ctx, "get", table, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, dest, query, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
}

func (p *Postgres) Insert(ctx context.Context, table string, rec Record, dest any) error {
	if len(rec) == 0 {
		return fmt.Errorf("insert %s: empty record", table)
	}

	cols, args := splitRecord(rec)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		pq.QuoteIdentifier(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	return p.run(ctx, "insert", table, func(tx *sqlx.Tx) error {
		if dest == nil {
			_, err := tx.ExecContext(ctx, query, args...)
			return err
		}
		return tx.GetContext(ctx, dest, query, args...)
	})
}

func (p *Postgres) Update(ctx context.Context, table, id string, rec Record, dest any) error {
	if len(rec) == 0 {
		return fmt.Errorf("update %s: empty record", table)
	}

	cols, args := splitRecord(rec)
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args = append(args, id)
	returning := "*"
	if dest == nil {
		var updatedID string
		dest, returning = &updatedID, "id"
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING %s`,
		pq.QuoteIdentifier(table), strings.Join(sets, ", "), len(args), returning)

	return p.run(ctx, "update", table, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, dest, query, args...)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
}

// Delete removes the row with id. A missing row is not an error.
func (p *Postgres) Delete(ctx context.Context, table, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pq.QuoteIdentifier(table))

	return p.run(ctx, "delete", table, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query, id)
		return err
	})
}

// Execute calls a set-returning or scalar stored function with named
// arguments and scans its rows into dest.
func (p *Postgres) Execute(ctx context.Context, name string, params Record, dest any) error {
	cols, args := splitRecord(params)
	named := make([]string, len(cols))
	for i, col := range cols {
		named[i] = fmt.Sprintf("%s => $%d", col, i+1)
	}
	query := fmt.Sprintf(`SELECT * FROM %s(%s)`, pq.QuoteIdentifier(name), strings.Join(named, ", "))

	return p.run(ctx, "rpc", name, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, dest, query, args...)
	})
}

func (p *Postgres) run(ctx context.Context, op, table string, fn func(tx *sqlx.Tx) error) error {
	start := time.Now()
	err := p.runner.Run(ctx, fn)
	metrics.RecordBackendCall(op, table, err, time.Since(start).Seconds())

	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}

func buildSelect(table string, opts QueryOptions) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT * FROM %s`, pq.QuoteIdentifier(table))

	keys := make([]string, 0, len(opts.Filter))
	for k := range opts.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []any
	for i, k := range keys {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		if opts.Filter[k] == nil {
			fmt.Fprintf(&b, "%s IS NULL", pq.QuoteIdentifier(k))
			continue
		}
		args = append(args, opts.Filter[k])
		fmt.Fprintf(&b, "%s = $%d", pq.QuoteIdentifier(k), len(args))
	}

	if opts.Order != nil {
		dir := "DESC"
		if opts.Order.Ascending {
			dir = "ASC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", pq.QuoteIdentifier(opts.Order.Column), dir)
	}

	limit := opts.Limit
	if opts.Offset != nil && limit == nil {
		limit = Int(DefaultPageSize)
	}
	if limit != nil {
		args = append(args, *limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if opts.Offset != nil {
		args = append(args, *opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	return b.String(), args
}

// splitRecord returns quoted column names in a stable order with their
// values aligned.
func splitRecord(rec Record) ([]string, []any) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = pq.QuoteIdentifier(k)
		args[i] = rec[k]
	}
	return cols, args
}
