// Package repository provides dialect-aware helpers for transactions and
// query execution. Queries are written with PostgreSQL $N placeholders and
// rebound for the target dialect before they reach the driver.
package repository

import (
	"context"
	"database/sql"
)

// Querier is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner abstracts row scanning for use with query helpers.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc converts a Scanner into a typed value.
// Domain packages define their own scan functions for entity types.
type ScanFunc[T any] func(Scanner) (T, error)

// WithTx executes fn within a database transaction.
// On SQLite the whole transaction is retried while it fails with a busy error,
// so fn must be safe to run more than once.
func WithTx[T any](ctx context.Context, db *sql.DB, d Dialect, fn func(tx *sql.Tx) (T, error)) (T, error) {
	return RetryOnBusy(ctx, d, func() (T, error) {
		var zero T

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return zero, err
		}
		defer tx.Rollback()

		result, err := fn(tx)
		if err != nil {
			return zero, err
		}

		if err := tx.Commit(); err != nil {
			return zero, err
		}

		return result, nil
	})
}

// QueryOne executes a query expected to return a single row.
// A missing row surfaces as sql.ErrNoRows from scan.
func QueryOne[T any](ctx context.Context, q Querier, d Dialect, query string, args []any, scan ScanFunc[T]) (T, error) {
	query, args = d.Rebind(query, args)
	return scan(q.QueryRowContext(ctx, query, args...))
}

// QueryMany executes a query expected to return multiple rows.
// Returns an empty slice if no rows are found.
func QueryMany[T any](ctx context.Context, q Querier, d Dialect, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	query, args = d.Rebind(query, args)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// Exec executes a statement and returns the number of affected rows.
func Exec(ctx context.Context, e Executor, d Dialect, query string, args ...any) (int64, error) {
	query, args = d.Rebind(query, args)

	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ExecExpectOne executes a statement expected to affect at least one row.
// Returns sql.ErrNoRows if no rows were affected.
func ExecExpectOne(ctx context.Context, e Executor, d Dialect, query string, args ...any) error {
	n, err := Exec(ctx, e, d, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
