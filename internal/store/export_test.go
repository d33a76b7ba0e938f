package store

import (
	"context"
	"database/sql"
)

// DB exposes the internal *sql.DB for test helpers in store_test.
// This file only compiles during `go test`.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// SetCommitHook replaces the commit step of every transaction.
func (s *SQLiteStore) SetCommitHook(fn func(tx *sql.Tx) error) {
	s.hooks.commit = fn
}

// SetExecHook replaces statement execution. fn receives the SQL text and
// returns a non-nil error to fail that statement.
func (s *SQLiteStore) SetExecHook(fn func(query string) error) {
	s.hooks.exec = func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
		if err := fn(query); err != nil {
			return nil, err
		}
		return db.ExecContext(ctx, query, args...)
	}
}

// Truncate empties every table. Tests share one Postgres database.
func (s *PostgresStore) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE specs, stories, tasks`)
	return err
}

// SetBeginTxHook observes every transaction start. fn receives the options
// the store asked for.
func (s *SQLiteStore) SetBeginTxHook(fn func(opts *sql.TxOptions)) {
	s.hooks.beginTx = func(ctx context.Context, db *sql.DB, opts *sql.TxOptions) (*sql.Tx, error) {
		fn(opts)
		return db.BeginTx(ctx, opts)
	}
}
