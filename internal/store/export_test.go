package store

import (
	"context"
	"database/sql"
	"time"
)

// DB exposes the internal *sql.DB for test helpers in store_test.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FailExecWhen makes every statement for which match returns true fail with err.
func (s *Store) FailExecWhen(match func(query string) bool, err error) {
	s.hooks.exec = func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
		if match(query) {
			return nil, err
		}
		return db.ExecContext(ctx, query, args...)
	}
}

// FailCommit makes every transaction commit fail with err.
func (s *Store) FailCommit(err error) {
	s.hooks.commit = func(*sql.Tx) error { return err }
}

// SetClock pins the store clock and returns a restore func.
func SetClock(t time.Time) func() {
	prev := timeNow
	timeNow = func() time.Time { return t }
	return func() { timeNow = prev }
}
