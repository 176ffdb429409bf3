package repository

import (
	"context"
	"database/sql"
)

// Store bundles all persistence operations of the booking engine over one
// MySQL pool.  Methods resolve their executor from the context, so any
// combination of them can be grouped into a single atomic unit with WithTx.
// All timestamps are stored and compared in UTC.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to the provided database.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("nil db passed to NewStore")
	}
	return &Store{db: db}
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside a transaction.  Nested calls join the enclosing
// transaction instead of opening a new one.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.db, fn)
}
