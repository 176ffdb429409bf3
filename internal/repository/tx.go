package repository

import (
	"context"
	"database/sql"
)

// execer is the subset of *sql.DB and *sql.Tx the stores need.  Resolving
// the executor through the context lets every store method run either
// standalone or inside a transaction started by WithTx, without duplicating
// Tx variants of each query.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKey struct{}

// withTx runs fn inside a database transaction attached to the context.
// When the context already carries a transaction, fn joins it: the nested
// call neither commits nor rolls back, so a multi-step operation such as a
// payment batch stays a single atomic unit.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// exec returns the transaction bound to the context when present, the bare
// pool otherwise.
func exec(ctx context.Context, db *sql.DB) execer {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}
