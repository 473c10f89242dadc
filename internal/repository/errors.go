// Package repository holds the SQL for orders, tables, reservations and
// settings. Sentinel errors let the service and handler layers tell a
// missing row from a lost race or a retryable datastore failure.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional write matched no row because
// another request changed the state first, or when a unique key collides.
var ErrConflict = errors.New("conflict")

// ErrTransient wraps failures worth retrying: deadlocks, lock wait
// timeouts and dropped connections.
var ErrTransient = errors.New("transient datastore error")

const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	mysqlQueryInterrupted = 1317
)

// classify maps driver errors onto the sentinels, keeping the original in
// the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case mysqlDeadlock, mysqlLockWaitTimeout, mysqlQueryInterrupted:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// maxTxAttempts bounds RunInTx retries on ErrTransient.
const maxTxAttempts = 3

// RunInTx runs fn inside a transaction, committing on nil and rolling back
// otherwise. The whole transaction is retried when it fails with
// ErrTransient, so fn must not have side effects outside tx.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if err = runOnce(ctx, db, fn); !errors.Is(err, ErrTransient) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func runOnce(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

// execAffected runs a conditional write and reports ErrConflict when it
// matched no row.
func execAffected(ctx context.Context, ex execer, q string, args ...interface{}) error {
	res, err := ex.ExecContext(ctx, q, args...)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
