package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// AccessMode selects how a borrowed connection may be used.
type AccessMode int

const (
	// ReadOnly rejects statement execution on the borrowed connection.
	ReadOnly AccessMode = iota

	// ReadWrite allows both statements and queries.
	ReadWrite
)

// Conn is a scoped borrow of the handle's engine connection, valid for one
// operation or one transaction. Connections are never retained past the
// callback they are handed to.
type Conn struct {
	mode AccessMode
	conn *sql.Conn
	tx   *sql.Tx
}

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *Conn) runner() runner {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

// Exec runs one statement and reports the number of rows modified.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if c.mode != ReadWrite {
		return 0, fmt.Errorf("%w: %q", ErrReadOnlyConnection, query)
	}
	res, err := c.runner().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, newOperationError("exec", query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newOperationError("rows affected", query, err)
	}
	return n, nil
}

// Query runs a query and hands each result row to scan.
func (c *Conn) Query(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := c.runner().QueryContext(ctx, query, args...)
	if err != nil {
		return newOperationError("query", query, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return newOperationError("iterate rows", query, err)
	}
	return nil
}

// QueryRow runs a query expected to return at most one row and scans it into
// dest. It reports whether a row was found.
func (c *Conn) QueryRow(ctx context.Context, query string, args []any, dest ...any) (bool, error) {
	rows, err := c.runner().QueryContext(ctx, query, args...)
	if err != nil {
		return false, newOperationError("query", query, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, newOperationError("iterate rows", query, err)
		}
		return false, nil
	}
	if err := rows.Scan(dest...); err != nil {
		return false, newOperationError("scan row", query, err)
	}
	return true, nil
}

// WithConnection borrows a connection in the requested mode, invokes op and
// releases the connection on every exit path. op's error becomes the
// result's error.
func (h *Handle) WithConnection(ctx context.Context, mode AccessMode, op func(*Conn) error) *Result[struct{}] {
	return submit(h, "with connection", func() (struct{}, error) {
		return struct{}{}, h.withConn(ctx, mode, op)
	})
}

func (h *Handle) withConn(ctx context.Context, mode AccessMode, op func(*Conn) error) (err error) {
	conn, connErr := h.db.Conn(ctx)
	if connErr != nil {
		return newOperationError("acquire connection", "", connErr)
	}
	defer conn.Close()

	if mode == ReadOnly {
		// Enforce the mode at the engine too, so mutating SQL smuggled
		// through the query paths is rejected, not just Exec.
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return newOperationError("enter read-only mode", "", err)
		}
		// The single engine session outlives this borrow; the pragma must
		// be reset even when ctx is already done.
		defer conn.ExecContext(context.Background(), "PRAGMA query_only = OFF")
	}

	defer func() {
		if p := recover(); p != nil {
			err = newOperationError("connection op", "", fmt.Errorf("panic: %v", p))
		}
	}()

	return op(&Conn{mode: mode, conn: conn})
}

// Transaction begins an atomic transaction on a read-write connection and
// invokes op. A false return or a panic rolls the transaction back and the
// result fails with ErrTransactionAborted; a true return commits. Nested
// transactions are not supported; callers compose logic inside one callback.
func (h *Handle) Transaction(ctx context.Context, op func(*Conn) bool) *Result[struct{}] {
	return submit(h, "transaction", func() (struct{}, error) {
		return struct{}{}, h.transact(ctx, op)
	})
}

func (h *Handle) transact(ctx context.Context, op func(*Conn) bool) (err error) {
	conn, connErr := h.db.Conn(ctx)
	if connErr != nil {
		return newOperationError("acquire connection", "", connErr)
	}
	defer conn.Close()

	tx, txErr := conn.BeginTx(ctx, nil)
	if txErr != nil {
		return newOperationError("begin transaction", "", txErr)
	}
	defer tx.Rollback()

	// A panicking op must not unwind through the execution goroutine; the
	// rollback defer still runs and the caller sees an aborted transaction.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrTransactionAborted, p)
		}
	}()

	if !op(&Conn{mode: ReadWrite, tx: tx}) {
		return ErrTransactionAborted
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransactionAborted, err)
	}
	return nil
}
