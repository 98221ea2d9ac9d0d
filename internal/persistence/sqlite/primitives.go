package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Statement pairs SQL text with its bound arguments for Run.
type Statement struct {
	SQL  string
	Args []any
}

// Write executes one statement and completes with the number of rows
// modified. Statements are prepared once and cached on the handle.
func (h *Handle) Write(ctx context.Context, query string, args ...any) *Result[int64] {
	return submit(h, "write", func() (int64, error) {
		return h.exec(ctx, query, args...)
	})
}

func (h *Handle) exec(ctx context.Context, query string, args ...any) (int64, error) {
	stmt, err := h.prepared(ctx, query)
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, newOperationError("exec", query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newOperationError("rows affected", query, err)
	}
	return n, nil
}

func (h *Handle) prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := h.stmts.Get(query); ok {
		return stmt, nil
	}
	stmt, err := h.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, newOperationError("prepare", query, err)
	}
	h.stmts.Add(query, stmt)
	return stmt, nil
}

// Run executes every statement inside one transaction, aborting on the first
// failure with a full rollback.
func (h *Handle) Run(ctx context.Context, statements []Statement) *Result[struct{}] {
	return submit(h, "run", func() (struct{}, error) {
		var execErr error
		err := h.transact(ctx, func(c *Conn) bool {
			for _, st := range statements {
				if _, err := c.Exec(ctx, st.SQL, st.Args...); err != nil {
					execErr = err
					return false
				}
			}
			return true
		})
		if err != nil && execErr != nil {
			return struct{}{}, fmt.Errorf("%w: %v", ErrTransactionAborted, execErr)
		}
		return struct{}{}, err
	})
}

// Query runs query on a read-only connection and decodes each result row
// through decode, preserving row order.
func Query[T any](ctx context.Context, h *Handle, query string, args []any, decode func(*sql.Rows) (T, error)) *Result[[]T] {
	return submit(h, "query", func() ([]T, error) {
		var out []T
		err := h.withConn(ctx, ReadOnly, func(c *Conn) error {
			return c.Query(ctx, query, args, func(rows *sql.Rows) error {
				value, err := decode(rows)
				if err != nil {
					return err
				}
				out = append(out, value)
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}
