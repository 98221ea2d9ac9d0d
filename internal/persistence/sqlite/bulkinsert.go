package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Pmax is the engine's hard ceiling on bound parameters per statement.
const Pmax = 999

// identifierPattern restricts table and column names to SQL identifiers.
// The engine does not support parameterized identifiers in DDL or INSERT
// column lists, so names must be validated before string concatenation.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to splice into SQL text as a
// table or column identifier.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ConflictAction selects the INSERT variant used by bulk inserts.
type ConflictAction int

const (
	Insert ConflictAction = iota
	Replace
	InsertOrIgnore
	InsertOrReplace
	InsertOrRollback
	InsertOrAbort
	InsertOrFail
)

func (a ConflictAction) verb() string {
	switch a {
	case Replace:
		return "REPLACE INTO"
	case InsertOrIgnore:
		return "INSERT OR IGNORE INTO"
	case InsertOrReplace:
		return "INSERT OR REPLACE INTO"
	case InsertOrRollback:
		return "INSERT OR ROLLBACK INTO"
	case InsertOrAbort:
		return "INSERT OR ABORT INTO"
	case InsertOrFail:
		return "INSERT OR FAIL INTO"
	default:
		return "INSERT INTO"
	}
}

// InsertMulti splits rows into engine-legal batches and issues one statement
// per batch on c, preserving row order. It does not wrap the batches in a
// transaction: a failing batch stops the sequence but earlier batches stay
// applied. Callers needing all-or-nothing behavior invoke InsertMulti from
// inside a Transaction callback.
//
// Every row must carry exactly len(columns) non-nil values; violations are
// caller bugs and fail fast with ErrBulkInsertPrecondition before any
// statement executes.
func InsertMulti(ctx context.Context, c *Conn, table string, action ConflictAction, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if err := checkBulkShape(table, columns, rows); err != nil {
		return err
	}

	perChunk := chunkSize(len(columns), len(rows))
	for start := 0; start < len(rows); start += perChunk {
		end := min(start+perChunk, len(rows))
		if err := insertChunk(ctx, c, table, action, columns, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// chunkSize returns how many rows of the given width fit into one statement.
// A row set that fits entirely under Pmax goes out as a single statement.
func chunkSize(width, total int) int {
	if width*total < Pmax {
		return total
	}
	return Pmax / width
}

func checkBulkShape(table string, columns []string, rows [][]any) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("%w: invalid table name %q", ErrBulkInsertPrecondition, table)
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: no columns", ErrBulkInsertPrecondition)
	}
	if len(columns) >= Pmax {
		// A single row of this width can never be legally bound.
		return fmt.Errorf("%w: %d columns meet or exceed the %d parameter ceiling",
			ErrBulkInsertPrecondition, len(columns), Pmax)
	}
	for _, column := range columns {
		if !ValidIdentifier(column) {
			return fmt.Errorf("%w: invalid column name %q", ErrBulkInsertPrecondition, column)
		}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%w: row %d has %d values, want %d",
				ErrBulkInsertPrecondition, i, len(row), len(columns))
		}
		for j, value := range row {
			if value == nil {
				return fmt.Errorf("%w: row %d column %q is nil",
					ErrBulkInsertPrecondition, i, columns[j])
			}
		}
	}
	return nil
}

func insertChunk(ctx context.Context, c *Conn, table string, action ConflictAction, columns []string, rows [][]any) error {
	var b strings.Builder
	b.WriteString(action.verb())
	b.WriteByte(' ')
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	placeholder := "(?" + strings.Repeat(", ?", len(columns)-1) + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholder)
		args = append(args, row...)
	}

	_, err := c.Exec(ctx, b.String(), args...)
	return err
}

// BulkInsert is the handle-level asynchronous form of InsertMulti, issued on
// a single read-write connection.
func (h *Handle) BulkInsert(ctx context.Context, table string, action ConflictAction, columns []string, rows [][]any) *Result[struct{}] {
	return submit(h, "bulk insert", func() (struct{}, error) {
		return struct{}{}, h.withConn(ctx, ReadWrite, func(c *Conn) error {
			return InsertMulti(ctx, c, table, action, columns, rows)
		})
	})
}
