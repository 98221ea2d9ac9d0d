package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestReadOnlyConnectionRejectsWrites(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	mustExec(t, h, "CREATE TABLE guarded (n INTEGER)")

	err := h.WithConnection(ctx, ReadOnly, func(c *Conn) error {
		_, err := c.Exec(ctx, "INSERT INTO guarded (n) VALUES (1)")
		return err
	}).Err()
	if !errors.Is(err, ErrReadOnlyConnection) {
		t.Fatalf("Expected ErrReadOnlyConnection, got %v", err)
	}

	if got := countRows(t, h, "guarded"); got != 0 {
		t.Errorf("Read-only connection modified the table: %d rows", got)
	}
}

func TestReadOnlyConnectionAllowsQueries(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	mustExec(t, h, "CREATE TABLE readable (n INTEGER)")
	mustExec(t, h, "INSERT INTO readable (n) VALUES (7)")

	var n int
	var found bool
	err := h.WithConnection(ctx, ReadOnly, func(c *Conn) error {
		var err error
		found, err = c.QueryRow(ctx, "SELECT n FROM readable", nil, &n)
		return err
	}).Err()
	if err != nil {
		t.Fatalf("WithConnection failed: %v", err)
	}
	if !found || n != 7 {
		t.Errorf("Expected to read 7, got found=%v n=%d", found, n)
	}
}

func TestWithConnectionPropagatesOpError(t *testing.T) {
	h := newTestHandle(t)
	sentinel := errors.New("op gave up")

	err := h.WithConnection(context.Background(), ReadWrite, func(c *Conn) error {
		return sentinel
	}).Err()
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected op error to propagate, got %v", err)
	}
}

func TestTransactionCommitsOnTrue(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	mustExec(t, h, "CREATE TABLE committed (n INTEGER)")

	err := h.Transaction(ctx, func(c *Conn) bool {
		if _, err := c.Exec(ctx, "INSERT INTO committed (n) VALUES (1)"); err != nil {
			return false
		}
		if _, err := c.Exec(ctx, "INSERT INTO committed (n) VALUES (2)"); err != nil {
			return false
		}
		return true
	}).Err()
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	if got := countRows(t, h, "committed"); got != 2 {
		t.Errorf("Expected 2 rows after commit, got %d", got)
	}
}

func TestTransactionRollsBackOnFalse(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	mustExec(t, h, "CREATE TABLE aborted (n INTEGER)")

	err := h.Transaction(ctx, func(c *Conn) bool {
		if _, err := c.Exec(ctx, "INSERT INTO aborted (n) VALUES (1)"); err != nil {
			return false
		}
		return false
	}).Err()
	if !errors.Is(err, ErrTransactionAborted) {
		t.Fatalf("Expected ErrTransactionAborted, got %v", err)
	}

	if got := countRows(t, h, "aborted"); got != 0 {
		t.Errorf("Rollback left %d rows behind", got)
	}
}

func TestTransactionRollsBackStructuralChanges(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	err := h.Transaction(ctx, func(c *Conn) bool {
		if _, err := c.Exec(ctx, "CREATE TABLE ephemeral (n INTEGER)"); err != nil {
			return false
		}
		return false
	}).Err()
	if !errors.Is(err, ErrTransactionAborted) {
		t.Fatalf("Expected ErrTransactionAborted, got %v", err)
	}

	var one int
	var found bool
	err = h.WithConnection(ctx, ReadOnly, func(c *Conn) error {
		var err error
		found, err = c.QueryRow(ctx,
			"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'ephemeral'", nil, &one)
		return err
	}).Err()
	if err != nil {
		t.Fatalf("Existence check failed: %v", err)
	}
	if found {
		t.Error("Table created inside a rolled-back transaction still exists")
	}
}

func TestTransactionPanicRollsBack(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	mustExec(t, h, "CREATE TABLE panicky (n INTEGER)")

	err := h.Transaction(ctx, func(c *Conn) bool {
		if _, err := c.Exec(ctx, "INSERT INTO panicky (n) VALUES (1)"); err != nil {
			return false
		}
		panic("op bug")
	}).Err()
	if !errors.Is(err, ErrTransactionAborted) {
		t.Fatalf("Expected ErrTransactionAborted after panic, got %v", err)
	}

	if got := countRows(t, h, "panicky"); got != 0 {
		t.Errorf("Panicking transaction left %d rows behind", got)
	}

	// The execution goroutine survived; the handle still serves operations.
	mustExec(t, h, "INSERT INTO panicky (n) VALUES (2)")
	if got := countRows(t, h, "panicky"); got != 1 {
		t.Errorf("Expected 1 row after recovery, got %d", got)
	}
}

func TestWithConnectionPanicFailsResult(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	err := h.WithConnection(ctx, ReadWrite, func(c *Conn) error {
		panic("op bug")
	}).Err()
	if err == nil {
		t.Fatal("Expected a panicking op to fail the result")
	}

	if err := h.Ping(ctx); err != nil {
		t.Errorf("Handle unusable after recovered panic: %v", err)
	}
}

func TestReadOnlyConnectionRejectsMutatingQueries(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	mustExec(t, h, "CREATE TABLE sneaky (v TEXT)")

	// A write smuggled through the query path must be stopped by the engine.
	err := h.WithConnection(ctx, ReadOnly, func(c *Conn) error {
		return c.Query(ctx, "INSERT INTO sneaky (v) VALUES ('oops') RETURNING rowid", nil,
			func(*sql.Rows) error { return nil })
	}).Err()
	if err == nil {
		t.Fatal("Expected a mutating query on a read-only connection to fail")
	}

	if got := countRows(t, h, "sneaky"); got != 0 {
		t.Errorf("Read-only connection mutated the database: %d row(s)", got)
	}

	// The shared session left read-only mode when the borrow ended.
	mustExec(t, h, "INSERT INTO sneaky (v) VALUES ('fine')")
	if got := countRows(t, h, "sneaky"); got != 1 {
		t.Errorf("Expected 1 row after the read-write insert, got %d", got)
	}
}

func TestRunIsAtomic(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	mustExec(t, h, "CREATE TABLE batch (n INTEGER)")

	// The second statement is malformed; the first must be rolled back.
	err := h.Run(ctx, []Statement{
		{SQL: "INSERT INTO batch (n) VALUES (?)", Args: []any{1}},
		{SQL: "INSERT INTO nowhere_to_be_found (n) VALUES (?)", Args: []any{2}},
	}).Err()
	if !errors.Is(err, ErrTransactionAborted) {
		t.Fatalf("Expected ErrTransactionAborted, got %v", err)
	}

	if got := countRows(t, h, "batch"); got != 0 {
		t.Errorf("Expected table state unchanged after failed run, got %d rows", got)
	}
}

func TestRunAppliesAllStatements(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	mustExec(t, h, "CREATE TABLE batch2 (n INTEGER)")

	err := h.Run(ctx, []Statement{
		{SQL: "INSERT INTO batch2 (n) VALUES (?)", Args: []any{1}},
		{SQL: "INSERT INTO batch2 (n) VALUES (?)", Args: []any{2}},
		{SQL: "UPDATE batch2 SET n = n + 10"},
	}).Err()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := countRows(t, h, "batch2"); got != 2 {
		t.Errorf("Expected 2 rows, got %d", got)
	}
}
