package schema

import (
	"context"

	"github.com/example/embedded-store/internal/persistence/sqlite"
)

// Descriptor identifies a migratable table: a unique name and the version
// the running code requires. Descriptors are immutable per build.
type Descriptor struct {
	Name          string
	TargetVersion int
}

// Table is the capability set every migratable table implements. The
// reconciler depends only on this contract, never on concrete table types.
//
// Create must leave the table at exactly the requested version and Upgrade
// at exactly to. Both report failure by returning false rather than
// panicking, signaling the reconciler to treat the attempt as failed.
type Table interface {
	Descriptor() Descriptor
	Exists(ctx context.Context, c *sqlite.Conn) bool
	Create(ctx context.Context, c *sqlite.Conn, version int) bool
	Upgrade(ctx context.Context, c *sqlite.Conn, from, to int) bool
	Drop(ctx context.Context, c *sqlite.Conn) bool
}

// TableExists reports whether a physical table named name is present in the
// database behind c.
func TableExists(ctx context.Context, c *sqlite.Conn, name string) (bool, error) {
	var one int
	return c.QueryRow(ctx,
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?",
		[]any{name}, &one)
}
