package schema

import (
	"context"
	"log/slog"

	"github.com/example/embedded-store/internal/persistence/sqlite"
)

// Definition declares a migratable table from SQL text: the statements that
// create it directly at a given version and ordered upgrade steps between
// versions. It covers the common case where a table is fully described by
// DDL; tables needing data backfill or conditional logic implement the Table
// contract themselves.
type Definition struct {
	// Name is the physical table name. It must be a plain SQL identifier;
	// the statements returned by CreateSQL reference it verbatim.
	Name string

	// TargetVersion is the version the running code requires.
	TargetVersion int

	// CreateSQL returns the statements that create the table directly at
	// version, with no intermediate hops.
	CreateSQL func(version int) []string

	// Steps are the upgrade hops, ordered by ascending To version.
	Steps []Step

	// Logger receives step failures. Defaults to slog.Default.
	Logger *slog.Logger
}

// Step is one DDL hop between two versions.
type Step struct {
	From int
	To   int
	SQL  []string
}

// Descriptor implements the Table contract.
func (d *Definition) Descriptor() Descriptor {
	return Descriptor{Name: d.Name, TargetVersion: d.TargetVersion}
}

func (d *Definition) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Exists implements the Table contract.
func (d *Definition) Exists(ctx context.Context, c *sqlite.Conn) bool {
	found, err := TableExists(ctx, c, d.Name)
	if err != nil {
		d.log().Warn("table existence check failed", "table", d.Name, "error", err)
		return false
	}
	return found
}

// Create implements the Table contract.
func (d *Definition) Create(ctx context.Context, c *sqlite.Conn, version int) bool {
	if !sqlite.ValidIdentifier(d.Name) || d.CreateSQL == nil {
		return false
	}
	for _, stmt := range d.CreateSQL(version) {
		if _, err := c.Exec(ctx, stmt); err != nil {
			d.log().Warn("create statement failed", "table", d.Name, "error", err)
			return false
		}
	}
	return true
}

// Upgrade implements the Table contract. Steps are chained from from to to;
// a gap in the chain fails the upgrade, which makes the reconciler fall back
// to drop-and-recreate.
func (d *Definition) Upgrade(ctx context.Context, c *sqlite.Conn, from, to int) bool {
	version := from
	for _, step := range d.Steps {
		if step.To <= version || step.To > to {
			continue
		}
		if step.From != version {
			return false
		}
		for _, stmt := range step.SQL {
			if _, err := c.Exec(ctx, stmt); err != nil {
				d.log().Warn("upgrade statement failed",
					"table", d.Name, "from", step.From, "to", step.To, "error", err)
				return false
			}
		}
		version = step.To
	}
	return version == to
}

// Drop implements the Table contract.
func (d *Definition) Drop(ctx context.Context, c *sqlite.Conn) bool {
	if !sqlite.ValidIdentifier(d.Name) {
		return false
	}
	_, err := c.Exec(ctx, "DROP TABLE IF EXISTS "+d.Name)
	return err == nil
}
