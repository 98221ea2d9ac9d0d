package schema

import (
	"context"
	"database/sql"

	"github.com/example/embedded-store/internal/persistence/sqlite"
)

// CatalogName is the distinguished table that records the installed version
// of every reconciled table, itself included.
const CatalogName = "schema_versions"

// catalogVersion is the version of the catalog's own layout.
const catalogVersion = 1

// Catalog persists one (table name, installed version) row per reconciled
// table. It satisfies the Table contract so the reconciler can bring it up
// first, as the sentinel for every other table's bookkeeping. Records are
// written only by the reconciler, in the same transaction as the create or
// upgrade they describe.
type Catalog struct{}

// NewCatalog returns the catalog model. Its lifetime is tied to whichever
// handle it is reconciled against; it holds no state of its own.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Descriptor implements the Table contract.
func (c *Catalog) Descriptor() Descriptor {
	return Descriptor{Name: CatalogName, TargetVersion: catalogVersion}
}

// Exists implements the Table contract.
func (c *Catalog) Exists(ctx context.Context, conn *sqlite.Conn) bool {
	found, err := TableExists(ctx, conn, CatalogName)
	return err == nil && found
}

// Create implements the Table contract.
func (c *Catalog) Create(ctx context.Context, conn *sqlite.Conn, version int) bool {
	if version != catalogVersion {
		return false
	}
	_, err := conn.Exec(ctx,
		"CREATE TABLE IF NOT EXISTS "+CatalogName+" (name TEXT UNIQUE, version INTEGER)")
	return err == nil
}

// Upgrade implements the Table contract. The catalog layout has a single
// version; an upgrade only happens when the table predates its own record.
func (c *Catalog) Upgrade(ctx context.Context, conn *sqlite.Conn, from, to int) bool {
	return to == catalogVersion
}

// Drop implements the Table contract.
func (c *Catalog) Drop(ctx context.Context, conn *sqlite.Conn) bool {
	_, err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+CatalogName)
	return err == nil
}

// Version returns the recorded version for name, or 0 when no record exists.
func (c *Catalog) Version(ctx context.Context, conn *sqlite.Conn, name string) (int, error) {
	var version int
	found, err := conn.QueryRow(ctx,
		"SELECT version FROM "+CatalogName+" WHERE name = ?", []any{name}, &version)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return version, nil
}

// SetVersion inserts or updates the record for name. The upsert tolerates
// ownership of a physical table moving between table implementations across
// releases: a record is not guaranteed to pre-exist even when the table does.
func (c *Catalog) SetVersion(ctx context.Context, conn *sqlite.Conn, name string, version int) error {
	_, err := conn.Exec(ctx,
		"INSERT INTO "+CatalogName+" (name, version) VALUES (?, ?) "+
			"ON CONFLICT(name) DO UPDATE SET version = excluded.version",
		name, version)
	return err
}

// Remove deletes the record for name, if any.
func (c *Catalog) Remove(ctx context.Context, conn *sqlite.Conn, name string) error {
	_, err := conn.Exec(ctx, "DELETE FROM "+CatalogName+" WHERE name = ?", name)
	return err
}

// Record is one row of the catalog.
type Record struct {
	Name    string
	Version int
}

// Records returns every catalog row ordered by table name.
func (c *Catalog) Records(ctx context.Context, conn *sqlite.Conn) ([]Record, error) {
	var records []Record
	err := conn.Query(ctx,
		"SELECT name, version FROM "+CatalogName+" ORDER BY name", nil,
		func(rows *sql.Rows) error {
			var r Record
			if err := rows.Scan(&r.Name, &r.Version); err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return records, nil
}
