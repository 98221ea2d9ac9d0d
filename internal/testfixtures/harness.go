package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/embedded-store/internal/persistence/sqlite"
	"github.com/example/embedded-store/internal/persistence/sqlite/schema"
)

// StoreHarness provides a reconciled database handle backed by a temporary
// file for integration-style tests.
type StoreHarness struct {
	Handle  *sqlite.Handle
	Catalog *schema.Catalog
	Path    string

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *StoreHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewStoreHarness opens a handle on a temporary database file and reconciles
// the given tables. Callers may optionally invoke Close, but the helper also
// registers a cleanup callback with the provided testing.TB.
func NewStoreHarness(tb testing.TB, tables ...schema.Table) *StoreHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "store.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handle, err := sqlite.Open(path, sqlite.Options{Logger: logger})
	if err != nil {
		tb.Fatalf("failed to open handle: %v", err)
	}

	rec := schema.NewReconciler(logger)
	handle, _, err = rec.Reconcile(context.Background(), handle, tables)
	if err != nil {
		_ = handle.Close()
		tb.Fatalf("failed to reconcile tables: %v", err)
	}

	harness := &StoreHarness{
		Handle:  handle,
		Catalog: rec.Catalog(),
		Path:    path,
	}
	harness.cleanup = func() {
		_ = harness.Handle.Close()
	}

	tb.Cleanup(harness.Close)
	return harness
}
