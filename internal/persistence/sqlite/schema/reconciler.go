package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/embedded-store/internal/logging"
	"github.com/example/embedded-store/internal/persistence/sqlite"
)

// Outcome is the terminal state of one table's reconciliation.
type Outcome int

const (
	// OutcomeExists means the table was already at its target version.
	OutcomeExists Outcome = iota

	// OutcomeCreated means the table was created at its target version.
	OutcomeCreated

	// OutcomeUpdated means the table was upgraded to its target version.
	OutcomeUpdated

	// OutcomeFailed means every fallback for the table was exhausted.
	OutcomeFailed
)

// String returns the outcome name for logs and reports.
func (o Outcome) String() string {
	switch o {
	case OutcomeExists:
		return "exists"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "failed"
	}
}

// Report pairs a table name with its reconciliation outcome.
type Report struct {
	Table   string
	Outcome Outcome
}

// Reconciler drives every registered table to its target version, recording
// outcomes in the schema catalog. The catalog itself is reconciled first.
// A reconciler relocates the database file at most once; a second unusable
// transaction is fatal.
//
// The reconciler references tables, it does not own them; the registry stays
// with the application.
type Reconciler struct {
	catalog   *Catalog
	logger    *slog.Logger
	relocated bool
}

// NewReconciler creates a reconciler. A nil logger falls back to the logger
// carried by the reconcile context.
func NewReconciler(logger *slog.Logger) *Reconciler {
	return &Reconciler{catalog: NewCatalog(), logger: logger}
}

// Catalog exposes the reconciler's catalog model for status inspection.
func (r *Reconciler) Catalog() *Catalog {
	return r.catalog
}

func (r *Reconciler) log(ctx context.Context) *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logging.FromContext(ctx)
}

// Reconcile brings the catalog and then each table, in registration order,
// to its target version. The returned handle replaces h when the database
// file had to be relocated; callers must use it for all further access.
func (r *Reconciler) Reconcile(ctx context.Context, h *sqlite.Handle, tables []Table) (*sqlite.Handle, []Report, error) {
	all := make([]Table, 0, len(tables)+1)
	all = append(all, r.catalog)
	all = append(all, tables...)

	for {
		reports, err := r.pass(ctx, h, all)
		if err == nil {
			return h, reports, nil
		}
		if r.relocated {
			return h, reports, fmt.Errorf("%w: %v", sqlite.ErrRelocationExhausted, err)
		}
		r.relocated = true

		// The transaction could not commit: a corrupted file or credential
		// mismatch must not brick the application. Move the file aside and
		// reconcile everything again on a fresh, empty database.
		r.log(ctx).Error("database unusable, relocating",
			"path", h.Path(), "error", fmt.Errorf("%w: %v", sqlite.ErrDatabaseUnusable, err))

		fresh, backup, relErr := sqlite.RelocateToBackup(h)
		if relErr != nil {
			return h, reports, relErr
		}
		r.log(ctx).Warn("database moved to backup", "backup", backup)
		h = fresh
	}
}

func (r *Reconciler) pass(ctx context.Context, h *sqlite.Handle, all []Table) ([]Report, error) {
	reports := make([]Report, 0, len(all))
	for _, table := range all {
		name := table.Descriptor().Name
		outcome, err := r.reconcileTable(ctx, h, table)
		if err != nil {
			return reports, err
		}
		reports = append(reports, Report{Table: name, Outcome: outcome})
		r.log(ctx).Info("table reconciled", "table", name, "outcome", outcome.String())
	}
	return reports, nil
}

// reconcileTable runs the create/update/recreate state machine for one table
// inside a single transaction.
func (r *Reconciler) reconcileTable(ctx context.Context, h *sqlite.Handle, table Table) (Outcome, error) {
	desc := table.Descriptor()
	outcome := OutcomeFailed
	var stepErr error

	err := h.Transaction(ctx, func(c *sqlite.Conn) bool {
		var ok bool
		outcome, ok, stepErr = r.step(ctx, c, table)
		if ok {
			return true
		}

		// Failed: drop the table, discard its record and retry a fresh
		// create once, still inside the same transaction. A success leaves
		// the database equal to a fresh install of this table.
		r.log(ctx).Warn("reconciliation failed, recreating table",
			"table", desc.Name, "error", stepErr)

		if !table.Drop(ctx, c) {
			return false
		}
		if desc.Name != CatalogName {
			if err := r.catalog.Remove(ctx, c, desc.Name); err != nil {
				stepErr = newTableError(desc.Name, 0, desc.TargetVersion, "remove record",
					fmt.Errorf("%w: %v", ErrBookkeeping, err))
				return false
			}
		}
		if !table.Create(ctx, c, desc.TargetVersion) {
			stepErr = newTableError(desc.Name, 0, desc.TargetVersion, "create after drop", ErrTableCreation)
			return false
		}
		if err := r.record(ctx, c, desc); err != nil {
			stepErr = err
			return false
		}

		outcome = OutcomeCreated
		stepErr = nil
		return true
	}).Err()

	if err != nil {
		if stepErr != nil {
			return OutcomeFailed, fmt.Errorf("%w (%v)", stepErr, err)
		}
		return OutcomeFailed, err
	}
	return outcome, nil
}

// step attempts the create or update path once. The second return reports
// whether the step succeeded; on false the caller runs the recreate fallback.
func (r *Reconciler) step(ctx context.Context, c *sqlite.Conn, table Table) (Outcome, bool, error) {
	desc := table.Descriptor()

	if !table.Exists(ctx, c) {
		if !table.Create(ctx, c, desc.TargetVersion) {
			return OutcomeFailed, false, newTableError(desc.Name, 0, desc.TargetVersion, "create", ErrTableCreation)
		}
		if err := r.record(ctx, c, desc); err != nil {
			return OutcomeFailed, false, err
		}
		return OutcomeCreated, true, nil
	}

	from, err := r.catalog.Version(ctx, c, desc.Name)
	if err != nil {
		return OutcomeFailed, false, newTableError(desc.Name, 0, desc.TargetVersion, "read record",
			fmt.Errorf("%w: %v", ErrBookkeeping, err))
	}

	if from == desc.TargetVersion {
		return OutcomeExists, true, nil
	}
	if from > desc.TargetVersion {
		// Ownership moved to an older build. The recorded version never
		// decreases, so leave the table untouched.
		r.log(ctx).Warn("table recorded ahead of target, leaving as is",
			"table", desc.Name, "recorded", from, "target", desc.TargetVersion)
		return OutcomeExists, true, nil
	}

	if !table.Upgrade(ctx, c, from, desc.TargetVersion) {
		return OutcomeFailed, false, newTableError(desc.Name, from, desc.TargetVersion, "upgrade", ErrTableUpdate)
	}
	if err := r.record(ctx, c, desc); err != nil {
		return OutcomeFailed, false, err
	}
	return OutcomeUpdated, true, nil
}

func (r *Reconciler) record(ctx context.Context, c *sqlite.Conn, desc Descriptor) error {
	if err := r.catalog.SetVersion(ctx, c, desc.Name, desc.TargetVersion); err != nil {
		return newTableError(desc.Name, 0, desc.TargetVersion, "record version",
			fmt.Errorf("%w: %v", ErrBookkeeping, err))
	}
	return nil
}
