// Package schema reconciles registered tables against the versions the
// running code expects.
//
// Every migratable table implements the Table contract (exists, create,
// upgrade, drop). A self-hosted catalog table records the installed version
// of each table, and the Reconciler drives the create/update/recreate
// decision per table inside one transaction:
//
//   - Missing table: create at the target version and record it.
//   - Present at the target version: no-op.
//   - Present at an older version: upgrade and upsert the record.
//   - Any failure: drop the table, discard its record and retry a fresh
//     create once, still inside the same transaction.
//
// When the transaction itself cannot commit the database file is treated as
// unusable: it is moved to a numbered backup path and reconciliation restarts
// against a fresh file. Data loss is accepted as the cost of availability;
// the original bytes stay on disk under the backup name.
//
// Example usage:
//
//	rec := schema.NewReconciler(logger)
//	handle, reports, err := rec.Reconcile(ctx, handle, registry)
//	if err != nil {
//		log.Fatalf("schema reconciliation failed: %v", err)
//	}
package schema
