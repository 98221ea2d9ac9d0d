package schema

import (
	"errors"
	"fmt"
)

// Reconciliation error sentinels
var (
	// ErrTableCreation indicates a table could not be created
	ErrTableCreation = errors.New("table creation failed")

	// ErrTableUpdate indicates a table could not be upgraded to its target version
	ErrTableUpdate = errors.New("table update failed")

	// ErrBookkeeping indicates the catalog write itself failed
	ErrBookkeeping = errors.New("schema catalog bookkeeping failed")
)

// TableError carries the table and version span of a failed reconciliation
// step.
type TableError struct {
	Table     string // Table being reconciled
	From      int    // Version the step started from (0 for fresh creates)
	To        int    // Version the step aimed for
	Operation string // Step being performed (create, upgrade, record version)
	Err       error  // Underlying error
}

// Error implements the error interface
func (e *TableError) Error() string {
	if e.From != e.To {
		return fmt.Sprintf("table %s: %s (%d -> %d): %v", e.Table, e.Operation, e.From, e.To, e.Err)
	}
	return fmt.Sprintf("table %s: %s: %v", e.Table, e.Operation, e.Err)
}

// Unwrap returns the underlying error for error unwrapping
func (e *TableError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error
func (e *TableError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newTableError(table string, from, to int, operation string, err error) *TableError {
	return &TableError{
		Table:     table,
		From:      from,
		To:        to,
		Operation: operation,
		Err:       err,
	}
}
