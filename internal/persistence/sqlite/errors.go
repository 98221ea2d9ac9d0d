package sqlite

import (
	"errors"
	"fmt"
)

// Gateway error sentinels for the different failure scenarios
var (
	// ErrDatabaseClosed indicates an operation was issued against a closed handle
	ErrDatabaseClosed = errors.New("database handle is closed")

	// ErrTransactionAborted indicates a transaction rolled back instead of committing
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrDatabaseUnusable indicates the database file cannot serve transactions
	ErrDatabaseUnusable = errors.New("database file is unusable")

	// ErrBulkInsertPrecondition indicates malformed bulk-insert input, a caller bug
	ErrBulkInsertPrecondition = errors.New("bulk insert precondition violated")

	// ErrRelocationExhausted indicates the relocate-and-retry fallback failed for good
	ErrRelocationExhausted = errors.New("database relocation exhausted")

	// ErrReadOnlyConnection indicates a write was attempted on a read-only borrow
	ErrReadOnlyConnection = errors.New("write attempted on read-only connection")
)

// OperationError wraps engine-level failures with the statement context.
type OperationError struct {
	Operation string // Operation being performed (exec, query, prepare, etc.)
	Query     string // SQL text that failed, if applicable
	Err       error  // Underlying engine error
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("database error during %s of %q: %v", e.Operation, e.Query, e.Err)
	}
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for error unwrapping
func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error
func (e *OperationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newOperationError(operation, query string, err error) *OperationError {
	return &OperationError{
		Operation: operation,
		Query:     query,
		Err:       err,
	}
}
