package shortcuts

import (
	"errors"
	"fmt"

	"github.com/pgweave/pgweave/query/fragment"
)

// Sentinel errors for matching with errors.Is.
var (
	// ErrTooFewRows indicates a SelectExactlyOne transform observed zero
	// rows.
	ErrTooFewRows = errors.New("pgweave: exactly one row expected but none returned")
)

// RowCountError reports a violated row-count invariant. It carries the
// originating statement for diagnostics; under a lateral map the violation
// is detected per outer row and fails the whole call.
type RowCountError struct {
	// Table is the table the violating statement selects from.
	Table string

	// Statement is the originating statement.
	Statement Runnable
}

// Error implements the error interface.
func (e *RowCountError) Error() string {
	return fmt.Sprintf("pgweave: exactly one %q row expected but none returned", e.Table)
}

// Is matches the ErrTooFewRows sentinel.
func (e *RowCountError) Is(target error) bool {
	return target == ErrTooFewRows
}

// QueryError reports an executor failure with the originating statement
// attached.
type QueryError struct {
	// Query is the compiled statement that failed.
	Query fragment.Compiled

	// Err is the executor error.
	Err error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("pgweave: query failed: %v (statement: %s)", e.Err, e.Query.Text)
}

// Unwrap returns the executor error so driver error types stay reachable
// through errors.As.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsRowCountError checks if an error is a row-count invariant violation.
func IsRowCountError(err error) bool {
	return errors.Is(err, ErrTooFewRows)
}
