package client

import "errors"

// ErrTxDone indicates a statement was issued on a transaction that has
// already been committed or rolled back.
var ErrTxDone = errors.New("pgweave: transaction has already been committed or rolled back")

// Retryable SQLSTATE codes.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// SQLStater exposes a Postgres SQLSTATE code. Both *pq.Error and
// *pgconn.PgError satisfy it.
type SQLStater interface {
	SQLState() string
}

// IsRetryable reports whether err is a serialization failure or a
// deadlock, the two classes a fresh transaction attempt can resolve.
// The SQLSTATE is looked for anywhere in the unwrap chain.
func IsRetryable(err error) bool {
	var state SQLStater
	if !errors.As(err, &state) {
		return false
	}
	code := state.SQLState()
	return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected
}
