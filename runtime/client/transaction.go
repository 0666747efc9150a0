package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pgweave/pgweave/runtime/types"
)

// IsolationLevel selects the concurrency guarantee for a transaction,
// including the read-only and deferrable variants.
type IsolationLevel int

const (
	// Serializable prevents all serialization anomalies.
	Serializable IsolationLevel = iota
	// RepeatableRead prevents dirty and non-repeatable reads.
	RepeatableRead
	// ReadCommitted prevents dirty reads.
	ReadCommitted
	// SerializableRO is Serializable for read-only work.
	SerializableRO
	// RepeatableReadRO is RepeatableRead for read-only work.
	RepeatableReadRO
	// ReadCommittedRO is ReadCommitted for read-only work.
	ReadCommittedRO
	// SerializableRODeferrable waits for a safe snapshot instead of
	// risking serialization failures; usable for long read-only scans.
	SerializableRODeferrable
)

// String returns the SQL spelling of the level.
func (l IsolationLevel) String() string {
	switch l {
	case Serializable:
		return "SERIALIZABLE"
	case RepeatableRead:
		return "REPEATABLE READ"
	case ReadCommitted:
		return "READ COMMITTED"
	case SerializableRO:
		return "SERIALIZABLE READ ONLY"
	case RepeatableReadRO:
		return "REPEATABLE READ READ ONLY"
	case ReadCommittedRO:
		return "READ COMMITTED READ ONLY"
	case SerializableRODeferrable:
		return "SERIALIZABLE READ ONLY DEFERRABLE"
	}
	return "SERIALIZABLE"
}

// SQL returns the START TRANSACTION statement opening the level.
func (l IsolationLevel) SQL() string {
	return "START TRANSACTION ISOLATION LEVEL " + l.String()
}

// ReadOnly reports whether the level is a read-only variant.
func (l IsolationLevel) ReadOnly() bool {
	switch l {
	case SerializableRO, RepeatableReadRO, ReadCommittedRO, SerializableRODeferrable:
		return true
	}
	return false
}

// Deferrable reports whether the level is the deferrable variant.
func (l IsolationLevel) Deferrable() bool {
	return l == SerializableRODeferrable
}

// RetryOptions bounds the retry loop for serialization failures.
type RetryOptions struct {
	// MaxAttempts is the total number of attempts, first try included.
	MaxAttempts int

	// MinDelay and MaxDelay bound the jittered exponential backoff
	// between attempts.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultRetryOptions is the retry policy clients start with.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts: 5,
	MinDelay:    25 * time.Millisecond,
	MaxDelay:    250 * time.Millisecond,
}

func (r RetryOptions) withDefaults() RetryOptions {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultRetryOptions.MaxAttempts
	}
	if r.MinDelay <= 0 {
		r.MinDelay = DefaultRetryOptions.MinDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = DefaultRetryOptions.MaxDelay
	}
	return r
}

// txState tracks the transaction lifecycle. A retry rolls the failed
// attempt back and re-enters the begun state on a fresh connection.
type txState int

const (
	txIdle txState = iota
	txBegun
	txCommitted
	txRolledBack
)

// beginner starts one transaction attempt on a checked-out connection.
type beginner interface {
	begin(ctx context.Context, level IsolationLevel) (txConn, error)
}

// txConn is one physical connection holding an open transaction. commit
// and rollback both release the connection.
type txConn interface {
	query(ctx context.Context, text string, args []interface{}) ([]types.Row, error)
	exec(ctx context.Context, text string, args []interface{}) (int64, error)
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

// Tx is the executor handed to a Transaction callback. It implements
// shortcuts.Queryable; statements issued through it run on the
// transaction's connection in issue order.
type Tx struct {
	conn  txConn
	level IsolationLevel
	state txState
}

// Query executes text with positional args inside the transaction.
func (t *Tx) Query(ctx context.Context, text string, args []interface{}) ([]types.Row, error) {
	if t.state != txBegun {
		return nil, ErrTxDone
	}
	return t.conn.query(ctx, text, args)
}

// Exec executes a statement inside the transaction and returns the
// number of affected rows.
func (t *Tx) Exec(ctx context.Context, text string, args []interface{}) (int64, error) {
	if t.state != txBegun {
		return 0, ErrTxDone
	}
	return t.conn.exec(ctx, text, args)
}

// IsolationLevel returns the level the transaction was begun at.
func (t *Tx) IsolationLevel() IsolationLevel {
	return t.level
}

func (t *Tx) commit(ctx context.Context) error {
	if t.state != txBegun {
		return ErrTxDone
	}
	if err := t.conn.commit(ctx); err != nil {
		// A failed COMMIT aborts the transaction server-side.
		t.state = txRolledBack
		return err
	}
	t.state = txCommitted
	return nil
}

func (t *Tx) rollback(ctx context.Context) error {
	if t.state != txBegun {
		return ErrTxDone
	}
	t.state = txRolledBack
	return t.conn.rollback(ctx)
}

// Transactor is any client able to run a transactional callback.
type Transactor interface {
	Transaction(ctx context.Context, level IsolationLevel, fn func(*Tx) error) error
}

// SerializableTx runs fn at SERIALIZABLE isolation.
func SerializableTx(ctx context.Context, c Transactor, fn func(*Tx) error) error {
	return c.Transaction(ctx, Serializable, fn)
}

// RepeatableReadTx runs fn at REPEATABLE READ isolation.
func RepeatableReadTx(ctx context.Context, c Transactor, fn func(*Tx) error) error {
	return c.Transaction(ctx, RepeatableRead, fn)
}

// ReadCommittedTx runs fn at READ COMMITTED isolation.
func ReadCommittedTx(ctx context.Context, c Transactor, fn func(*Tx) error) error {
	return c.Transaction(ctx, ReadCommitted, fn)
}

// transact drives the retry loop shared by both adapters. Each attempt
// is a full begin/callback/commit cycle; only serialization failures
// and deadlocks re-enter the loop.
func transact(ctx context.Context, b beginner, level IsolationLevel, retry RetryOptions, log *slog.Logger, fn func(*Tx) error) error {
	retry = retry.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retry.MinDelay
	bo.MaxInterval = retry.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 1; ; attempt++ {
		err := runAttempt(ctx, b, level, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt >= retry.MaxAttempts {
			return err
		}
		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return err
		}
		log.Debug("retrying transaction",
			"level", level.String(),
			"attempt", attempt,
			"delay", delay,
			"err", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runAttempt is one begun cycle: begin, run the callback, then commit
// or roll back. The connection is released on every exit path, panics
// included.
func runAttempt(ctx context.Context, b beginner, level IsolationLevel, fn func(*Tx) error) error {
	conn, err := b.begin(ctx, level)
	if err != nil {
		return fmt.Errorf("pgweave: begin transaction: %w", err)
	}
	tx := &Tx{conn: conn, level: level, state: txBegun}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.commit(ctx); err != nil {
		return fmt.Errorf("pgweave: commit transaction: %w", err)
	}
	return nil
}
