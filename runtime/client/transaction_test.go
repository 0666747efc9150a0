package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgweave/pgweave/runtime/types"
)

// fakeSQLError carries a SQLSTATE code the way *pq.Error and
// *pgconn.PgError do.
type fakeSQLError struct {
	code string
}

func (e *fakeSQLError) Error() string    { return "fake: SQLSTATE " + e.code }
func (e *fakeSQLError) SQLState() string { return e.code }

func serializationFailure() error { return &fakeSQLError{code: "40001"} }
func deadlockDetected() error     { return &fakeSQLError{code: "40P01"} }

// fakeDB scripts one error per attempt: the first query of attempt i
// fails with queryScript[i], and attempt i's commit fails with
// commitScript[i]. Counters aggregate across attempts.
type fakeDB struct {
	begins       int
	beginErr     error
	levels       []IsolationLevel
	queryScript  []error
	commitScript []error
	conns        []*fakeTxConn
}

func (f *fakeDB) begin(ctx context.Context, level IsolationLevel) (txConn, error) {
	f.begins++
	f.levels = append(f.levels, level)
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	conn := &fakeTxConn{}
	if len(f.queryScript) > 0 {
		conn.queryErr = f.queryScript[0]
		f.queryScript = f.queryScript[1:]
	}
	if len(f.commitScript) > 0 {
		conn.commitErr = f.commitScript[0]
		f.commitScript = f.commitScript[1:]
	}
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *fakeDB) commits() int {
	n := 0
	for _, c := range f.conns {
		n += c.commits
	}
	return n
}

func (f *fakeDB) rollbacks() int {
	n := 0
	for _, c := range f.conns {
		n += c.rollbacks
	}
	return n
}

type fakeTxConn struct {
	queryErr  error
	commitErr error
	queries   []string
	commits   int
	rollbacks int
}

func (f *fakeTxConn) query(ctx context.Context, text string, args []interface{}) ([]types.Row, error) {
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		err := f.queryErr
		f.queryErr = nil
		return nil, err
	}
	return []types.Row{{"result": []byte(`{}`)}}, nil
}

func (f *fakeTxConn) exec(ctx context.Context, text string, args []interface{}) (int64, error) {
	f.queries = append(f.queries, text)
	return 1, nil
}

func (f *fakeTxConn) commit(ctx context.Context) error {
	f.commits++
	return f.commitErr
}

func (f *fakeTxConn) rollback(ctx context.Context) error {
	f.rollbacks++
	return nil
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() RetryOptions {
	return RetryOptions{MaxAttempts: 5, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func selectOne(tx *Tx) error {
	_, err := tx.Query(context.Background(), "SELECT 1", nil)
	return err
}

func TestTransactionRetriesSerializationFailure(t *testing.T) {
	db := &fakeDB{queryScript: []error{serializationFailure(), serializationFailure(), nil}}

	err := transact(context.Background(), db, Serializable, fastRetry(), quietLog(), selectOne)
	require.NoError(t, err)

	assert.Equal(t, 3, db.begins)
	assert.Equal(t, 2, db.rollbacks())
	assert.Equal(t, 1, db.commits())
}

func TestTransactionRetriesDeadlock(t *testing.T) {
	db := &fakeDB{queryScript: []error{deadlockDetected(), nil}}

	err := transact(context.Background(), db, RepeatableRead, fastRetry(), quietLog(), selectOne)
	require.NoError(t, err)
	assert.Equal(t, 2, db.begins)
}

func TestTransactionFatalErrorRollsBackOnce(t *testing.T) {
	boom := errors.New("boom")
	db := &fakeDB{queryScript: []error{boom}}

	err := transact(context.Background(), db, Serializable, fastRetry(), quietLog(), selectOne)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	assert.Equal(t, 1, db.begins)
	assert.Equal(t, 1, db.rollbacks())
	assert.Equal(t, 0, db.commits())
}

func TestTransactionExhaustsAttempts(t *testing.T) {
	db := &fakeDB{queryScript: []error{
		serializationFailure(), serializationFailure(), serializationFailure(),
	}}
	retry := RetryOptions{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	err := transact(context.Background(), db, Serializable, retry, quietLog(), selectOne)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, db.begins)
	assert.Equal(t, 3, db.rollbacks())
}

func TestTransactionRetriesCommitFailure(t *testing.T) {
	// COMMIT itself can raise a serialization failure.
	db := &fakeDB{commitScript: []error{serializationFailure(), nil}}

	err := transact(context.Background(), db, Serializable, fastRetry(), quietLog(), selectOne)
	require.NoError(t, err)
	assert.Equal(t, 2, db.begins)
	assert.Equal(t, 2, db.commits())
}

func TestTransactionBeginErrorIsWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	db := &fakeDB{beginErr: boom}

	err := transact(context.Background(), db, Serializable, fastRetry(), quietLog(), selectOne)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "begin transaction")
}

func TestTransactionPanicReleasesConnection(t *testing.T) {
	db := &fakeDB{}

	require.Panics(t, func() {
		_ = transact(context.Background(), db, Serializable, fastRetry(), quietLog(), func(tx *Tx) error {
			panic("kaboom")
		})
	})

	assert.Equal(t, 1, db.begins)
	assert.Equal(t, 1, db.rollbacks())
	assert.Equal(t, 0, db.commits())
}

func TestTransactionStatementsRunInIssueOrder(t *testing.T) {
	db := &fakeDB{}

	err := transact(context.Background(), db, Serializable, fastRetry(), quietLog(), func(tx *Tx) error {
		if _, err := tx.Query(context.Background(), "SELECT a", nil); err != nil {
			return err
		}
		if _, err := tx.Exec(context.Background(), "UPDATE b", nil); err != nil {
			return err
		}
		_, err := tx.Query(context.Background(), "SELECT c", nil)
		return err
	})
	require.NoError(t, err)
	require.Len(t, db.conns, 1)
	assert.Equal(t, []string{"SELECT a", "UPDATE b", "SELECT c"}, db.conns[0].queries)
}

func TestTxRefusesUseAfterCompletion(t *testing.T) {
	db := &fakeDB{}
	var leaked *Tx

	err := transact(context.Background(), db, Serializable, fastRetry(), quietLog(), func(tx *Tx) error {
		leaked = tx
		return nil
	})
	require.NoError(t, err)

	_, err = leaked.Query(context.Background(), "SELECT 1", nil)
	assert.True(t, errors.Is(err, ErrTxDone))

	_, err = leaked.Exec(context.Background(), "UPDATE t", nil)
	assert.True(t, errors.Is(err, ErrTxDone))
}

func TestTransactionLevelReachesBeginAndCallback(t *testing.T) {
	db := &fakeDB{}

	err := transact(context.Background(), db, SerializableRODeferrable, fastRetry(), quietLog(), func(tx *Tx) error {
		assert.Equal(t, SerializableRODeferrable, tx.IsolationLevel())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []IsolationLevel{SerializableRODeferrable}, db.levels)
}

func TestTransactionHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db := &fakeDB{queryScript: []error{serializationFailure(), serializationFailure()}}
	// A huge delay guarantees the canceled context wins the select.
	retry := RetryOptions{MaxAttempts: 5, MinDelay: time.Hour, MaxDelay: 2 * time.Hour}

	err := transact(ctx, db, Serializable, retry, quietLog(), selectOne)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, db.begins)
}

func TestConvenienceWrappers(t *testing.T) {
	rec := &recordingTransactor{}

	require.NoError(t, SerializableTx(context.Background(), rec, nil))
	require.NoError(t, RepeatableReadTx(context.Background(), rec, nil))
	require.NoError(t, ReadCommittedTx(context.Background(), rec, nil))

	assert.Equal(t, []IsolationLevel{Serializable, RepeatableRead, ReadCommitted}, rec.levels)
}

type recordingTransactor struct {
	levels []IsolationLevel
}

func (r *recordingTransactor) Transaction(ctx context.Context, level IsolationLevel, fn func(*Tx) error) error {
	r.levels = append(r.levels, level)
	return nil
}

func TestIsolationLevelSQL(t *testing.T) {
	tests := []struct {
		level IsolationLevel
		want  string
	}{
		{Serializable, "START TRANSACTION ISOLATION LEVEL SERIALIZABLE"},
		{RepeatableRead, "START TRANSACTION ISOLATION LEVEL REPEATABLE READ"},
		{ReadCommitted, "START TRANSACTION ISOLATION LEVEL READ COMMITTED"},
		{SerializableRO, "START TRANSACTION ISOLATION LEVEL SERIALIZABLE READ ONLY"},
		{RepeatableReadRO, "START TRANSACTION ISOLATION LEVEL REPEATABLE READ READ ONLY"},
		{ReadCommittedRO, "START TRANSACTION ISOLATION LEVEL READ COMMITTED READ ONLY"},
		{SerializableRODeferrable, "START TRANSACTION ISOLATION LEVEL SERIALIZABLE READ ONLY DEFERRABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.SQL())
		})
	}
}

func TestIsolationLevelPgxOptions(t *testing.T) {
	assert.Equal(t,
		pgx.TxOptions{IsoLevel: pgx.Serializable},
		Serializable.pgxOptions())
	assert.Equal(t,
		pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly},
		ReadCommittedRO.pgxOptions())
	assert.Equal(t,
		pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadOnly, DeferrableMode: pgx.Deferrable},
		SerializableRODeferrable.pgxOptions())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(serializationFailure()))
	assert.True(t, IsRetryable(deadlockDetected()))
	assert.True(t, IsRetryable(fmt.Errorf("pgweave: query failed: %w", serializationFailure())))
	assert.False(t, IsRetryable(&fakeSQLError{code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}

func TestRetryOptionsDefaults(t *testing.T) {
	r := RetryOptions{}.withDefaults()
	assert.Equal(t, 5, r.MaxAttempts)
	assert.Equal(t, 25*time.Millisecond, r.MinDelay)
	assert.Equal(t, 250*time.Millisecond, r.MaxDelay)

	r = RetryOptions{MaxAttempts: 2, MinDelay: time.Second, MaxDelay: 2 * time.Second}.withDefaults()
	assert.Equal(t, 2, r.MaxAttempts)
	assert.Equal(t, time.Second, r.MinDelay)
	assert.Equal(t, 2*time.Second, r.MaxDelay)
}
