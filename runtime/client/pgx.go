package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgweave/pgweave/internal/debug"
	"github.com/pgweave/pgweave/runtime/types"
)

// PgxClient runs compiled statements on a pgxpool.Pool. Unlike the
// database/sql adapter it receives jsonb columns already decoded.
type PgxClient struct {
	pool *pgxpool.Pool
	opts options
	log  *slog.Logger
}

// OpenPgx opens a pgx pool for the given connection string.
func OpenPgx(ctx context.Context, dsn string, opts ...Option) (*PgxClient, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgweave: open pool: %w", err)
	}
	return NewPgxClient(pool, opts...), nil
}

// NewPgxClient wraps an existing pool.
func NewPgxClient(pool *pgxpool.Pool, opts ...Option) *PgxClient {
	return &PgxClient{pool: pool, opts: newOptions(opts), log: debug.Component("client")}
}

// Connect verifies the database connection.
func (c *PgxClient) Connect(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close closes the pool.
func (c *PgxClient) Close() {
	c.pool.Close()
}

// Pool returns the underlying pool.
func (c *PgxClient) Pool() *pgxpool.Pool {
	return c.pool
}

// Query executes text with positional args and returns the raw rows.
func (c *PgxClient) Query(ctx context.Context, text string, args []interface{}) ([]types.Row, error) {
	var rows []types.Row
	err := runMiddleware(ctx, c.opts.middlewares, text, args, func() error {
		pgxRows, err := c.pool.Query(ctx, text, args...)
		if err != nil {
			return err
		}
		rows, err = collectRows(pgxRows)
		return err
	})
	return rows, err
}

// Exec executes a statement without a result set and returns the number
// of affected rows.
func (c *PgxClient) Exec(ctx context.Context, text string, args []interface{}) (int64, error) {
	var affected int64
	err := runMiddleware(ctx, c.opts.middlewares, text, args, func() error {
		tag, err := c.pool.Exec(ctx, text, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// Transaction runs fn inside a transaction at the given isolation level,
// retrying the whole callback on serialization failures and deadlocks.
func (c *PgxClient) Transaction(ctx context.Context, level IsolationLevel, fn func(*Tx) error) error {
	return transact(ctx, c, level, c.opts.retry, c.log, fn)
}

// begin starts a native pgx transaction; the pool connection stays
// checked out until commit or rollback.
func (c *PgxClient) begin(ctx context.Context, level IsolationLevel) (txConn, error) {
	tx, err := c.pool.BeginTx(ctx, level.pgxOptions())
	if err != nil {
		return nil, err
	}
	return &pgxTxConn{tx: tx, middlewares: c.opts.middlewares}, nil
}

func (l IsolationLevel) pgxOptions() pgx.TxOptions {
	opts := pgx.TxOptions{}
	switch l {
	case Serializable, SerializableRO, SerializableRODeferrable:
		opts.IsoLevel = pgx.Serializable
	case RepeatableRead, RepeatableReadRO:
		opts.IsoLevel = pgx.RepeatableRead
	case ReadCommitted, ReadCommittedRO:
		opts.IsoLevel = pgx.ReadCommitted
	}
	if l.ReadOnly() {
		opts.AccessMode = pgx.ReadOnly
	}
	if l.Deferrable() {
		opts.DeferrableMode = pgx.Deferrable
	}
	return opts
}

// pgxTxConn is one pool transaction.
type pgxTxConn struct {
	tx          pgx.Tx
	middlewares []Middleware
}

func (t *pgxTxConn) query(ctx context.Context, text string, args []interface{}) ([]types.Row, error) {
	var rows []types.Row
	err := runMiddleware(ctx, t.middlewares, text, args, func() error {
		pgxRows, err := t.tx.Query(ctx, text, args...)
		if err != nil {
			return err
		}
		rows, err = collectRows(pgxRows)
		return err
	})
	return rows, err
}

func (t *pgxTxConn) exec(ctx context.Context, text string, args []interface{}) (int64, error) {
	var affected int64
	err := runMiddleware(ctx, t.middlewares, text, args, func() error {
		tag, err := t.tx.Exec(ctx, text, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

func (t *pgxTxConn) commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgxTxConn) rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
