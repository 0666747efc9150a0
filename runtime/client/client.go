// Package client provides executor adapters for compiled statements,
// query middleware, the transaction manager and retryable-error
// classification. Client runs on database/sql with the lib/pq driver;
// PgxClient runs on a pgxpool.Pool. Both satisfy shortcuts.Queryable.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/pgweave/pgweave/internal/debug"
	"github.com/pgweave/pgweave/runtime/types"
)

// Option configures a client during construction.
type Option func(*options)

type options struct {
	middlewares []Middleware
	retry       RetryOptions
}

// WithMiddleware appends middleware run around every query and exec.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mw...) }
}

// WithRetryOptions sets the retry policy used by Transaction.
func WithRetryOptions(r RetryOptions) Option {
	return func(o *options) { o.retry = r }
}

func newOptions(opts []Option) options {
	o := options{retry: DefaultRetryOptions}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Client runs compiled statements on a database/sql pool.
type Client struct {
	db   *sql.DB
	opts options
	log  *slog.Logger
}

// Open opens a Postgres pool for the given connection string.
func Open(dsn string, opts ...Option) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgweave: open database: %w", err)
	}
	return NewClient(db, opts...), nil
}

// NewClient wraps an existing pool.
func NewClient(db *sql.DB, opts ...Option) *Client {
	return &Client{db: db, opts: newOptions(opts), log: debug.Component("client")}
}

// Connect verifies the database connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// DB returns the underlying pool.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Query executes text with positional args and returns the raw rows.
func (c *Client) Query(ctx context.Context, text string, args []interface{}) ([]types.Row, error) {
	var rows []types.Row
	err := runMiddleware(ctx, c.opts.middlewares, text, args, func() error {
		sqlRows, err := c.db.QueryContext(ctx, text, args...)
		if err != nil {
			return err
		}
		rows, err = scanRows(sqlRows)
		return err
	})
	return rows, err
}

// Exec executes a statement without a result set and returns the number
// of affected rows.
func (c *Client) Exec(ctx context.Context, text string, args []interface{}) (int64, error) {
	var affected int64
	err := runMiddleware(ctx, c.opts.middlewares, text, args, func() error {
		res, err := c.db.ExecContext(ctx, text, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// Transaction runs fn inside a transaction at the given isolation level,
// retrying the whole callback on serialization failures and deadlocks.
func (c *Client) Transaction(ctx context.Context, level IsolationLevel, fn func(*Tx) error) error {
	return transact(ctx, c, level, c.opts.retry, c.log, fn)
}

// begin checks out one connection for the transaction's full duration.
// Isolation, read-only and deferrable variants are all expressed in the
// START TRANSACTION statement because sql.TxOptions cannot carry the
// deferrable mode.
func (c *Client) begin(ctx context.Context, level IsolationLevel) (txConn, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, level.SQL()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &sqlTxConn{conn: conn, middlewares: c.opts.middlewares}, nil
}

// sqlTxConn is one checked-out connection holding an open transaction.
type sqlTxConn struct {
	conn        *sql.Conn
	middlewares []Middleware
}

func (t *sqlTxConn) query(ctx context.Context, text string, args []interface{}) ([]types.Row, error) {
	var rows []types.Row
	err := runMiddleware(ctx, t.middlewares, text, args, func() error {
		sqlRows, err := t.conn.QueryContext(ctx, text, args...)
		if err != nil {
			return err
		}
		rows, err = scanRows(sqlRows)
		return err
	})
	return rows, err
}

func (t *sqlTxConn) exec(ctx context.Context, text string, args []interface{}) (int64, error) {
	var affected int64
	err := runMiddleware(ctx, t.middlewares, text, args, func() error {
		res, err := t.conn.ExecContext(ctx, text, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (t *sqlTxConn) commit(ctx context.Context) error {
	_, err := t.conn.ExecContext(ctx, "COMMIT")
	_ = t.conn.Close()
	return err
}

func (t *sqlTxConn) rollback(ctx context.Context) error {
	_, err := t.conn.ExecContext(ctx, "ROLLBACK")
	_ = t.conn.Close()
	return err
}
