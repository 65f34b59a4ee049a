// Package client is the public litesql API: it compiles structured queries, runs them on
// pooled SQLite connections, and manages nested transactions on each connection.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/satishbabariya/litesql/internal/adapters/database"
	"github.com/satishbabariya/litesql/internal/adapters/database/sqlite"
	"github.com/satishbabariya/litesql/internal/core/database/pool"
	"github.com/satishbabariya/litesql/internal/core/query/compiler"
	"github.com/satishbabariya/litesql/internal/core/transaction"
	"github.com/satishbabariya/litesql/internal/debug"
)

// Client owns an engine, its compiler and a connection pool.
type Client struct {
	engine   database.Engine
	compiler *compiler.SQLCompiler
	pool     *pool.Pool
	config   *Config
	logger   *slog.Logger

	mu          sync.RWMutex
	middlewares []MiddlewareFunc
}

// Open opens the SQLite database at path (":memory:" for a private in-memory database).
// Engine options are validated before any connection is made.
func Open(ctx context.Context, path string, opts ...Option) (*Client, error) {
	config := DefaultConfig()
	ApplyOptions(config, opts...)

	engine, err := sqlite.Open(ctx, path, config.EngineOptions)
	if err != nil {
		return nil, err
	}

	c, err := newClient(ctx, engine, config)
	if err != nil {
		engine.Close()
		return nil, err
	}
	return c, nil
}

// New creates a client on an already opened engine. Close closes the engine.
func New(ctx context.Context, engine database.Engine, opts ...Option) (*Client, error) {
	config := DefaultConfig()
	ApplyOptions(config, opts...)
	return newClient(ctx, engine, config)
}

func newClient(ctx context.Context, engine database.Engine, config *Config) (*Client, error) {
	logger := config.Logger
	if logger == nil {
		logger = debug.Logger()
	}

	txOpts := []transaction.Option{
		transaction.WithRetry(config.Retry),
		transaction.WithBehavior(config.Behavior),
	}
	if config.Logger != nil {
		txOpts = append(txOpts, transaction.WithLogger(config.Logger))
	}

	p, err := pool.New(ctx, engine, pool.Config{
		Size:                config.PoolSize,
		MinConns:            config.MinConnections,
		CheckoutTimeout:     config.CheckoutTimeout,
		HealthCheckInterval: config.HealthCheckInterval,
		Transaction:         txOpts,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("client opened", "engine", engine.Version(), "dialect", engine.Dialect(), "pool_size", config.PoolSize)

	return &Client{
		engine:   engine,
		compiler: compiler.NewSQLCompiler(engine.Capabilities()),
		pool:     p,
		config:   config,
		logger:   logger,
	}, nil
}

// Use adds a middleware to the statement execution chain.
func (c *Client) Use(mw MiddlewareFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, mw)
}

func (c *Client) chain() []MiddlewareFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.middlewares
}

// Compile compiles stmt for this client's engine.
func (c *Client) Compile(ctx context.Context, stmt Statement) (*CompiledStatement, error) {
	return c.compiler.Compile(ctx, stmt)
}

// Capabilities returns the dialect features of the engine.
func (c *Client) Capabilities() Capabilities {
	return c.compiler.Capabilities()
}

// EngineVersion returns the engine library version.
func (c *Client) EngineVersion() string {
	return c.engine.Version()
}

// Checkout takes an exclusive connection from the pool. The caller must Close it, with
// every transaction it opened finished.
func (c *Client) Checkout(ctx context.Context) (*Conn, error) {
	lease, err := c.pool.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{client: c, lease: lease}, nil
}

// Transaction runs fn inside a transaction on a dedicated connection. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (c *Client) Transaction(ctx context.Context, fn func(tx *Conn) error) (err error) {
	conn, err := c.Checkout(ctx)
	if err != nil {
		return err
	}
	defer release(conn, &err)
	return conn.Transaction(ctx, fn)
}

// Query compiles and runs stmt on a pooled connection and decodes its rows.
func (c *Client) Query(ctx context.Context, stmt Statement) (records []Record, err error) {
	conn, err := c.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer release(conn, &err)
	return conn.Query(ctx, stmt)
}

// Exec compiles and runs stmt on a pooled connection.
func (c *Client) Exec(ctx context.Context, stmt Statement) (res *Result, err error) {
	conn, err := c.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer release(conn, &err)
	return conn.Exec(ctx, stmt)
}

// ExecSQL runs one raw statement on a pooled connection.
func (c *Client) ExecSQL(ctx context.Context, sql string, args ...interface{}) (res *Result, err error) {
	conn, err := c.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer release(conn, &err)
	return conn.ExecSQL(ctx, sql, args...)
}

func release(conn *Conn, err *error) {
	if cerr := conn.Close(); cerr != nil {
		*err = errors.Join(*err, cerr)
	}
}

// Stats returns connection pool statistics.
func (c *Client) Stats() PoolStats {
	return c.pool.Stats()
}

// HealthCheck pings idle connections now.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.pool.HealthCheck(ctx)
}

// Close waits for checked out connections until ctx is done, then closes the pool and
// the engine.
func (c *Client) Close(ctx context.Context) error {
	err := c.pool.Shutdown(ctx)
	if errors.Is(err, ErrPoolClosed) {
		return err
	}
	c.logger.Debug("client closed")
	return errors.Join(err, c.engine.Close())
}
