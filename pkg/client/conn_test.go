package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/litesql/internal/adapters/database"
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/compiler"
	"github.com/satishbabariya/litesql/internal/core/query/sqlscan"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/retry"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// scriptedConn fails chosen statements with a busy error a set number of times.
type scriptedConn struct {
	mu      sync.Mutex
	calls   map[string]int
	busyFor map[string]int
	log     []string
}

func (c *scriptedConn) ID() uint64 { return 1 }

func (c *scriptedConn) Run(ctx context.Context, sql string, params []value.Wire) (*result.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[sql]++
	c.log = append(c.log, sql)
	if c.busyFor[sql] > 0 {
		c.busyFor[sql]--
		return nil, &dberr.Error{Kind: dberr.KindBusy, Message: "database is locked", Retryable: true}
	}
	return result.New(sqlscan.Classify(sql), nil, nil, 1, 0), nil
}

func (c *scriptedConn) Ping(ctx context.Context) error { return nil }
func (c *scriptedConn) Close() error                   { return nil }

func (c *scriptedConn) busy(sql string, times int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busyFor[sql] = times
	c.calls[sql] = 0
}

type scriptedEngine struct {
	conn *scriptedConn
}

func (e *scriptedEngine) Connect(ctx context.Context) (database.Conn, error) { return e.conn, nil }
func (e *scriptedEngine) Version() string                                  { return compiler.DefaultEngineVersion }
func (e *scriptedEngine) Capabilities() compiler.Capabilities              { return compiler.DefaultCapabilities() }
func (e *scriptedEngine) Dialect() database.SQLDialect                     { return database.SQLite }
func (e *scriptedEngine) Close() error                                     { return nil }

func newScripted(t *testing.T) (*Client, *scriptedConn) {
	t.Helper()
	conn := &scriptedConn{calls: map[string]int{}, busyFor: map[string]int{}}
	c, err := New(context.Background(), &scriptedEngine{conn: conn},
		WithPoolSize(1),
		WithHealthCheckInterval(0),
		WithRetry(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond), retry.WithJitter(false)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(context.Background()) })
	return c, conn
}

const update = `UPDATE "t" SET "x" = ?`

func TestExecute_BusyInAutocommitIsReturned(t *testing.T) {
	c, engine := newScripted(t)
	ctx := context.Background()

	engine.busy(update, 2)
	_, err := c.ExecSQL(ctx, update, 1)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, dberr.KindBusy, KindOf(err))
	assert.Equal(t, 1, engine.calls[update])
}

func TestExecute_BusyInTransactionIsRetried(t *testing.T) {
	c, engine := newScripted(t)
	ctx := context.Background()

	conn, err := c.Checkout(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Begin(ctx))
	engine.busy(update, 2)
	res, err := conn.ExecSQL(ctx, update, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, 3, engine.calls[update])

	engine.busy("COMMIT", 2)
	require.NoError(t, conn.Commit(ctx))
	assert.Equal(t, 3, engine.calls["COMMIT"])
	assert.Equal(t, 0, conn.Depth())
}

func TestExecute_RetryExhaustionKeepsTransactionOpen(t *testing.T) {
	c, engine := newScripted(t)
	ctx := context.Background()

	conn, err := c.Checkout(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Begin(ctx))
	engine.busy(update, 10)
	_, err = conn.ExecSQL(ctx, update, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, engine.calls[update])
	assert.Equal(t, 1, conn.Depth())

	require.NoError(t, conn.Rollback(ctx))
}

func TestTransaction_NestedStatementSequence(t *testing.T) {
	c, engine := newScripted(t)
	ctx := context.Background()

	err := c.Transaction(ctx, func(tx *Conn) error {
		_ = tx.Transaction(ctx, func(inner *Conn) error {
			return assert.AnError
		})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"BEGIN",
		"SAVEPOINT sp2",
		"ROLLBACK TO SAVEPOINT sp2",
		"RELEASE SAVEPOINT sp2",
		"COMMIT",
	}, engine.log)
}

func TestTimeoutMiddleware_StopsStatementsNotYetIssued(t *testing.T) {
	c, engine := newScripted(t)
	ctx := context.Background()
	c.Use(TimeoutMiddleware(5 * time.Millisecond))

	conn, err := c.Checkout(ctx)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Begin(ctx))

	c.config.Retry = retry.Apply(c.config.Retry, retry.WithMaxAttempts(100), retry.WithInitialDelay(20*time.Millisecond))
	engine.busy(update, 100)
	_, err = conn.ExecSQL(ctx, update, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, engine.calls[update])

	require.NoError(t, conn.Rollback(ctx))
}
