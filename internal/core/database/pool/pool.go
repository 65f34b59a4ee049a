// Package pool hands out exclusive engine connections, each bound to its own transaction
// state machine.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/satishbabariya/litesql/internal/adapters/database"
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/transaction"
	"github.com/satishbabariya/litesql/internal/core/value"
	"github.com/satishbabariya/litesql/internal/debug"
)

// Config holds connection pool configuration.
type Config struct {
	// Size is the maximum number of connections.
	Size int
	// MinConns are opened concurrently by New.
	MinConns int
	// CheckoutTimeout bounds how long Checkout waits for a free connection (0 = wait for ctx).
	CheckoutTimeout time.Duration
	// HealthCheckInterval is how often idle connections are pinged (0 = never).
	HealthCheckInterval time.Duration
	// Transaction configures the state machine bound to each connection.
	Transaction []transaction.Option
}

// DefaultConfig returns sensible default pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:                4,
		MinConns:            1,
		CheckoutTimeout:     5 * time.Second,
		HealthCheckInterval: time.Minute,
	}
}

// Connector opens engine connections.
type Connector interface {
	Connect(ctx context.Context) (database.Conn, error)
}

// Pool manages a fixed number of exclusive connections.
type Pool struct {
	connector Connector
	config    Config
	sem       *semaphore.Weighted
	logger    *slog.Logger

	mu     sync.Mutex
	idle   []*Lease
	open   int
	closed bool

	// Metrics
	waitCount       int64
	waitDuration    time.Duration
	timeouts        int64
	dirtyReleases   int64
	failedChecks    int64
	lastHealthCheck time.Time

	// Lifecycle
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Lease is one checked-out connection and its state machine. It belongs to a single
// caller until Release or Discard.
type Lease struct {
	conn     database.Conn
	machine  *transaction.Machine
	released bool
}

// Conn returns the leased connection.
func (l *Lease) Conn() database.Conn { return l.conn }

// Machine returns the transaction state machine bound to the connection.
func (l *Lease) Machine() *transaction.Machine { return l.machine }

// New creates a pool and opens MinConns connections.
func New(ctx context.Context, connector Connector, config Config) (*Pool, error) {
	if config.Size < 1 {
		return nil, dberr.NewConfigurationError("pool size must be at least 1, got %d", config.Size)
	}
	if config.MinConns > config.Size {
		config.MinConns = config.Size
	}

	p := &Pool{
		connector: connector,
		config:    config,
		sem:       semaphore.NewWeighted(int64(config.Size)),
		logger:    debug.With("component", "pool"),
	}

	if err := p.warmUp(ctx, config.MinConns); err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	// Start health check routine if configured
	if config.HealthCheckInterval > 0 {
		p.wg.Add(1)
		go p.healthCheckLoop(loopCtx)
	}

	p.logger.Debug("pool created", "size", config.Size, "warm", config.MinConns)
	return p, nil
}

func (p *Pool) warmUp(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	leases := make([]*Lease, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			l, err := p.connect(gctx)
			if err != nil {
				return err
			}
			leases[i] = l
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, l := range leases {
			if l != nil {
				l.conn.Close()
			}
		}
		return err
	}

	p.mu.Lock()
	p.idle = append(p.idle, leases...)
	p.open += n
	p.mu.Unlock()
	return nil
}

func (p *Pool) connect(ctx context.Context) (*Lease, error) {
	conn, err := p.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	runner := transaction.RunnerFunc(func(ctx context.Context, sql string) error {
		_, err := conn.Run(ctx, sql, []value.Wire(nil))
		return err
	})
	opts := append([]transaction.Option{transaction.WithLogger(p.logger.With("conn", conn.ID()))}, p.config.Transaction...)
	return &Lease{conn: conn, machine: transaction.New(runner, opts...)}, nil
}

// Checkout blocks until a connection is free, the checkout timeout expires
// (PoolTimeoutError) or ctx is done.
func (p *Pool) Checkout(ctx context.Context) (*Lease, error) {
	if p.isClosed() {
		return nil, dberr.ErrPoolClosed
	}

	waitCtx := ctx
	if p.config.CheckoutTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.config.CheckoutTimeout)
		defer cancel()
	}

	start := time.Now()
	if !p.sem.TryAcquire(1) {
		if err := p.sem.Acquire(waitCtx, 1); err != nil {
			return nil, p.checkoutFailed(ctx, err, time.Since(start))
		}
		p.mu.Lock()
		p.waitCount++
		p.waitDuration += time.Since(start)
		p.mu.Unlock()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, dberr.ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		l := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		l.released = false
		return l, nil
	}
	p.open++
	p.mu.Unlock()

	l, err := p.connect(ctx)
	if err != nil {
		p.mu.Lock()
		p.open--
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, err
	}
	return l, nil
}

func (p *Pool) checkoutFailed(ctx context.Context, err error, waited time.Duration) error {
	// The caller's own cancellation is not a pool timeout.
	if ctx.Err() != nil {
		return dberr.Map(ctx.Err())
	}
	p.mu.Lock()
	p.timeouts++
	p.mu.Unlock()
	p.logger.Warn("checkout timed out", "waited", waited, "size", p.config.Size)
	return dberr.NewPoolTimeoutError(err, "no connection available after %s (pool size %d)", waited.Round(time.Millisecond), p.config.Size)
}

// Release returns a connection to the pool. A connection with an open transaction is a
// programming error: it is closed instead of being reset, and a TransactionError is
// returned.
func (p *Pool) Release(l *Lease) error {
	if l == nil || l.released {
		return dberr.NewTransactionError("connection released twice")
	}
	l.released = true

	if reason := openTransaction(l); reason != "" {
		p.mu.Lock()
		p.dirtyReleases++
		p.mu.Unlock()
		p.logger.Error("connection released with an open transaction", "conn", l.conn.ID(), "depth", l.machine.Depth(), "reason", reason)
		p.drop(l)
		return dberr.NewTransactionError("connection %d released %s", l.conn.ID(), reason)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.drop(l)
		return nil
	}
	p.idle = append(p.idle, l)
	p.mu.Unlock()
	p.sem.Release(1)
	return nil
}

// openTransaction describes why l cannot be reused, or returns "". Besides the machine's
// depth, connections that report their autocommit flag are asked directly, which catches
// transactions opened behind the machine's back.
func openTransaction(l *Lease) string {
	if depth := l.machine.Depth(); depth > 0 {
		return fmt.Sprintf("at transaction depth %d", depth)
	}
	reporter, ok := l.conn.(database.AutocommitReporter)
	if !ok {
		return ""
	}
	auto, err := reporter.Autocommit(context.Background())
	switch {
	case err != nil:
		return fmt.Sprintf("with an unknown transaction state: %v", err)
	case !auto:
		return "inside an engine transaction the state machine did not open"
	}
	return ""
}

// Discard closes a leased connection instead of returning it.
func (p *Pool) Discard(l *Lease) error {
	if l == nil || l.released {
		return dberr.NewTransactionError("connection released twice")
	}
	l.released = true
	return p.drop(l)
}

func (p *Pool) drop(l *Lease) error {
	err := l.conn.Close()
	p.mu.Lock()
	p.open--
	p.mu.Unlock()
	p.sem.Release(1)
	return err
}

// Stats represents pool statistics.
type Stats struct {
	Size               int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	Timeouts           int64
	DirtyReleases      int64
	FailedHealthChecks int64
	LastHealthCheck    time.Time
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Size:               p.config.Size,
		OpenConnections:    p.open,
		InUse:              p.open - len(p.idle),
		Idle:               len(p.idle),
		WaitCount:          p.waitCount,
		WaitDuration:       p.waitDuration,
		Timeouts:           p.timeouts,
		DirtyReleases:      p.dirtyReleases,
		FailedHealthChecks: p.failedChecks,
		LastHealthCheck:    p.lastHealthCheck,
	}
}

// HealthCheck pings idle connections and closes the ones that fail. Busy connections are
// left alone. Each connection under check holds its pool slot, so checkouts meanwhile wait
// rather than open extra connections; idle connections whose slot is wanted by a waiter
// are skipped until the next check.
func (p *Pool) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	p.lastHealthCheck = time.Now()
	var checking []*Lease
	for len(p.idle) > 0 && p.sem.TryAcquire(1) {
		n := len(p.idle)
		checking = append(checking, p.idle[n-1])
		p.idle = p.idle[:n-1]
	}
	p.mu.Unlock()

	var healthy []*Lease
	var errs []error
	for _, l := range checking {
		if err := l.conn.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("conn %d: %w", l.conn.ID(), err))
			l.conn.Close()
			continue
		}
		healthy = append(healthy, l)
	}

	p.mu.Lock()
	p.idle = append(p.idle, healthy...)
	p.open -= len(errs)
	p.failedChecks += int64(len(errs))
	p.mu.Unlock()
	if n := len(checking); n > 0 {
		p.sem.Release(int64(n))
	}

	if len(errs) > 0 {
		p.logger.Warn("health check closed connections", "failed", len(errs))
		return fmt.Errorf("health check failed: %w", errors.Join(errs...))
	}
	return nil
}

// healthCheckLoop runs periodic health checks.
func (p *Pool) healthCheckLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = p.HealthCheck(checkCtx)
			cancel()
		}
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Shutdown stops new checkouts, waits for leased connections to come back until ctx is
// done, and closes every idle connection. Calling it again returns ErrPoolClosed.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return dberr.ErrPoolClosed
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	waitErr := p.sem.Acquire(ctx, int64(p.config.Size))

	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.open -= len(idle)
	p.mu.Unlock()

	var errs []error
	for _, l := range idle {
		if err := l.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if waitErr != nil {
		p.logger.Warn("shutdown gave up waiting for leased connections", "in_use", p.Stats().InUse)
		errs = append(errs, fmt.Errorf("waiting for leased connections: %w", waitErr))
	}
	p.logger.Debug("pool shut down")
	return errors.Join(errs...)
}
