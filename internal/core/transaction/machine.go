// Package transaction maps nested application transactions onto SQLite's single
// transaction plus savepoints, one Machine per exclusive connection.
package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/retry"
	"github.com/satishbabariya/litesql/internal/debug"
)

// Behavior is the locking mode of an outermost BEGIN.
type Behavior string

const (
	// Default issues a plain BEGIN, which the engine treats as deferred.
	Default Behavior = ""
	// Deferred takes locks on first use.
	Deferred Behavior = "DEFERRED"
	// Immediate takes the write lock at BEGIN.
	Immediate Behavior = "IMMEDIATE"
	// Exclusive takes an exclusive lock at BEGIN.
	Exclusive Behavior = "EXCLUSIVE"
)

// State is the machine's position.
type State string

const (
	// Idle means no transaction is open (depth 0).
	Idle State = "idle"
	// InTransaction means the outermost transaction is open (depth 1).
	InTransaction State = "in_transaction"
	// InSavepoint means at least one savepoint is open (depth > 1).
	InSavepoint State = "in_savepoint"
)

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Runner executes a single statement on the machine's connection.
type Runner interface {
	Run(ctx context.Context, sql string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, sql string) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, sql string) error { return f(ctx, sql) }

// Machine tracks transaction depth for one connection. It is not safe for concurrent use;
// the connection that owns it is held exclusively.
type Machine struct {
	runner   Runner
	retry    *retry.Config
	behavior Behavior
	logger   *slog.Logger

	depth   int
	stack   []string
	counter uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithRetry sets the retry policy applied to every transition statement.
func WithRetry(cfg *retry.Config) Option {
	return func(m *Machine) {
		m.retry = cfg
	}
}

// WithBehavior sets the behavior used by Begin.
func WithBehavior(b Behavior) Option {
	return func(m *Machine) {
		m.behavior = b
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// New creates an idle machine issuing statements through runner.
func New(runner Runner, opts ...Option) *Machine {
	m := &Machine{
		runner:   runner,
		retry:    retry.DefaultConfig(),
		behavior: Default,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = debug.Logger()
	}
	return m
}

// Depth returns the nesting depth; 0 means idle.
func (m *Machine) Depth() int { return m.depth }

// State returns the machine's state.
func (m *Machine) State() State {
	switch {
	case m.depth == 0:
		return Idle
	case m.depth == 1:
		return InTransaction
	default:
		return InSavepoint
	}
}

// Savepoint returns the innermost savepoint name, or "" outside savepoints.
func (m *Machine) Savepoint() string {
	if m.depth < 2 {
		return ""
	}
	return m.stack[len(m.stack)-1]
}

// Begin opens a transaction, or a savepoint when one is already open.
func (m *Machine) Begin(ctx context.Context) error {
	return m.BeginWith(ctx, m.behavior)
}

// BeginWith is Begin with an explicit behavior for the outermost BEGIN. Nested begins
// ignore the behavior.
func (m *Machine) BeginWith(ctx context.Context, behavior Behavior) error {
	switch behavior {
	case Default, Deferred, Immediate, Exclusive:
	default:
		return dberr.NewTransactionError("unknown transaction behavior %q", behavior)
	}

	m.counter++
	if m.depth == 0 {
		stmt := "BEGIN"
		if behavior != Default {
			stmt += " " + string(behavior)
		}
		if err := m.exec(ctx, stmt); err != nil {
			return err
		}
		m.depth = 1
		m.stack = append(m.stack[:0], "")
		m.logger.Debug("transaction started", "behavior", behavior, "depth", m.depth)
		return nil
	}

	name := fmt.Sprintf("sp%d", m.counter)
	if !savepointName.MatchString(name) {
		return dberr.NewTransactionError("invalid savepoint name %q", name)
	}
	if err := m.exec(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	m.depth++
	m.stack = append(m.stack, name)
	m.logger.Debug("savepoint created", "savepoint", name, "depth", m.depth)
	return nil
}

// Commit commits the innermost level: COMMIT at depth 1, RELEASE SAVEPOINT deeper.
func (m *Machine) Commit(ctx context.Context) error {
	switch {
	case m.depth == 0:
		return dberr.NewTransactionError("commit without an open transaction")

	case m.depth == 1:
		if err := m.exec(ctx, "COMMIT"); err != nil {
			return err
		}
		m.pop()
		m.logger.Debug("transaction committed")
		return nil

	default:
		name := m.stack[len(m.stack)-1]
		if err := m.exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			return err
		}
		m.pop()
		m.logger.Debug("savepoint released", "savepoint", name, "depth", m.depth)
		return nil
	}
}

// Rollback undoes the innermost level: ROLLBACK at depth 1; deeper, ROLLBACK TO followed by
// RELEASE so the savepoint is consumed. If RELEASE fails the depth is kept and Rollback may
// be called again.
func (m *Machine) Rollback(ctx context.Context) error {
	switch {
	case m.depth == 0:
		return dberr.NewTransactionError("rollback without an open transaction")

	case m.depth == 1:
		if err := m.exec(ctx, "ROLLBACK"); err != nil {
			// The engine already rolled back on its own (e.g. after SQLITE_FULL).
			if !isNoActiveTransaction(err) {
				return err
			}
			m.logger.Warn("transaction was already rolled back by the engine")
		}
		m.pop()
		m.logger.Debug("transaction rolled back")
		return nil

	default:
		name := m.stack[len(m.stack)-1]
		if err := m.exec(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			return err
		}
		if err := m.exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			return err
		}
		m.pop()
		m.logger.Debug("savepoint rolled back", "savepoint", name, "depth", m.depth)
		return nil
	}
}

func (m *Machine) pop() {
	m.depth--
	m.stack = m.stack[:len(m.stack)-1]
}

// exec runs one transition statement, retrying it while the engine reports lock contention.
func (m *Machine) exec(ctx context.Context, sql string) error {
	return retry.DoWithConfig(ctx, m.retry, func() error {
		return m.runner.Run(ctx, sql)
	}, retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		m.logger.Debug("transaction statement busy, retrying",
			"sql", sql, "attempt", attempt, "delay", delay, "depth", m.depth, "error", err)
	}))
}

func isNoActiveTransaction(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no transaction is active")
}
