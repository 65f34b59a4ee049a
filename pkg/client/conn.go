package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/satishbabariya/litesql/internal/adapters/database"
	"github.com/satishbabariya/litesql/internal/core/database/pool"
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/query/sqlscan"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/retry"
	"github.com/satishbabariya/litesql/internal/core/transaction"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// Conn is an exclusive pooled connection with its transaction state. It must not be used
// from more than one goroutine at a time, and must be closed when done.
type Conn struct {
	client *Client
	lease  *pool.Lease
	closed bool

	// Prepared statements and cursors still open on this connection.
	open []io.Closer
}

// ID identifies the underlying engine connection.
func (c *Conn) ID() uint64 {
	return c.lease.Conn().ID()
}

// Depth returns the transaction nesting depth; 0 means autocommit.
func (c *Conn) Depth() int {
	return c.lease.Machine().Depth()
}

// State returns the transaction state.
func (c *Conn) State() TxState {
	return c.lease.Machine().State()
}

// IsAutocommit reports whether the engine is outside a transaction. It can be true at a
// non-zero depth when the engine rolled the transaction back on its own; the caller
// should then call Rollback to bring the depth back to 0. Engines that cannot report the
// flag are assumed to follow the depth.
func (c *Conn) IsAutocommit(ctx context.Context) (bool, error) {
	reporter, ok := c.lease.Conn().(database.AutocommitReporter)
	if !ok {
		return c.Depth() == 0, nil
	}
	return reporter.Autocommit(ctx)
}

// Begin opens a transaction, or a savepoint inside an open one.
func (c *Conn) Begin(ctx context.Context) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.lease.Machine().Begin(ctx)
}

// BeginWith opens a transaction with an explicit locking behavior. Inside an open
// transaction it opens a savepoint and the behavior is ignored.
func (c *Conn) BeginWith(ctx context.Context, behavior Behavior) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.lease.Machine().BeginWith(ctx, behavior)
}

// Commit commits the innermost transaction level.
func (c *Conn) Commit(ctx context.Context) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.lease.Machine().Commit(ctx)
}

// Rollback rolls back the innermost transaction level.
func (c *Conn) Rollback(ctx context.Context) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.lease.Machine().Rollback(ctx)
}

// Transaction runs fn one level deeper: a transaction at depth 0, a savepoint otherwise.
// The level is committed when fn returns nil and rolled back when it fails or panics.
func (c *Conn) Transaction(ctx context.Context, fn func(tx *Conn) error) (err error) {
	if err := c.Begin(ctx); err != nil {
		return err
	}

	// Cleanup must run even when ctx is already cancelled.
	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		if p := recover(); p != nil {
			_ = c.Rollback(cleanupCtx)
			panic(p)
		}
	}()

	if err := fn(c); err != nil {
		if rbErr := c.Rollback(cleanupCtx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := c.Commit(ctx); err != nil {
		if rbErr := c.Rollback(cleanupCtx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return nil
}

// Execute runs a compiled statement. Inside a transaction a busy engine is retried on this
// connection; in autocommit mode the error is returned for the caller to decide.
func (c *Conn) Execute(ctx context.Context, cs *CompiledStatement) (*Result, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if cs.Command.IsTransactionControl() {
		return c.control(ctx, cs)
	}
	res, err := c.execute(ctx, cs)
	if err != nil {
		return nil, err
	}
	if cs.RequiresReselect {
		return c.reselect(ctx, cs, res)
	}
	return res, nil
}

// control runs a raw transaction statement through the state machine so its depth keeps
// matching the engine. BEGIN is accepted at depth 0, COMMIT, END and ROLLBACK at depth 1.
// Savepoints belong to the machine, so SAVEPOINT, RELEASE and ROLLBACK TO are refused.
func (c *Conn) control(ctx context.Context, cs *domain.CompiledStatement) (*result.Result, error) {
	if len(cs.Params) > 0 {
		return nil, dberr.NewTransactionError("%s takes no parameters", strings.ToUpper(string(cs.Command)))
	}
	tokens, err := sqlscan.Significant(cs.SQL)
	if err != nil {
		return nil, dberr.NewCompileError("cannot scan statement: %v", err)
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].Type == "Semicolon" {
		tokens = tokens[:len(tokens)-1]
	}

	machine := c.lease.Machine()
	depth := machine.Depth()
	switch cs.Command {
	case domain.CommandBegin:
		behavior, ok := beginBehavior(tokens)
		if !ok {
			return nil, dberr.NewTransactionError("unsupported statement %q", cs.SQL)
		}
		if depth > 0 {
			return nil, dberr.NewTransactionError("BEGIN at transaction depth %d; use Begin for a savepoint", depth)
		}
		err = machine.BeginWith(ctx, behavior)

	case domain.CommandCommit, domain.CommandRollback:
		if !plainEnd(tokens) {
			return nil, dberr.NewTransactionError("unsupported statement %q; savepoints are managed by Begin, Commit and Rollback", cs.SQL)
		}
		if depth != 1 {
			return nil, dberr.NewTransactionError("%s at transaction depth %d", strings.ToUpper(tokens[0].Text), depth)
		}
		if cs.Command == domain.CommandCommit {
			err = machine.Commit(ctx)
		} else {
			err = machine.Rollback(ctx)
		}

	default:
		return nil, dberr.NewTransactionError("unsupported statement %q; savepoints are managed by Begin, Commit and Rollback", cs.SQL)
	}
	if err != nil {
		return nil, err
	}
	return result.New(cs.Command, nil, nil, 0, 0), nil
}

// beginBehavior parses BEGIN [DEFERRED|IMMEDIATE|EXCLUSIVE] [TRANSACTION].
func beginBehavior(tokens []sqlscan.Token) (transaction.Behavior, bool) {
	rest := tokens[1:]
	if n := len(rest); n > 0 && rest[n-1].IsKeyword("TRANSACTION") {
		rest = rest[:n-1]
	}
	switch {
	case len(rest) == 0:
		return transaction.Default, true
	case len(rest) > 1:
		return "", false
	}
	for _, b := range []transaction.Behavior{transaction.Deferred, transaction.Immediate, transaction.Exclusive} {
		if rest[0].IsKeyword(string(b)) {
			return b, true
		}
	}
	return "", false
}

// plainEnd matches COMMIT, END or ROLLBACK, optionally followed by TRANSACTION.
func plainEnd(tokens []sqlscan.Token) bool {
	switch len(tokens) {
	case 1:
		return true
	case 2:
		return tokens[1].IsKeyword("TRANSACTION")
	}
	return false
}

func (c *Conn) execute(ctx context.Context, cs *domain.CompiledStatement) (*result.Result, error) {
	conn := c.lease.Conn()
	return c.dispatch(ctx, cs.SQL, cs.Command, cs.Params, func(ctx context.Context, wires []value.Wire) (*result.Result, error) {
		return conn.Run(ctx, cs.SQL, wires)
	})
}

// runFunc issues one statement on the engine connection.
type runFunc func(ctx context.Context, wires []value.Wire) (*result.Result, error)

// dispatch encodes params and issues a statement through the middleware chain.
func (c *Conn) dispatch(ctx context.Context, sql string, cmd domain.Command, params []value.Value, do runFunc) (*result.Result, error) {
	wires, err := value.EncodeAll(params)
	if err != nil {
		return nil, err
	}

	client := c.client
	mp := MiddlewareParams{
		SQL:       sql,
		Params:    params,
		Command:   cmd,
		ConnID:    c.ID(),
		Depth:     c.Depth(),
		StartTime: time.Now(),
	}
	if client.config.LogQueries {
		client.logger.Debug("executing statement", "sql", sql, "params", params, "conn", mp.ConnID, "depth", mp.Depth)
	}

	final := func(ctx context.Context) MiddlewareResult {
		res, err := c.run(ctx, sql, wires, do)
		return MiddlewareResult{Result: res, Error: err, Duration: time.Since(mp.StartTime)}
	}
	out := chain(client.chain(), mp, final)(ctx)
	if out.Error != nil {
		return nil, c.enrichConstraint(ctx, out.Error)
	}
	return out.Result, nil
}

func (c *Conn) run(ctx context.Context, sql string, wires []value.Wire, do runFunc) (*result.Result, error) {
	if c.Depth() == 0 {
		return do(ctx, wires)
	}

	var res *result.Result
	err := retry.DoWithConfig(ctx, c.client.config.Retry, func() error {
		var err error
		res, err = do(ctx, wires)
		return err
	}, retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		c.client.logger.Debug("statement busy, retrying",
			"sql", sql, "attempt", attempt, "delay", delay, "conn", c.ID(), "depth", c.Depth())
	}))
	return res, err
}

// reselect reads back the inserted row when the engine cannot produce RETURNING rows.
// Only single-row inserts can be located; other statements keep RequiresReselect for the
// caller.
func (c *Conn) reselect(ctx context.Context, cs *domain.CompiledStatement, res *result.Result) (*result.Result, error) {
	if cs.Command != domain.CommandInsert || cs.Reselect == nil || res.RowsAffected != 1 {
		return res, nil
	}

	projections := make([]domain.Projection, len(cs.Reselect.Columns))
	for i, col := range cs.Reselect.Columns {
		projections[i] = domain.Projection{Operand: domain.Col(col)}
	}
	sel := &domain.Select{
		Sources:     []domain.Source{{Table: cs.Reselect.Table}},
		Projections: projections,
		Where:       domain.Compare{Left: domain.Col("rowid"), Op: domain.Eq, Right: domain.Val(value.Int(res.LastInsertID))},
	}
	compiled, err := c.client.compiler.Compile(ctx, sel)
	if err != nil {
		return nil, err
	}

	rows, err := c.execute(ctx, compiled)
	if err != nil {
		return nil, fmt.Errorf("reading back inserted row: %w", err)
	}
	return result.New(domain.CommandInsert, rows.Columns, rows.Rows, res.RowsAffected, res.LastInsertID), nil
}

// enrichConstraint replaces the column list of a unique violation with the name of the
// unique index that raised it, when the connection can tell.
func (c *Conn) enrichConstraint(ctx context.Context, err error) error {
	var dbErr *dberr.Error
	if !errors.As(err, &dbErr) || dbErr.Constraint == nil {
		return err
	}
	if dbErr.Constraint.Type != dberr.ConstraintUnique || dbErr.Constraint.Name == "" {
		return err
	}
	resolver, ok := c.lease.Conn().(database.ConstraintResolver)
	if !ok {
		return err
	}

	name, lookupErr := resolver.UniqueIndexName(ctx, dbErr.Constraint.Name)
	if lookupErr != nil || name == "" {
		return err
	}
	enriched := *dbErr
	enriched.Constraint = &dberr.Constraint{Type: dbErr.Constraint.Type, Name: name}
	return &enriched
}

// Exec compiles and runs stmt.
func (c *Conn) Exec(ctx context.Context, stmt Statement) (*Result, error) {
	cs, err := c.client.compiler.Compile(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, cs)
}

// Query compiles and runs stmt and decodes its rows against the compiled shape.
func (c *Conn) Query(ctx context.Context, stmt Statement) ([]Record, error) {
	cs, err := c.client.compiler.Compile(ctx, stmt)
	if err != nil {
		return nil, err
	}
	res, err := c.Execute(ctx, cs)
	if err != nil {
		return nil, err
	}
	return result.Decode(res, cs.Shape)
}

// Prepare turns raw SQL and Go arguments into a compiled statement. The number of
// placeholders must match the number of arguments.
func Prepare(sql string, args ...interface{}) (*CompiledStatement, error) {
	if n := sqlscan.CountPlaceholders(sql); n != len(args) {
		return nil, dberr.NewCompileError("statement has %d placeholders but %d arguments were given", n, len(args))
	}
	params := make([]value.Value, len(args))
	for i, arg := range args {
		v, err := value.From(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		params[i] = v
	}
	return &domain.CompiledStatement{
		SQL:         sql,
		Params:      params,
		Command:     sqlscan.Classify(sql),
		ReturnsRows: sqlscan.ReturnsRows(sql),
	}, nil
}

// ExecSQL runs one raw statement with positional arguments.
func (c *Conn) ExecSQL(ctx context.Context, sql string, args ...interface{}) (*Result, error) {
	cs, err := Prepare(sql, args...)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, cs)
}

// QuerySQL runs one raw statement and decodes its rows with their stored kinds.
func (c *Conn) QuerySQL(ctx context.Context, sql string, args ...interface{}) ([]Record, error) {
	res, err := c.ExecSQL(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return result.Decode(res, nil)
}

// Batch runs statements in order and stops at the first failure. The results of the
// statements that ran are returned with the error.
func (c *Conn) Batch(ctx context.Context, stmts []*CompiledStatement) ([]*Result, error) {
	results := make([]*Result, 0, len(stmts))
	for i, cs := range stmts {
		res, err := c.Execute(ctx, cs)
		if err != nil {
			return results, fmt.Errorf("batch statement %d: %w", i+1, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// TransactionalBatch runs statements in one transaction level; either all of them take
// effect or none do.
func (c *Conn) TransactionalBatch(ctx context.Context, stmts []*CompiledStatement) ([]*Result, error) {
	var results []*Result
	err := c.Transaction(ctx, func(tx *Conn) error {
		var err error
		results, err = tx.Batch(ctx, stmts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ExecScript splits a multi-statement script and runs each statement in order.
func (c *Conn) ExecScript(ctx context.Context, script string) ([]*Result, error) {
	parts, err := sqlscan.Split(script)
	if err != nil {
		return nil, err
	}
	stmts := make([]*CompiledStatement, len(parts))
	for i, sql := range parts {
		stmts[i], err = Prepare(sql)
		if err != nil {
			return nil, fmt.Errorf("script statement %d: %w", i+1, err)
		}
	}
	return c.Batch(ctx, stmts)
}

// Changes returns the rows modified by the most recent INSERT, UPDATE or DELETE on this
// connection.
func (c *Conn) Changes(ctx context.Context) (int64, error) {
	counter, err := c.changeCounter()
	if err != nil {
		return 0, err
	}
	return counter.Changes(ctx)
}

// TotalChanges returns the rows modified on this connection since the engine opened it.
// Pooled connections outlive a checkout, so the count includes earlier borrowers.
func (c *Conn) TotalChanges(ctx context.Context) (int64, error) {
	counter, err := c.changeCounter()
	if err != nil {
		return 0, err
	}
	return counter.TotalChanges(ctx)
}

func (c *Conn) changeCounter() (database.ChangeCounter, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	counter, ok := c.lease.Conn().(database.ChangeCounter)
	if !ok {
		return nil, dberr.NewConfigurationError("connection %d does not count changes", c.ID())
	}
	return counter, nil
}

// Close closes the statements and cursors still open on the connection and returns it to
// the pool. Closing with an open transaction is an error: the connection is discarded
// instead of reused.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	var errs []error
	for len(c.open) > 0 {
		if err := c.open[len(c.open)-1].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closed = true
	errs = append(errs, c.client.pool.Release(c.lease))
	return errors.Join(errs...)
}

func (c *Conn) track(r io.Closer) {
	c.open = append(c.open, r)
}

func (c *Conn) forget(r io.Closer) {
	for i, o := range c.open {
		if o == r {
			c.open = append(c.open[:i], c.open[i+1:]...)
			return
		}
	}
}

func (c *Conn) usable() error {
	if c.closed {
		return dberr.NewTransactionError("connection %d used after Close", c.ID())
	}
	return nil
}
