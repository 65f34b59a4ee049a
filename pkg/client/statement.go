package client

import (
	"context"
	"fmt"

	"github.com/satishbabariya/litesql/internal/adapters/database"
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/query/sqlscan"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// Stmt is a statement compiled once on a connection and run many times. It belongs to
// that connection and is closed with it.
type Stmt struct {
	conn   *Conn
	sql    string
	cmd    domain.Command
	stmt   database.Stmt
	names  []string
	bound  []value.Value
	closed bool
}

// PrepareStatement compiles one raw statement on this connection. Transaction statements
// cannot be prepared; use Begin, Commit and Rollback.
func (c *Conn) PrepareStatement(ctx context.Context, sql string) (*Stmt, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	parts, err := sqlscan.Split(sql)
	if err != nil {
		return nil, dberr.NewCompileError("cannot scan statement: %v", err)
	}
	if len(parts) != 1 {
		return nil, dberr.NewCompileError("a prepared statement holds exactly one statement, got %d", len(parts))
	}
	cmd := sqlscan.Classify(sql)
	if cmd.IsTransactionControl() {
		return nil, dberr.NewTransactionError("%s cannot be prepared; use Begin, Commit and Rollback", sql)
	}

	preparer, ok := c.lease.Conn().(database.Preparer)
	if !ok {
		return nil, dberr.NewConfigurationError("connection %d cannot prepare statements", c.ID())
	}
	st, err := preparer.Prepare(ctx, sql)
	if err != nil {
		return nil, err
	}

	// Names come from the scanner; when it disagrees with the engine the slots stay unnamed.
	names, err := sqlscan.Parameters(sql)
	if err != nil || len(names) != st.NumParams() {
		names = make([]string, st.NumParams())
	}

	s := &Stmt{conn: c, sql: sql, cmd: cmd, stmt: st, names: names}
	c.track(s)
	return s, nil
}

// SQL returns the statement text.
func (s *Stmt) SQL() string { return s.sql }

// ColumnCount returns the number of result columns; 0 for statements without rows.
func (s *Stmt) ColumnCount() int { return len(s.stmt.Columns()) }

// ColumnNames returns the result column names in order.
func (s *Stmt) ColumnNames() []string {
	return append([]string(nil), s.stmt.Columns()...)
}

// ColumnName returns the name of result column i, counting from 0.
func (s *Stmt) ColumnName(i int) (string, error) {
	cols := s.stmt.Columns()
	if i < 0 || i >= len(cols) {
		return "", dberr.NewCompileError("column index %d out of range [0, %d)", i, len(cols))
	}
	return cols[i], nil
}

// ParamCount returns the number of parameter slots. A named parameter used twice fills
// one slot.
func (s *Stmt) ParamCount() int { return len(s.names) }

// ParamName returns the name of parameter i, counting from 1 as SQLite does, such as
// ":email" or "?2". It is "" for a bare ? and for an index out of range.
func (s *Stmt) ParamName(i int) string {
	if i < 1 || i > len(s.names) {
		return ""
	}
	return s.names[i-1]
}

// Bind replaces the bound arguments, one per parameter slot.
func (s *Stmt) Bind(args ...interface{}) error {
	if err := s.usable(); err != nil {
		return err
	}
	if len(args) != len(s.names) {
		return dberr.NewCompileError("statement has %d parameters but %d arguments were given", len(s.names), len(args))
	}
	bound := make([]value.Value, len(args))
	for i, arg := range args {
		v, err := value.From(arg)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		bound[i] = v
	}
	s.bound = bound
	return nil
}

// Reset clears the bound arguments; every parameter is NULL until the next Bind.
func (s *Stmt) Reset() {
	s.bound = nil
}

// Exec runs the statement. Arguments, when given, are bound first and stay bound for
// later runs.
func (s *Stmt) Exec(ctx context.Context, args ...interface{}) (*Result, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if err := s.Bind(args...); err != nil {
			return nil, err
		}
	}
	params := s.bound
	if params == nil {
		params = make([]value.Value, len(s.names))
		for i := range params {
			params[i] = value.Null()
		}
	}
	return s.conn.dispatch(ctx, s.sql, s.cmd, params, s.stmt.Run)
}

// Query runs the statement and decodes its rows with their stored kinds.
func (s *Stmt) Query(ctx context.Context, args ...interface{}) ([]Record, error) {
	res, err := s.Exec(ctx, args...)
	if err != nil {
		return nil, err
	}
	return result.Decode(res, nil)
}

// Close finalizes the statement. It is safe to call more than once.
func (s *Stmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.conn.forget(s)
	return s.stmt.Close()
}

func (s *Stmt) usable() error {
	if s.closed {
		return dberr.NewCompileError("statement %q used after Close", s.sql)
	}
	return s.conn.usable()
}
