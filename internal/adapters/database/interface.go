// Package database defines the engine boundary: an engine hands out connections and a
// connection runs one statement at a time.
package database

import (
	"context"

	"github.com/satishbabariya/litesql/internal/core/query/compiler"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// Engine opens connections to one database.
type Engine interface {
	// Connect opens a new, exclusive connection.
	Connect(ctx context.Context) (Conn, error)

	// Version returns the engine library version, such as "3.46.1".
	Version() string

	// Capabilities returns the dialect features of this engine build.
	Capabilities() compiler.Capabilities

	// Dialect returns the SQL dialect.
	Dialect() SQLDialect

	// Close releases the engine. Connections must be closed first.
	Close() error
}

// Conn is a single engine connection. It is not safe for concurrent use.
type Conn interface {
	// ID identifies the connection in logs.
	ID() uint64

	// Run executes one statement with positional parameters. Failures are mapped *dberr.Error.
	Run(ctx context.Context, sql string, params []value.Wire) (*result.Result, error)

	// Ping checks that the connection is alive.
	Ping(ctx context.Context) error

	// Close closes the connection.
	Close() error
}

// ConstraintResolver is implemented by connections that can name the index behind a
// unique constraint violation.
type ConstraintResolver interface {
	// UniqueIndexName returns the unique index covering the columns the engine reported
	// (for example "users.email"), or "" when none matches.
	UniqueIndexName(ctx context.Context, reported string) (string, error)
}

// AutocommitReporter is implemented by connections that can tell whether the engine is
// currently outside a transaction.
type AutocommitReporter interface {
	Autocommit(ctx context.Context) (bool, error)
}

// Preparer is implemented by connections that can compile a statement once and run it
// many times.
type Preparer interface {
	Prepare(ctx context.Context, sql string) (Stmt, error)
}

// Stmt is a compiled statement owned by one connection.
type Stmt interface {
	// Run binds params, replacing earlier bindings, and runs the statement to completion.
	Run(ctx context.Context, params []value.Wire) (*result.Result, error)

	// Columns returns the result column names; statements without a row set have none.
	Columns() []string

	// NumParams returns the number of parameter slots.
	NumParams() int

	// Close finalizes the statement.
	Close() error
}

// Streamer is implemented by connections that can hand out rows in batches instead of
// reading the whole result at once.
type Streamer interface {
	Stream(ctx context.Context, sql string, params []value.Wire) (Rows, error)
}

// Rows is an open result set. The connection stays usable while it is open.
type Rows interface {
	Columns() []string

	// Next reads up to n rows. Fewer than n rows means the result is exhausted.
	Next(ctx context.Context, n int) ([][]value.Wire, error)

	Close() error
}

// ChangeCounter is implemented by connections that report the rows modified by their
// statements.
type ChangeCounter interface {
	// Changes returns the rows modified by the most recent INSERT, UPDATE or DELETE.
	Changes(ctx context.Context) (int64, error)

	// TotalChanges returns the rows modified since the connection was opened.
	TotalChanges(ctx context.Context) (int64, error)
}

// SQLDialect represents a SQL dialect.
type SQLDialect string

// SQLite dialect.
const SQLite SQLDialect = "sqlite"
