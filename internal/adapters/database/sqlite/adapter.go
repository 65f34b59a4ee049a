// Package sqlite implements the engine boundary on mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/satishbabariya/litesql/internal/adapters/database"
	"github.com/satishbabariya/litesql/internal/config"
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/compiler"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/query/sqlscan"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/value"
	"github.com/satishbabariya/litesql/internal/debug"
)

// DriverName is the database/sql driver this engine uses.
const DriverName = "sqlite3"

// Engine opens connections to one SQLite database file.
type Engine struct {
	db      *sql.DB
	dsn     string
	opts    config.Options
	version string
	caps    compiler.Capabilities
	logger  *slog.Logger

	nextID atomic.Uint64
}

// Open validates options and prepares an engine for path. ":memory:" (or "") opens a
// private in-memory database shared by all of this engine's connections. Unsupported
// options fail here, before any statement runs.
func Open(ctx context.Context, path string, rawOptions map[string]interface{}) (*Engine, error) {
	opts, err := config.ParseOptions(rawOptions)
	if err != nil {
		return nil, err
	}
	if opts.Remote() {
		return nil, dberr.NewConfigurationError("%s is not supported by the embedded sqlite3 engine", config.KeySyncURL)
	}

	libVersion, _, _ := sqlite3.Version()
	caps, err := compiler.CapabilitiesFor(libVersion)
	if err != nil {
		return nil, dberr.NewConnectionError(err, "unrecognized engine version %q", libVersion)
	}

	dsn := buildDSN(path, opts)
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, dberr.NewConnectionError(err, "failed to open database: %v", err)
	}
	// Connections are held by the pool for their whole life; a closed connection is gone.
	db.SetMaxIdleConns(0)

	e := &Engine{
		db:      db,
		dsn:     dsn,
		opts:    opts,
		version: libVersion,
		caps:    caps,
		logger:  debug.With("engine", "sqlite", "path", path),
	}

	// Open one connection up front so open and key errors surface now.
	first, err := e.Connect(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := first.Close(); err != nil {
		db.Close()
		return nil, dberr.Map(err)
	}

	e.logger.Debug("engine opened", "version", libVersion, "options", opts.String())
	return e, nil
}

func buildDSN(path string, opts config.Options) string {
	var dsn string
	switch {
	case path == "" || path == ":memory:":
		dsn = fmt.Sprintf("file:litesql-%s?mode=memory&cache=shared", uuid.NewString())
	case strings.HasPrefix(path, "file:"):
		dsn = path
	default:
		dsn = "file:" + escapePath(path)
	}

	if opts.BusyTimeout > 0 {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += fmt.Sprintf("%s_busy_timeout=%d", sep, opts.BusyTimeout.Milliseconds())
	}
	return dsn
}

// escapePath percent-encodes each path segment so that '?', '#' and '%' in file names are
// not read as URI syntax.
func escapePath(path string) string {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// Connect opens a dedicated connection with foreign keys enabled and, when configured,
// the encryption key applied.
func (e *Engine) Connect(ctx context.Context) (database.Conn, error) {
	raw, err := e.db.Conn(ctx)
	if err != nil {
		return nil, dberr.NewConnectionError(err, "failed to open connection: %v", err)
	}

	// Foreign keys are disabled by default in SQLite.
	if _, err := raw.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		raw.Close()
		return nil, dberr.NewConnectionError(err, "failed to enable foreign keys: %v", err)
	}

	if key := e.opts.DerivedKey(); key != nil {
		if err := applyKey(ctx, raw, key); err != nil {
			raw.Close()
			return nil, err
		}
	}

	c := &Conn{id: e.nextID.Add(1), conn: raw}
	c.logger = e.logger.With("conn", c.id)
	c.logger.Debug("connection opened")
	return c, nil
}

func applyKey(ctx context.Context, raw *sql.Conn, key []byte) error {
	// The key is hex digits only; nothing user-controlled reaches the SQL text.
	if _, err := raw.ExecContext(ctx, fmt.Sprintf(`PRAGMA key = "x'%x'"`, key)); err != nil {
		return dberr.NewConnectionError(err, "failed to apply encryption key: %v", err)
	}

	var cipherVersion string
	err := raw.QueryRowContext(ctx, "PRAGMA cipher_version").Scan(&cipherVersion)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && cipherVersion == "") {
		return dberr.NewConfigurationError("%s requires an engine built with SQLCipher", config.KeyEncryptionKey)
	}
	if err != nil {
		return dberr.NewConnectionError(err, "failed to verify encryption: %v", err)
	}
	return nil
}

// Version returns the SQLite library version.
func (e *Engine) Version() string { return e.version }

// Capabilities returns the dialect features of the linked SQLite library.
func (e *Engine) Capabilities() compiler.Capabilities { return e.caps }

// Dialect returns the SQL dialect.
func (e *Engine) Dialect() database.SQLDialect { return database.SQLite }

// Close closes the underlying handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Conn is one dedicated SQLite connection.
type Conn struct {
	id     uint64
	conn   *sql.Conn
	logger *slog.Logger
}

// ID identifies the connection in logs.
func (c *Conn) ID() uint64 { return c.id }

// Run executes one statement. A statement is never interrupted once issued: the context is
// only checked before the call.
func (c *Conn) Run(ctx context.Context, sqlText string, params []value.Wire) (*result.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, dberr.Map(err)
	}
	r := runner{
		exec: func(ctx context.Context, args ...interface{}) (sql.Result, error) {
			return c.conn.ExecContext(ctx, sqlText, args...)
		},
		query: func(ctx context.Context, args ...interface{}) (*sql.Rows, error) {
			return c.conn.QueryContext(ctx, sqlText, args...)
		},
	}
	return c.run(context.WithoutCancel(ctx), r, sqlscan.Classify(sqlText), sqlscan.ReturnsRows(sqlText), params)
}

// runner is what a run needs from a *sql.Conn with its SQL text, or from a *sql.Stmt.
type runner struct {
	exec  func(ctx context.Context, args ...interface{}) (sql.Result, error)
	query func(ctx context.Context, args ...interface{}) (*sql.Rows, error)
}

func (c *Conn) run(ctx context.Context, r runner, cmd domain.Command, returnsRows bool, params []value.Wire) (*result.Result, error) {
	args := value.Args(params)
	if !returnsRows {
		res, err := r.exec(ctx, args...)
		if err != nil {
			return nil, dberr.Map(err)
		}
		affected, _ := res.RowsAffected()
		lastID, _ := res.LastInsertId()
		return result.New(cmd, nil, nil, affected, lastID), nil
	}

	rows, err := r.query(ctx, args...)
	if err != nil {
		return nil, dberr.Map(err)
	}
	columns, out, err := readAll(rows)
	if err != nil {
		return nil, dberr.Map(err)
	}

	var lastID int64
	if cmd == domain.CommandInsert {
		if err := c.conn.QueryRowContext(ctx, "SELECT last_insert_rowid()").Scan(&lastID); err != nil {
			return nil, dberr.Map(err)
		}
	}
	return result.New(cmd, columns, out, int64(len(out)), lastID), nil
}

func (c *Conn) query(ctx context.Context, sqlText string, args []interface{}) ([]string, [][]value.Wire, error) {
	rows, err := c.conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, err
	}
	return readAll(rows)
}

// readAll reads every row and closes rows.
func readAll(rows *sql.Rows) ([]string, [][]value.Wire, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	out, err := readRows(rows, columns, -1)
	if err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

// readRows reads up to limit rows; a negative limit reads them all.
func readRows(rows *sql.Rows, columns []string, limit int) ([][]value.Wire, error) {
	out := [][]value.Wire{}
	for limit < 0 || len(out) < limit {
		if !rows.Next() {
			break
		}
		raw := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make([]value.Wire, len(columns))
		for i, v := range raw {
			// Columns declared DATE, DATETIME or TIMESTAMP come back from the driver as
			// time.Time; text it could not parse arrives as the zero time.
			if t, ok := v.(time.Time); ok && t.IsZero() {
				return nil, dberr.NewDecodeError("column %q holds a value the driver could not read as a time", columns[i])
			}
			w, err := value.WireFromDriver(v)
			if err != nil {
				return nil, err
			}
			row[i] = w
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prepare compiles sqlText on this connection. Its columns and parameter count come from
// the engine.
func (c *Conn) Prepare(ctx context.Context, sqlText string) (database.Stmt, error) {
	if err := ctx.Err(); err != nil {
		return nil, dberr.Map(err)
	}
	columns, params, err := c.describe(sqlText)
	if err != nil {
		return nil, dberr.Map(err)
	}
	st, err := c.conn.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, dberr.Map(err)
	}
	c.logger.Debug("statement prepared", "sql", sqlText)
	return &Stmt{
		conn:        c,
		stmt:        st,
		cmd:         sqlscan.Classify(sqlText),
		returnsRows: len(columns) > 0,
		columns:     columns,
		params:      params,
	}, nil
}

// describe prepares sqlText on the driver connection and reads its shape. The statement
// is bound but never stepped, so nothing runs.
func (c *Conn) describe(sqlText string) ([]string, int, error) {
	var (
		columns []string
		params  int
	)
	err := c.conn.Raw(func(driverConn interface{}) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		ds, err := sc.Prepare(sqlText)
		if err != nil {
			return err
		}
		defer ds.Close()

		params = ds.NumInput()
		rows, err := ds.Query(make([]driver.Value, params))
		if err != nil {
			return err
		}
		columns = rows.Columns()
		return rows.Close()
	})
	return columns, params, err
}

// Stmt is a statement prepared on one connection.
type Stmt struct {
	conn        *Conn
	stmt        *sql.Stmt
	cmd         domain.Command
	returnsRows bool
	columns     []string
	params      int
}

// Run binds params and runs the statement. Like Conn.Run it is not interrupted once
// issued.
func (s *Stmt) Run(ctx context.Context, params []value.Wire) (*result.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, dberr.Map(err)
	}
	if len(params) != s.params {
		return nil, dberr.NewCompileError("statement has %d parameters but %d values were bound", s.params, len(params))
	}
	r := runner{exec: s.stmt.ExecContext, query: s.stmt.QueryContext}
	return s.conn.run(context.WithoutCancel(ctx), r, s.cmd, s.returnsRows, params)
}

// Columns returns the result column names.
func (s *Stmt) Columns() []string { return s.columns }

// NumParams returns the number of parameter slots.
func (s *Stmt) NumParams() int { return s.params }

// Close finalizes the statement.
func (s *Stmt) Close() error {
	if err := s.stmt.Close(); err != nil {
		return dberr.Map(err)
	}
	return nil
}

// Stream starts sqlText and returns its rows unread.
func (c *Conn) Stream(ctx context.Context, sqlText string, params []value.Wire) (database.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, dberr.Map(err)
	}
	rows, err := c.conn.QueryContext(context.WithoutCancel(ctx), sqlText, value.Args(params)...)
	if err != nil {
		return nil, dberr.Map(err)
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, dberr.Map(err)
	}
	return &Rows{rows: rows, columns: columns}, nil
}

// Rows is a result set read in batches. It closes itself once exhausted.
type Rows struct {
	rows    *sql.Rows
	columns []string
	done    bool
}

// Columns returns the result column names.
func (r *Rows) Columns() []string { return r.columns }

// Next reads up to n rows.
func (r *Rows) Next(ctx context.Context, n int) ([][]value.Wire, error) {
	if err := ctx.Err(); err != nil {
		return nil, dberr.Map(err)
	}
	if r.done || n <= 0 {
		return [][]value.Wire{}, nil
	}
	out, err := readRows(r.rows, r.columns, n)
	if err != nil {
		r.Close()
		return nil, dberr.Map(err)
	}
	if len(out) < n {
		r.Close()
	}
	return out, nil
}

// Close releases the result set. It is safe to call more than once.
func (r *Rows) Close() error {
	r.done = true
	if err := r.rows.Close(); err != nil {
		return dberr.Map(err)
	}
	return nil
}

// Changes returns the rows modified by the most recent INSERT, UPDATE or DELETE on this
// connection.
func (c *Conn) Changes(ctx context.Context) (int64, error) {
	return c.counter(ctx, "SELECT changes()")
}

// TotalChanges returns the rows modified since the connection was opened.
func (c *Conn) TotalChanges(ctx context.Context) (int64, error) {
	return c.counter(ctx, "SELECT total_changes()")
}

func (c *Conn) counter(ctx context.Context, sqlText string) (int64, error) {
	var n int64
	if err := c.conn.QueryRowContext(ctx, sqlText).Scan(&n); err != nil {
		return 0, dberr.Map(err)
	}
	return n, nil
}

// Ping checks the connection.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.conn.PingContext(ctx); err != nil {
		return dberr.Map(err)
	}
	return nil
}

// Autocommit reports whether the engine is outside a transaction. It turns true when
// SQLite rolls a transaction back on its own.
func (c *Conn) Autocommit(ctx context.Context) (bool, error) {
	var auto bool
	err := c.conn.Raw(func(driverConn interface{}) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		auto = sc.AutoCommit()
		return nil
	})
	if err != nil {
		return false, dberr.Map(err)
	}
	return auto, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.logger.Debug("connection closed")
	return c.conn.Close()
}

// UniqueIndexName finds the unique index whose columns are exactly the reported ones, in
// order. reported is the engine's "table.col, table.col" list.
func (c *Conn) UniqueIndexName(ctx context.Context, reported string) (string, error) {
	table, columns, ok := splitReported(reported)
	if !ok {
		return "", nil
	}

	indexes, err := c.uniqueIndexes(ctx, table)
	if err != nil {
		return "", err
	}

	for _, name := range indexes {
		cols, err := c.indexColumns(ctx, name)
		if err != nil {
			return "", err
		}
		if equalColumns(cols, columns) {
			return name, nil
		}
	}
	return "", nil
}

func (c *Conn) uniqueIndexes(ctx context.Context, table string) ([]string, error) {
	_, rows, err := c.query(ctx, "PRAGMA index_list("+quote(table)+")", nil)
	if err != nil {
		return nil, dberr.Map(err)
	}
	// seq, name, unique, origin, partial
	var names []string
	for _, row := range rows {
		if len(row) < 4 || row[2].Integer != 1 {
			continue
		}
		// Automatic indexes behind inline UNIQUE constraints have no user-visible name.
		if row[3].Text != "c" {
			continue
		}
		names = append(names, row[1].Text)
	}
	return names, nil
}

func (c *Conn) indexColumns(ctx context.Context, index string) ([]string, error) {
	_, rows, err := c.query(ctx, "PRAGMA index_info("+quote(index)+")", nil)
	if err != nil {
		return nil, dberr.Map(err)
	}
	// seqno, cid, name
	cols := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		cols = append(cols, row[2].Text)
	}
	return cols, nil
}

func splitReported(reported string) (string, []string, bool) {
	var table string
	var columns []string
	for _, part := range strings.Split(reported, ",") {
		t, col, ok := strings.Cut(strings.TrimSpace(part), ".")
		if !ok || (table != "" && t != table) {
			return "", nil, false
		}
		table = t
		columns = append(columns, col)
	}
	return table, columns, table != ""
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var (
	_ database.Engine             = (*Engine)(nil)
	_ database.Conn               = (*Conn)(nil)
	_ database.ConstraintResolver = (*Conn)(nil)
	_ database.AutocommitReporter = (*Conn)(nil)
	_ database.Preparer           = (*Conn)(nil)
	_ database.Streamer           = (*Conn)(nil)
	_ database.ChangeCounter      = (*Conn)(nil)
	_ database.Stmt               = (*Stmt)(nil)
	_ database.Rows               = (*Rows)(nil)
)
