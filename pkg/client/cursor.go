package client

import (
	"context"

	"github.com/satishbabariya/litesql/internal/adapters/database"
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// Cursor reads the rows of one query in batches, so a large result never sits in memory
// at once. It belongs to its connection and is closed with it.
type Cursor struct {
	conn   *Conn
	sql    string
	rows   database.Rows
	closed bool
}

// DeclareCursor starts a query that returns rows and leaves them unread. A busy engine is
// reported by Fetch and is not retried.
func (c *Conn) DeclareCursor(ctx context.Context, sql string, args ...interface{}) (*Cursor, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	cs, err := Prepare(sql, args...)
	if err != nil {
		return nil, err
	}
	if !cs.ReturnsRows {
		return nil, dberr.NewCompileError("a cursor needs a statement that returns rows: %s", sql)
	}
	streamer, ok := c.lease.Conn().(database.Streamer)
	if !ok {
		return nil, dberr.NewConfigurationError("connection %d cannot stream rows", c.ID())
	}
	wires, err := value.EncodeAll(cs.Params)
	if err != nil {
		return nil, err
	}
	if c.client.config.LogQueries {
		c.client.logger.Debug("declaring cursor", "sql", sql, "params", cs.Params, "conn", c.ID(), "depth", c.Depth())
	}

	rows, err := streamer.Stream(ctx, sql, wires)
	if err != nil {
		return nil, c.enrichConstraint(ctx, err)
	}
	cur := &Cursor{conn: c, sql: sql, rows: rows}
	c.track(cur)
	return cur, nil
}

// Columns returns the result column names.
func (cur *Cursor) Columns() []string {
	return append([]string(nil), cur.rows.Columns()...)
}

// Fetch returns up to n records. A batch shorter than n, and every batch after it, means
// the cursor is exhausted.
func (cur *Cursor) Fetch(ctx context.Context, n int) ([]Record, error) {
	if cur.closed {
		return nil, dberr.NewCompileError("cursor %q used after Close", cur.sql)
	}
	if err := cur.conn.usable(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, dberr.NewCompileError("fetch size must be positive, got %d", n)
	}
	batch, err := cur.rows.Next(ctx, n)
	if err != nil {
		return nil, cur.conn.enrichConstraint(ctx, err)
	}
	res := result.New(domain.CommandSelect, cur.rows.Columns(), batch, int64(len(batch)), 0)
	return result.Decode(res, nil)
}

// Close releases the rows. It is safe to call more than once.
func (cur *Cursor) Close() error {
	if cur.closed {
		return nil
	}
	cur.closed = true
	cur.conn.forget(cur)
	return cur.rows.Close()
}
