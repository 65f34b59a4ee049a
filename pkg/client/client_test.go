package client

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/satishbabariya/litesql/internal/adapters/database"
	"github.com/satishbabariya/litesql/internal/adapters/database/sqlite"
	"github.com/satishbabariya/litesql/internal/config"
	"github.com/satishbabariya/litesql/internal/core/retry"
)

// ClientSuite runs the public API against a real SQLite file.
type ClientSuite struct {
	suite.Suite
	ctx    context.Context
	path   string
	client *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func testOptions() []Option {
	return []Option{
		WithPoolSize(2),
		WithCheckoutTimeout(200 * time.Millisecond),
		WithHealthCheckInterval(0),
		WithEngineOption(config.KeyBusyTimeoutMS, 1),
		WithRetry(
			retry.WithMaxAttempts(50),
			retry.WithInitialDelay(2*time.Millisecond),
			retry.WithMaxDelay(10*time.Millisecond),
			retry.WithJitter(false),
		),
	}
}

func (s *ClientSuite) SetupTest() {
	s.ctx = context.Background()
	s.path = filepath.Join(s.T().TempDir(), "app.db")

	c, err := Open(s.ctx, s.path, testOptions()...)
	s.Require().NoError(err)
	s.client = c

	for _, stmt := range []Statement{
		&DDL{Kind: CreateTable, Table: "counters", Definition: &TableDef{Columns: []ColumnDef{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
			{Name: "key", Type: "TEXT", NotNull: true, Unique: true},
			{Name: "count", Type: "INTEGER", NotNull: true, Default: "0"},
		}}},
		&DDL{Kind: CreateTable, Table: "users", Definition: &TableDef{Columns: []ColumnDef{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "email", Type: "TEXT", NotNull: true},
			{Name: "name", Type: "TEXT"},
			{Name: "balance", Type: "TEXT"},
			{Name: "uid", Type: "BLOB"},
			{Name: "created", Type: "TEXT"},
			{Name: "meta", Type: "TEXT"},
			{Name: "active", Type: "INTEGER"},
		}}},
		&DDL{Kind: CreateIndex, Table: "users", Index: &IndexDef{Name: "users_email_key", Columns: []string{"email"}, Unique: true}},
	} {
		_, err := s.client.Exec(s.ctx, stmt)
		s.Require().NoError(err)
	}
}

func (s *ClientSuite) TearDownTest() {
	if s.client != nil {
		s.client.Close(s.ctx)
	}
}

func (s *ClientSuite) insertUser(conn *Conn, email string) {
	_, err := conn.Exec(s.ctx, &Insert{Table: "users", Columns: []string{"email"}, Rows: [][]Value{{MustText(email)}}})
	s.Require().NoError(err)
}

func (s *ClientSuite) countUsers() int64 {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	records, err := conn.QuerySQL(s.ctx, `SELECT count(*) AS "n" FROM "users"`)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	n, _ := records[0].Get("n")
	return n.Int64()
}

func (s *ClientSuite) TestUpsertReturning() {
	upsert := func(count int64) *Insert {
		return &Insert{
			Table:      "counters",
			Columns:    []string{"key", "count"},
			Rows:       [][]Value{{MustText("hits"), Int(count)}},
			OnConflict: &OnConflict{Action: ConflictUpdate, Target: []string{"key"}, Fields: []string{"count"}},
			Returning:  []string{"id"},
		}
	}

	cs, err := s.client.Compile(s.ctx, upsert(1))
	s.Require().NoError(err)
	s.Contains(cs.SQL, "ON CONFLICT")
	s.Contains(cs.SQL, `DO UPDATE SET "count" = ?`)
	s.Contains(cs.SQL, `RETURNING "id"`)
	s.Len(cs.Params, 3)

	first, err := s.client.Query(s.ctx, upsert(1))
	s.Require().NoError(err)
	s.Require().Len(first, 1)

	second, err := s.client.Query(s.ctx, upsert(7))
	s.Require().NoError(err)
	s.Require().Len(second, 1)

	id1, _ := first[0].Get("id")
	id2, _ := second[0].Get("id")
	s.Equal(id1.Int64(), id2.Int64())

	rows, err := s.client.Query(s.ctx, &Select{
		Sources:     []Source{{Table: "counters"}},
		Projections: []Projection{{Operand: Col("count")}},
		Where:       Compare{Left: Col("key"), Op: Eq, Right: Val(MustText("hits"))},
	})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	count, _ := rows[0].Get("count")
	s.Equal(int64(7), count.Int64())
}

func (s *ClientSuite) TestValuesRoundTripThroughEngine() {
	created := time.Date(2024, 2, 29, 23, 59, 59, 123456789, time.FixedZone("", -7*3600))
	balance := decimal.RequireFromString("10.500")
	id := uuid.MustParse("8f14e45f-ceea-467f-a0e6-5b8e3f2a1c9d")
	meta, err := JSON(map[string]interface{}{"tags": []interface{}{"a", "b"}, "n": 1.5})
	s.Require().NoError(err)

	want := []Value{MustText("ada@example.com"), Decimal(balance), UUID(id), DateTime(created), meta, Bool(true)}
	_, err = s.client.Exec(s.ctx, &Insert{
		Table:   "users",
		Columns: []string{"email", "balance", "uid", "created", "meta", "active"},
		Rows:    [][]Value{want},
	})
	s.Require().NoError(err)

	records, err := s.client.Query(s.ctx, &Select{
		Sources: []Source{{Table: "users"}},
		Projections: []Projection{
			{Operand: Col("email"), Hint: KindText},
			{Operand: Col("balance"), Hint: KindDecimal},
			{Operand: Col("uid"), Hint: KindUUID},
			{Operand: Col("created"), Hint: KindDateTime},
			{Operand: Col("meta"), Hint: KindJSON},
			{Operand: Col("active"), Hint: KindBoolean},
		},
	})
	s.Require().NoError(err)
	s.Require().Len(records, 1)

	got := records[0].Values()
	s.Require().Len(got, len(want))
	for i := range want {
		s.True(want[i].Equal(got[i]), "column %s: want %s, got %s", records[0].Names()[i], want[i], got[i])
	}
	s.Equal("10.500", got[1].Dec().StringFixed(3))
	s.Equal(created.Format(time.RFC3339Nano), got[3].Time().Format(time.RFC3339Nano))
}

type scannedUser struct {
	ID      int64           `db:"id"`
	Email   string          `db:"email"`
	Name    *string         `db:"name"`
	Balance decimal.Decimal `db:"balance"`
	Active  bool            `db:"active"`
}

func (s *ClientSuite) TestScanIntoStructs() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	_, err = conn.ExecSQL(s.ctx, `INSERT INTO "users" ("email", "name", "balance", "active") VALUES (?, ?, ?, ?)`,
		"a@example.com", "Ada", "1.25", true)
	s.Require().NoError(err)
	_, err = conn.ExecSQL(s.ctx, `INSERT INTO "users" ("email", "balance", "active") VALUES (?, ?, ?)`,
		"b@example.com", "0", false)
	s.Require().NoError(err)

	records, err := conn.Query(s.ctx, &Select{
		Sources: []Source{{Table: "users"}},
		Projections: []Projection{
			{Operand: Col("id")},
			{Operand: Col("email")},
			{Operand: Col("name")},
			{Operand: Col("balance"), Hint: KindDecimal},
			{Operand: Col("active"), Hint: KindBoolean},
		},
		OrderBy: []OrderBy{{Operand: Col("email")}},
	})
	s.Require().NoError(err)

	var users []scannedUser
	s.Require().NoError(Scan(records, &users))
	s.Require().Len(users, 2)
	s.Require().NotNil(users[0].Name)
	s.Equal("Ada", *users[0].Name)
	s.True(users[0].Balance.Equal(decimal.RequireFromString("1.25")))
	s.True(users[0].Active)
	s.Nil(users[1].Name)
	s.False(users[1].Active)
}

func (s *ClientSuite) TestNestedTransactionRollsBackInnerLevelOnly() {
	errInner := errors.New("inner failed")

	err := s.client.Transaction(s.ctx, func(tx *Conn) error {
		s.Equal(1, tx.Depth())
		s.insertUser(tx, "outer@example.com")

		err := tx.Transaction(s.ctx, func(inner *Conn) error {
			s.Equal(2, inner.Depth())
			s.Equal(InSavepoint, inner.State())
			s.insertUser(inner, "inner@example.com")
			return errInner
		})
		s.ErrorIs(err, errInner)
		s.Equal(1, tx.Depth())
		return nil
	})
	s.Require().NoError(err)

	s.Equal(int64(1), s.countUsers())
	s.Equal(0, s.client.Stats().InUse)
}

func (s *ClientSuite) TestTransactionRollsBackOnErrorAndPanic() {
	boom := errors.New("boom")
	err := s.client.Transaction(s.ctx, func(tx *Conn) error {
		s.insertUser(tx, "x@example.com")
		return boom
	})
	s.ErrorIs(err, boom)

	s.Panics(func() {
		s.client.Transaction(s.ctx, func(tx *Conn) error {
			s.insertUser(tx, "y@example.com")
			panic("bug")
		})
	})

	s.Equal(int64(0), s.countUsers())
	s.Equal(0, s.client.Stats().InUse)
}

func (s *ClientSuite) TestClosingWithOpenTransactionIsReported() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(conn.Begin(s.ctx))

	err = conn.Close()
	s.Require().Error(err)
	s.True(errors.Is(err, ErrTransaction))
	s.Equal(int64(1), s.client.Stats().DirtyReleases)

	_, err = conn.ExecSQL(s.ctx, "SELECT 1")
	s.True(errors.Is(err, ErrTransaction))
}

func (s *ClientSuite) TestRawTransactionStatementsTrackDepth() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	_, err = conn.ExecSQL(s.ctx, "BEGIN IMMEDIATE TRANSACTION")
	s.Require().NoError(err)
	s.Equal(1, conn.Depth())
	auto, err := conn.IsAutocommit(s.ctx)
	s.Require().NoError(err)
	s.False(auto)

	for _, sql := range []string{"BEGIN", "SAVEPOINT mine", "RELEASE mine", "ROLLBACK TO mine", "BEGIN SOMETHING"} {
		_, err = conn.ExecSQL(s.ctx, sql)
		s.True(errors.Is(err, ErrTransaction), sql)
		s.Equal(1, conn.Depth(), sql)
	}

	s.insertUser(conn, "raw@example.com")
	_, err = conn.ExecSQL(s.ctx, "commit;")
	s.Require().NoError(err)
	s.Equal(0, conn.Depth())
	s.Equal(int64(1), s.countUsersOn(conn))

	_, err = conn.ExecSQL(s.ctx, "ROLLBACK")
	s.True(errors.Is(err, ErrTransaction))

	results, err := conn.ExecScript(s.ctx, `
		BEGIN;
		INSERT INTO "users" ("email") VALUES ('script@example.com');
		END TRANSACTION;
	`)
	s.Require().NoError(err)
	s.Len(results, 3)
	s.Equal(0, conn.Depth())
	s.Equal(int64(2), s.countUsersOn(conn))
}

func (s *ClientSuite) TestScriptLeavingTransactionOpenIsReported() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	_, err = conn.ExecScript(s.ctx, `BEGIN; INSERT INTO "users" ("email") VALUES ('open@example.com');`)
	s.Require().NoError(err)

	err = conn.Close()
	s.True(errors.Is(err, ErrTransaction))
	s.Equal(int64(1), s.client.Stats().DirtyReleases)

	next, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer next.Close()
	auto, err := next.IsAutocommit(s.ctx)
	s.Require().NoError(err)
	s.True(auto)
	s.Require().NoError(next.Begin(s.ctx))
	s.Require().NoError(next.Rollback(s.ctx))
	s.Equal(int64(0), s.countUsersOn(next))
}

func (s *ClientSuite) TestEngineTransactionOutsideTheMachineIsDetected() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)

	_, err = conn.lease.Conn().Run(s.ctx, "BEGIN", nil)
	s.Require().NoError(err)
	s.Equal(0, conn.Depth())

	auto, err := conn.IsAutocommit(s.ctx)
	s.Require().NoError(err)
	s.False(auto)

	err = conn.Close()
	s.True(errors.Is(err, ErrTransaction))
	s.Equal(int64(1), s.client.Stats().DirtyReleases)
}

func (s *ClientSuite) TestPreparedStatements() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	insert, err := conn.PrepareStatement(s.ctx, `INSERT INTO "users" ("email", "name") VALUES (:email, :name) RETURNING "id", "email"`)
	s.Require().NoError(err)
	s.Equal(2, insert.ColumnCount())
	s.Equal([]string{"id", "email"}, insert.ColumnNames())
	col, err := insert.ColumnName(1)
	s.Require().NoError(err)
	s.Equal("email", col)
	_, err = insert.ColumnName(2)
	s.True(errors.Is(err, ErrCompile))
	s.Equal(2, insert.ParamCount())
	s.Equal(":email", insert.ParamName(1))
	s.Equal(":name", insert.ParamName(2))
	s.Equal("", insert.ParamName(3))
	s.Equal(int64(0), s.countUsersOn(conn))

	for _, email := range []string{"p1@example.com", "p2@example.com"} {
		records, err := insert.Query(s.ctx, email, "P")
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		got, _ := records[0].Get("email")
		s.Equal(email, got.Str())
	}
	_, err = insert.Exec(s.ctx, "only@example.com")
	s.True(errors.Is(err, ErrCompile))

	// Prepared statements run inside the connection's transaction.
	s.Require().NoError(conn.Begin(s.ctx))
	_, err = insert.Exec(s.ctx, "tx@example.com", "T")
	s.Require().NoError(err)
	s.Require().NoError(conn.Rollback(s.ctx))
	s.Equal(int64(2), s.countUsersOn(conn))

	count, err := conn.PrepareStatement(s.ctx, `SELECT count(*) AS "n" FROM "users" WHERE "name" IS ?`)
	s.Require().NoError(err)
	s.Equal(1, count.ParamCount())
	s.Equal("", count.ParamName(1))
	s.Require().NoError(count.Bind("P"))
	for i := 0; i < 2; i++ {
		records, err := count.Query(s.ctx)
		s.Require().NoError(err)
		n, _ := records[0].Get("n")
		s.Equal(int64(2), n.Int64())
	}
	count.Reset()
	records, err := count.Query(s.ctx)
	s.Require().NoError(err)
	n, _ := records[0].Get("n")
	s.Equal(int64(0), n.Int64())

	s.Require().NoError(count.Close())
	s.Require().NoError(count.Close())
	_, err = count.Query(s.ctx)
	s.True(errors.Is(err, ErrCompile))

	_, err = conn.PrepareStatement(s.ctx, "BEGIN")
	s.True(errors.Is(err, ErrTransaction))
	_, err = conn.PrepareStatement(s.ctx, "SELECT 1; SELECT 2")
	s.True(errors.Is(err, ErrCompile))
	_, err = conn.PrepareStatement(s.ctx, `SELECT * FROM "missing"`)
	s.True(errors.Is(err, ErrSyntax))
}

func (s *ClientSuite) TestCursorFetchesInBatches() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	emails := []string{"c1@example.com", "c2@example.com", "c3@example.com", "c4@example.com", "c5@example.com"}
	for _, email := range emails {
		s.insertUser(conn, email)
	}

	cur, err := conn.DeclareCursor(s.ctx, `SELECT "email" FROM "users" WHERE "email" LIKE ? ORDER BY "email"`, "c%")
	s.Require().NoError(err)
	s.Equal([]string{"email"}, cur.Columns())

	var got []string
	var sizes []int
	for {
		batch, err := cur.Fetch(s.ctx, 2)
		s.Require().NoError(err)
		sizes = append(sizes, len(batch))
		for _, rec := range batch {
			v, _ := rec.Get("email")
			got = append(got, v.Str())
		}
		if len(batch) < 2 {
			break
		}
	}
	s.Equal([]int{2, 2, 1}, sizes)
	s.Equal(emails, got)

	batch, err := cur.Fetch(s.ctx, 2)
	s.Require().NoError(err)
	s.Empty(batch)
	_, err = cur.Fetch(s.ctx, 0)
	s.True(errors.Is(err, ErrCompile))

	s.Require().NoError(cur.Close())
	_, err = cur.Fetch(s.ctx, 1)
	s.True(errors.Is(err, ErrCompile))

	_, err = conn.DeclareCursor(s.ctx, `DELETE FROM "users"`)
	s.True(errors.Is(err, ErrCompile))
	_, err = conn.DeclareCursor(s.ctx, `SELECT ?`)
	s.True(errors.Is(err, ErrCompile))
	s.Equal(int64(5), s.countUsersOn(conn))
}

func (s *ClientSuite) TestCursorSeesItsTransaction() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.Begin(s.ctx))
	s.insertUser(conn, "pending@example.com")

	cur, err := conn.DeclareCursor(s.ctx, `SELECT "email" FROM "users"`)
	s.Require().NoError(err)
	batch, err := cur.Fetch(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Require().NoError(cur.Close())

	s.Require().NoError(conn.Rollback(s.ctx))
	s.Equal(int64(0), s.countUsersOn(conn))
}

func (s *ClientSuite) TestCloseReleasesStatementsAndCursors() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	s.insertUser(conn, "left@example.com")

	stmt, err := conn.PrepareStatement(s.ctx, `SELECT "email" FROM "users"`)
	s.Require().NoError(err)
	cur, err := conn.DeclareCursor(s.ctx, `SELECT "email" FROM "users"`)
	s.Require().NoError(err)
	// A partly read cursor keeps its read lock on the database.
	batch, err := cur.Fetch(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Len(conn.open, 2)

	s.Require().NoError(conn.Close())
	s.Empty(conn.open)
	s.Equal(int64(0), s.client.Stats().DirtyReleases)

	_, err = stmt.Query(s.ctx)
	s.Error(err)
	_, err = cur.Fetch(s.ctx, 1)
	s.Error(err)
	s.NoError(cur.Close())

	// The pooled connection is clean for the next borrower.
	next, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer next.Close()
	_, err = next.ExecSQL(s.ctx, `DELETE FROM "users"`)
	s.Require().NoError(err)
}

func (s *ClientSuite) TestChangeCounters() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	before, err := conn.TotalChanges(s.ctx)
	s.Require().NoError(err)

	s.insertUser(conn, "a@example.com")
	s.insertUser(conn, "b@example.com")
	changes, err := conn.Changes(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), changes)

	_, err = conn.ExecSQL(s.ctx, `UPDATE "users" SET "name" = 'n'`)
	s.Require().NoError(err)
	changes, err = conn.Changes(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), changes)

	total, err := conn.TotalChanges(s.ctx)
	s.Require().NoError(err)
	s.Equal(before+4, total)
}

func (s *ClientSuite) TestUniqueViolationNamesTheIndex() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	s.insertUser(conn, "dup@example.com")
	_, err = conn.Exec(s.ctx, &Insert{Table: "users", Columns: []string{"email"}, Rows: [][]Value{{MustText("dup@example.com")}}})
	s.Require().Error(err)
	s.True(IsUniqueConstraint(err))
	s.False(IsRetryable(err))

	var dbErr *Error
	s.Require().True(errors.As(err, &dbErr))
	s.Equal(ConstraintUnique, dbErr.Constraint.Type)
	s.Equal("users_email_key", dbErr.Constraint.Name)
}

func (s *ClientSuite) TestCheckoutTimeout() {
	a, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer a.Close()
	b, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer b.Close()

	_, err = s.client.Checkout(s.ctx)
	s.Require().Error(err)
	s.True(IsPoolTimeout(err))
}

func (s *ClientSuite) TestBusyBeginIsRetriedUntilTheLockIsReleased() {
	holder, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer holder.Close()
	s.Require().NoError(holder.BeginWith(s.ctx, Immediate))
	s.insertUser(holder, "holder@example.com")

	waiter, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer waiter.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(40 * time.Millisecond)
		assert.NoError(s.T(), holder.Commit(s.ctx))
	}()

	start := time.Now()
	s.Require().NoError(waiter.BeginWith(s.ctx, Immediate))
	s.GreaterOrEqual(time.Since(start), 30*time.Millisecond)
	wg.Wait()

	s.insertUser(waiter, "waiter@example.com")
	s.Require().NoError(waiter.Commit(s.ctx))
	s.Equal(int64(2), s.countUsersOn(waiter))
}

// countUsersOn counts through an already checked out connection, for when the pool is
// full.
func (s *ClientSuite) countUsersOn(conn *Conn) int64 {
	records, err := conn.QuerySQL(s.ctx, `SELECT count(*) AS "n" FROM "users"`)
	s.Require().NoError(err)
	n, _ := records[0].Get("n")
	return n.Int64()
}

func (s *ClientSuite) TestAutocommitInsideAndOutsideTransactions() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	auto, err := conn.IsAutocommit(s.ctx)
	s.Require().NoError(err)
	s.True(auto)

	s.Require().NoError(conn.Begin(s.ctx))
	auto, err = conn.IsAutocommit(s.ctx)
	s.Require().NoError(err)
	s.False(auto)
	s.Require().NoError(conn.Rollback(s.ctx))
}

func (s *ClientSuite) TestScriptsAndBatches() {
	conn, err := s.client.Checkout(s.ctx)
	s.Require().NoError(err)
	defer conn.Close()

	results, err := conn.ExecScript(s.ctx, `
		-- seed
		INSERT INTO "users" ("email") VALUES ('s1@example.com');
		INSERT INTO "users" ("email") VALUES ('s2@example.com');
	`)
	s.Require().NoError(err)
	s.Len(results, 2)

	good, err := Prepare(`INSERT INTO "users" ("email") VALUES (?)`, "t1@example.com")
	s.Require().NoError(err)
	dup, err := Prepare(`INSERT INTO "users" ("email") VALUES (?)`, "s1@example.com")
	s.Require().NoError(err)

	_, err = conn.TransactionalBatch(s.ctx, []*CompiledStatement{good, dup})
	s.Require().Error(err)
	s.True(IsUniqueConstraint(err))
	s.Equal(0, conn.Depth())

	partial, err := conn.Batch(s.ctx, []*CompiledStatement{good, dup})
	s.Require().Error(err)
	s.Contains(err.Error(), "batch statement 2")
	s.Len(partial, 1)

	records, err := conn.QuerySQL(s.ctx, `SELECT count(*) AS "n" FROM "users"`)
	s.Require().NoError(err)
	n, _ := records[0].Get("n")
	s.Equal(int64(3), n.Int64())
}

func (s *ClientSuite) TestPrepareRejectsArgumentMismatch() {
	_, err := Prepare(`SELECT ? + ?`, 1)
	s.True(errors.Is(err, ErrCompile))

	_, err = Prepare(`SELECT '?' || ?`, "x")
	s.NoError(err)
}

func (s *ClientSuite) TestMiddlewareWrapsStatements() {
	var order []string
	s.client.Use(func(ctx context.Context, params MiddlewareParams, next MiddlewareNext) MiddlewareResult {
		order = append(order, "outer:"+string(params.Command))
		res := next(ctx)
		order = append(order, "outer:done")
		return res
	})
	s.client.Use(func(ctx context.Context, params MiddlewareParams, next MiddlewareNext) MiddlewareResult {
		order = append(order, "inner")
		return next(ctx)
	})

	_, err := s.client.ExecSQL(s.ctx, `DELETE FROM "users"`)
	s.Require().NoError(err)
	s.Equal([]string{"outer:delete", "inner", "outer:done"}, order)
}

// legacyEngine reports an engine build without RETURNING support.
type legacyEngine struct {
	database.Engine
}

func (e legacyEngine) Capabilities() Capabilities {
	caps := e.Engine.Capabilities()
	caps.Returning = false
	return caps
}

func TestReturningFallbackReadsBackTheRow(t *testing.T) {
	ctx := context.Background()
	engine, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "legacy.db"), nil)
	require.NoError(t, err)

	c, err := New(ctx, legacyEngine{engine}, WithPoolSize(1), WithHealthCheckInterval(0))
	require.NoError(t, err)
	defer c.Close(ctx)

	_, err = c.ExecSQL(ctx, `CREATE TABLE "counters" ("id" INTEGER PRIMARY KEY, "key" TEXT UNIQUE, "count" INTEGER)`)
	require.NoError(t, err)

	ins := &Insert{
		Table:     "counters",
		Columns:   []string{"key", "count"},
		Rows:      [][]Value{{MustText("a"), Int(3)}},
		Returning: []string{"id", "count"},
	}
	cs, err := c.Compile(ctx, ins)
	require.NoError(t, err)
	assert.True(t, cs.RequiresReselect)
	assert.NotContains(t, cs.SQL, "RETURNING")

	records, err := c.Query(ctx, ins)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"id", "count"}, records[0].Names())
	count, _ := records[0].Get("count")
	assert.Equal(t, int64(3), count.Int64())

	res, err := c.Exec(ctx, &Update{
		Table:     "counters",
		Set:       []Assignment{{Column: "count", Value: Val(Int(4))}},
		Returning: []string{"id"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Empty(t, res.Rows)
}

func TestOpen_UnsupportedOptionFailsFast(t *testing.T) {
	_, err := Open(context.Background(), ":memory:", WithEngineOption(config.KeySyncURL, "libsql://db.example.com"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}
