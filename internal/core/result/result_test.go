package result

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/value"
)

func text(s string) value.Wire { return value.Wire{Class: value.StorageText, Text: s} }
func integer(i int64) value.Wire {
	return value.Wire{Class: value.StorageInteger, Integer: i}
}
func null() value.Wire { return value.Wire{Class: value.StorageNull} }

func TestDecode_ColumnCountMismatch(t *testing.T) {
	res := New(domain.CommandSelect, []string{"id", "name"}, [][]value.Wire{
		{integer(1), text("ada")},
	}, 0, 0)
	shape := domain.Shape{
		{Name: "id", Kind: value.KindInteger},
		{Name: "name", Kind: value.KindText},
		{Name: "email", Kind: value.KindText},
	}

	records, err := Decode(res, shape)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberr.ErrDecode))
	assert.Empty(t, records)
}

func TestDecode_UsesShapeHints(t *testing.T) {
	id := uuid.New()
	res := New(domain.CommandSelect, []string{"a", "b", "c", "d"}, [][]value.Wire{
		{integer(1), text("12.50"), {Class: value.StorageBlob, Blob: id[:]}, null()},
		{integer(0), integer(3), {Class: value.StorageBlob, Blob: id[:]}, text("x")},
	}, 0, 0)
	shape := domain.Shape{
		{Name: "active", Kind: value.KindBoolean},
		{Name: "price", Kind: value.KindDecimal},
		{Name: "ref", Kind: value.KindUUID},
		{Name: "note", Kind: value.KindText},
	}

	records, err := Decode(res, shape)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, []string{"active", "price", "ref", "note"}, first.Names())
	active, ok := first.Get("active")
	require.True(t, ok)
	assert.Equal(t, value.KindBoolean, active.Kind())
	assert.True(t, active.Bool())

	price, _ := first.Get("price")
	assert.True(t, price.Equal(value.Decimal(decimal.RequireFromString("12.50"))))

	ref, _ := first.Get("ref")
	assert.Equal(t, id.String(), ref.String())

	note, _ := first.Get("note")
	assert.True(t, note.IsNull())

	_, ok = first.Get("missing")
	assert.False(t, ok)
}

func TestDecode_IncompatibleValueFailsWholeResult(t *testing.T) {
	res := New(domain.CommandSelect, []string{"price"}, [][]value.Wire{
		{text("1.00")},
		{text("not a number")},
	}, 0, 0)

	records, err := Decode(res, domain.Shape{{Name: "price", Kind: value.KindDecimal}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberr.ErrDecode))
	assert.Contains(t, err.Error(), `column "price"`)
	assert.Nil(t, records)
}

func TestDecode_RaggedRow(t *testing.T) {
	res := New(domain.CommandSelect, []string{"a", "b"}, [][]value.Wire{{integer(1)}}, 0, 0)
	_, err := Decode(res, nil)
	assert.True(t, errors.Is(err, dberr.ErrDecode))
}

func TestDecode_NilShapeUsesNaturalKinds(t *testing.T) {
	res := New(domain.CommandSelect, []string{"n", "f"}, [][]value.Wire{
		{integer(7), {Class: value.StorageReal, Real: 1.5}},
	}, 0, 0)

	records, err := Decode(res, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	m := records[0].Map()
	assert.Equal(t, int64(7), m["n"].Int64())
	assert.Equal(t, 1.5, m["f"].Float64())
}

func TestDecode_NonRowCommands(t *testing.T) {
	for _, cmd := range []domain.Command{
		domain.CommandBegin, domain.CommandCommit, domain.CommandRollback,
		domain.CommandSavepoint, domain.CommandRelease, domain.CommandCreate,
		domain.CommandDrop, domain.CommandAlter,
	} {
		t.Run(string(cmd), func(t *testing.T) {
			res := New(cmd, nil, nil, 5, 0)
			assert.Zero(t, res.RowsAffected)

			records, err := Decode(res, domain.Shape{{Name: "x"}})
			require.NoError(t, err)
			assert.NotNil(t, records)
			assert.Empty(t, records)
		})
	}
}

func TestNew_KeepsAffectedRowsForDML(t *testing.T) {
	res := New(domain.CommandUpdate, nil, nil, 3, 0)
	assert.Equal(t, int64(3), res.RowsAffected)

	res = New(domain.CommandInsert, nil, nil, 1, 42)
	assert.Equal(t, int64(42), res.LastInsertID)
}

type user struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Email     *string
	Active    bool
	Score     float64 `json:"score,omitempty"`
	Joined    time.Time
	Nick      sql.NullString `db:"nick"`
	Ref       uuid.UUID
	Balance   decimal.Decimal
	Ignored   string `db:"-"`
	unexported int
}

func TestScan_SliceOfStructs(t *testing.T) {
	joined := time.Date(2024, 2, 29, 12, 0, 0, 0, time.FixedZone("", 3600))
	id := uuid.New()
	email := "ada@example.com"

	names := []string{"id", "name", "email", "active", "score", "JOINED", "nick", "ref", "balance", "ignored"}
	records := []Record{
		NewRecord(names, []value.Value{
			value.Int(1), value.MustText("Ada"), value.MustText(email), value.Bool(true),
			value.Float(9.5), value.DateTime(joined), value.MustText("countess"),
			value.UUID(id), value.Decimal(decimal.RequireFromString("10.25")), value.MustText("x"),
		}),
		NewRecord(names, []value.Value{
			value.Int(2), value.MustText("Grace"), value.Null(), value.Int(0),
			value.Int(7), value.MustText(joined.Format(value.DateTimeLayout)), value.Null(),
			value.UUID(id), value.Int(3), value.Null(),
		}),
	}

	var users []user
	require.NoError(t, Scan(records, &users))
	require.Len(t, users, 2)

	ada := users[0]
	assert.Equal(t, int64(1), ada.ID)
	assert.Equal(t, "Ada", ada.Name)
	require.NotNil(t, ada.Email)
	assert.Equal(t, email, *ada.Email)
	assert.True(t, ada.Active)
	assert.Equal(t, 9.5, ada.Score)
	assert.True(t, joined.Equal(ada.Joined))
	assert.Equal(t, sql.NullString{String: "countess", Valid: true}, ada.Nick)
	assert.Equal(t, id, ada.Ref)
	assert.Equal(t, "10.25", ada.Balance.StringFixed(2))
	assert.Empty(t, ada.Ignored)

	grace := users[1]
	assert.Nil(t, grace.Email)
	assert.False(t, grace.Active)
	assert.Equal(t, 7.0, grace.Score)
	assert.True(t, joined.Equal(grace.Joined))
	assert.False(t, grace.Nick.Valid)
	assert.True(t, grace.Balance.Equal(decimal.NewFromInt(3)))
}

func TestScan_SingleStruct(t *testing.T) {
	records := []Record{NewRecord([]string{"id"}, []value.Value{value.Int(5)})}

	var u user
	require.NoError(t, Scan(records, &u))
	assert.Equal(t, int64(5), u.ID)

	err := Scan(nil, &u)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestScan_Errors(t *testing.T) {
	records := []Record{NewRecord([]string{"active"}, []value.Value{value.MustText("yes")})}

	var users []user
	err := Scan(records, &users)
	assert.True(t, errors.Is(err, dberr.ErrDecode))

	assert.Error(t, Scan(records, users))
	var ints []int
	assert.Error(t, Scan(records, &ints))

	type small struct {
		N int8 `db:"n"`
	}
	var s small
	err = Scan([]Record{NewRecord([]string{"n"}, []value.Value{value.Int(300)})}, &s)
	assert.ErrorContains(t, err, "overflows")
}
