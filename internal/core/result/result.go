// Package result turns raw engine output into application records.
package result

import (
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// Result is the raw outcome of one execution. It is produced once and consumed by Decode.
type Result struct {
	Columns      []string
	Rows         [][]value.Wire
	Command      domain.Command
	RowsAffected int64
	LastInsertID int64
}

// New builds a Result. Statements that are not INSERT, UPDATE or DELETE never report
// affected rows.
func New(cmd domain.Command, columns []string, rows [][]value.Wire, affected, lastID int64) *Result {
	if !cmd.IsDML() {
		affected = 0
	}
	return &Result{
		Columns:      columns,
		Rows:         rows,
		Command:      cmd,
		RowsAffected: affected,
		LastInsertID: lastID,
	}
}

// Record is one decoded row, keyed by the expected shape's field names.
type Record struct {
	names  []string
	values []value.Value
}

// NewRecord pairs names with values. Both slices must have the same length.
func NewRecord(names []string, values []value.Value) Record {
	return Record{names: names, values: values}
}

// Names returns the field names in column order.
func (r Record) Names() []string { return r.names }

// Values returns the field values in column order.
func (r Record) Values() []value.Value { return r.values }

// Len returns the number of fields.
func (r Record) Len() int { return len(r.values) }

// Get returns the value of the named field.
func (r Record) Get(name string) (value.Value, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return value.Null(), false
}

// Map returns the record as a map. Duplicate names keep the last column.
func (r Record) Map() map[string]value.Value {
	m := make(map[string]value.Value, len(r.names))
	for i, n := range r.names {
		m[n] = r.values[i]
	}
	return m
}

// Decode maps each row of res positionally onto shape, decoding every column with the
// field's kind hint. A nil shape accepts the result's own columns with natural kinds.
//
// A column count mismatch is a DecodeError and no records are returned; rows are never
// truncated or padded. Results of DDL and transaction-control statements decode to an
// empty set.
func Decode(res *Result, shape domain.Shape) ([]Record, error) {
	if res == nil {
		return nil, dberr.NewDecodeError("nil result")
	}
	if !producesRows(res.Command) {
		return []Record{}, nil
	}

	if shape == nil {
		shape = make(domain.Shape, len(res.Columns))
		for i, col := range res.Columns {
			shape[i] = domain.Field{Name: col, Kind: value.KindAny}
		}
	}
	if len(res.Columns) != len(shape) {
		return nil, dberr.NewDecodeError("result has %d columns %v, expected %d fields %v",
			len(res.Columns), res.Columns, len(shape), shape.Names())
	}

	names := shape.Names()
	records := make([]Record, 0, len(res.Rows))
	for i, row := range res.Rows {
		if len(row) != len(shape) {
			return nil, dberr.NewDecodeError("row %d has %d values, expected %d", i, len(row), len(shape))
		}
		values := make([]value.Value, len(row))
		for j, w := range row {
			v, err := value.Decode(w, shape[j].Kind)
			if err != nil {
				return nil, dberr.NewDecodeError("row %d, column %q: %v", i, names[j], err).WithCause(err)
			}
			values[j] = v
		}
		records = append(records, NewRecord(names, values))
	}
	return records, nil
}

func producesRows(cmd domain.Command) bool {
	switch cmd {
	case domain.CommandBegin, domain.CommandCommit, domain.CommandRollback,
		domain.CommandSavepoint, domain.CommandRelease,
		domain.CommandCreate, domain.CommandDrop, domain.CommandAlter:
		return false
	}
	return true
}
