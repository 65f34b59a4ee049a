// Package domain contains the query AST compiled by the SQL compiler and the compiled form
// handed to the engine.
package domain

import "github.com/satishbabariya/litesql/internal/core/value"

// Statement is one relational operation: *Select, *Insert, *Update, *Delete or *DDL.
type Statement interface {
	statementNode()
}

// Select describes a SELECT query.
//
// Example: SELECT "id", COUNT(*) AS "n" FROM "users" WHERE "active" = ? GROUP BY "id"
// is represented as:
//
//	Select{
//	  Sources:     []Source{{Table: "users"}},
//	  Projections: []Projection{{Operand: Col("id")}, {Operand: Aggregate{Func: Count}, Alias: "n"}},
//	  Where:       Compare{Left: Col("active"), Op: Eq, Right: Val(value.Bool(true))},
//	  GroupBy:     []Column{Col("id")},
//	}
type Select struct {
	Distinct    bool
	Sources     []Source     // FROM list; several sources form a cross product
	Joins       []Join       // compiled left to right
	Where       Expr         // nil means no filter
	Projections []Projection // empty means *
	GroupBy     []Column
	Having      Expr
	OrderBy     []OrderBy
	Limit       *int64
	Offset      *int64
	Combinators []Combinator
}

// Source is a table or subquery in a FROM or JOIN clause.
type Source struct {
	Schema   string
	Table    string
	Subquery *Select // when set, Table is ignored and Alias is required
	Alias    string
}

// JoinType selects the join operator.
type JoinType string

const (
	// InnerJoin keeps matching rows only.
	InnerJoin JoinType = "INNER"
	// LeftJoin keeps every row of the left side.
	LeftJoin JoinType = "LEFT"
	// RightJoin keeps every row of the right side.
	RightJoin JoinType = "RIGHT"
	// FullJoin keeps every row of both sides.
	FullJoin JoinType = "FULL"
	// CrossJoin is the cartesian product; On must be nil.
	CrossJoin JoinType = "CROSS"
)

// Join attaches a source to the FROM clause.
type Join struct {
	Type   JoinType
	Source Source
	On     Expr
}

// Projection is one output column.
type Projection struct {
	Operand Operand
	Alias   string
	// Hint is the kind the column is decoded as; KindAny takes the stored kind.
	Hint value.Kind
}

// Direction is a sort direction.
type Direction string

const (
	// Asc sorts ascending.
	Asc Direction = "ASC"
	// Desc sorts descending.
	Desc Direction = "DESC"
)

// NullsOrder places NULLs in a sort.
type NullsOrder string

const (
	// NullsDefault leaves NULL placement to the engine.
	NullsDefault NullsOrder = ""
	// NullsFirst sorts NULLs first.
	NullsFirst NullsOrder = "NULLS FIRST"
	// NullsLast sorts NULLs last.
	NullsLast NullsOrder = "NULLS LAST"
)

// OrderBy is one sort key.
type OrderBy struct {
	Operand   Operand
	Direction Direction
	Nulls     NullsOrder
}

// CombinatorOp is a compound-select operator.
type CombinatorOp string

const (
	// Union merges results without duplicates.
	Union CombinatorOp = "UNION"
	// UnionAll merges results keeping duplicates.
	UnionAll CombinatorOp = "UNION ALL"
	// Intersect keeps rows present in both.
	Intersect CombinatorOp = "INTERSECT"
	// Except keeps rows absent from the right side.
	Except CombinatorOp = "EXCEPT"
)

// Combinator appends a compound member to a Select. The member must not carry its own
// ORDER BY, LIMIT or OFFSET; those belong to the outer Select.
type Combinator struct {
	Op     CombinatorOp
	Select *Select
}

// Insert describes an INSERT. With no Columns and no Rows it inserts DEFAULT VALUES.
type Insert struct {
	Table      string
	Columns    []string
	Rows       [][]value.Value
	OnConflict *OnConflict
	Returning  []string
}

// ConflictAction is the upsert policy.
type ConflictAction string

const (
	// ConflictReplace emits INSERT OR REPLACE.
	ConflictReplace ConflictAction = "replace"
	// ConflictUpdate emits ON CONFLICT ... DO UPDATE SET.
	ConflictUpdate ConflictAction = "update"
	// ConflictNothing emits ON CONFLICT DO NOTHING.
	ConflictNothing ConflictAction = "nothing"
)

// OnConflict is the upsert clause of an Insert.
type OnConflict struct {
	Action ConflictAction
	// Target lists the conflicting unique key columns.
	Target []string
	// Fields are updated from the inserted row on conflict.
	Fields []string
	// Set holds explicit assignments, emitted after Fields.
	Set []Assignment
	// Where restricts the DO UPDATE.
	Where Expr
}

// Assignment is one SET item.
type Assignment struct {
	Column string
	Value  Operand
}

// Update describes an UPDATE.
type Update struct {
	Table     string
	Set       []Assignment
	Where     Expr
	Returning []string
}

// Delete describes a DELETE.
type Delete struct {
	Table     string
	Where     Expr
	Returning []string
}

func (*Select) statementNode() {}
func (*Insert) statementNode() {}
func (*Update) statementNode() {}
func (*Delete) statementNode() {}
func (*DDL) statementNode()    {}

// Int64 returns a pointer to n, for Limit and Offset.
func Int64(n int64) *int64 { return &n }
