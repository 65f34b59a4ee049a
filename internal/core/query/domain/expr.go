package domain

import "github.com/satishbabariya/litesql/internal/core/value"

// Expr is a boolean filter tree node.
type Expr interface {
	exprNode()
}

// And is a conjunction. A nested And or Or keeps its own parentheses.
type And []Expr

// Or is a disjunction.
type Or []Expr

// Not negates its operand.
type Not struct {
	Expr Expr
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	Eq  CompareOp = "="
	Neq CompareOp = "<>"
	Lt  CompareOp = "<"
	Lte CompareOp = "<="
	Gt  CompareOp = ">"
	Gte CompareOp = ">="
	// Is is the NULL-safe equality operator.
	Is CompareOp = "IS"
	// IsNot is the NULL-safe inequality operator.
	IsNot CompareOp = "IS NOT"
)

// Compare is Left Op Right.
type Compare struct {
	Left  Operand
	Op    CompareOp
	Right Operand
}

// IsNull tests for NULL.
type IsNull struct {
	Operand Operand
	Negate  bool
}

// In tests membership in a value list or a subquery.
type In struct {
	Operand  Operand
	Values   []Operand
	Subquery *Select
	Negate   bool
}

// LikeOp is a pattern operator.
type LikeOp string

const (
	// OpLike matches case-insensitively for ASCII.
	OpLike LikeOp = "LIKE"
	// OpGlob matches case-sensitively with Unix wildcards.
	OpGlob LikeOp = "GLOB"
)

// Like matches Operand against Pattern.
type Like struct {
	Operand Operand
	Op      LikeOp
	Pattern Operand
	Negate  bool
}

// Between tests Low <= Operand <= High.
type Between struct {
	Operand Operand
	Low     Operand
	High    Operand
	Negate  bool
}

// Exists tests whether a subquery returns rows.
type Exists struct {
	Select *Select
	Negate bool
}

func (And) exprNode()     {}
func (Or) exprNode()      {}
func (Not) exprNode()     {}
func (Compare) exprNode() {}
func (IsNull) exprNode()  {}
func (In) exprNode()      {}
func (Like) exprNode()    {}
func (Between) exprNode() {}
func (Exists) exprNode()  {}

// Operand is a scalar term: Column, Param, Subquery, Aggregate or Arith.
type Operand interface {
	operandNode()
}

// Column references a column, optionally qualified by a table or alias.
// Name "*" selects every column.
type Column struct {
	Table string
	Name  string
}

// Col returns an unqualified column reference.
func Col(name string) Column { return Column{Name: name} }

// TableCol returns a qualified column reference.
func TableCol(table, name string) Column { return Column{Table: table, Name: name} }

// Param is a bound value. It always compiles to a placeholder.
type Param struct {
	Value value.Value
}

// Val wraps v as an operand.
func Val(v value.Value) Param { return Param{Value: v} }

// Subquery is a scalar subquery.
type Subquery struct {
	Select *Select
}

// AggregateFunc names an aggregate.
type AggregateFunc string

const (
	Count AggregateFunc = "COUNT"
	Sum   AggregateFunc = "SUM"
	Avg   AggregateFunc = "AVG"
	Min   AggregateFunc = "MIN"
	Max   AggregateFunc = "MAX"
	Total AggregateFunc = "TOTAL"
)

// Aggregate applies Func to Column. A nil Column is only valid for COUNT(*).
type Aggregate struct {
	Func     AggregateFunc
	Column   *Column
	Distinct bool
}

// ArithOp is a binary arithmetic or string operator.
type ArithOp string

const (
	Add    ArithOp = "+"
	Sub    ArithOp = "-"
	Mul    ArithOp = "*"
	Div    ArithOp = "/"
	Mod    ArithOp = "%"
	Concat ArithOp = "||"
)

// Arith is Left Op Right, always parenthesized.
type Arith struct {
	Left  Operand
	Op    ArithOp
	Right Operand
}

func (Column) operandNode()    {}
func (Param) operandNode()     {}
func (Subquery) operandNode()  {}
func (Aggregate) operandNode() {}
func (Arith) operandNode()     {}
