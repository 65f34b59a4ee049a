package client

import (
	"github.com/satishbabariya/litesql/internal/core/database/pool"
	"github.com/satishbabariya/litesql/internal/core/query/compiler"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/transaction"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// Values.
type (
	Value     = value.Value
	ValueKind = value.Kind
)

const (
	KindAny      = value.KindAny
	KindNull     = value.KindNull
	KindInteger  = value.KindInteger
	KindFloat    = value.KindFloat
	KindText     = value.KindText
	KindBlob     = value.KindBlob
	KindBoolean  = value.KindBoolean
	KindDateTime = value.KindDateTime
	KindDecimal  = value.KindDecimal
	KindUUID     = value.KindUUID
	KindJSON     = value.KindJSON
)

// Value constructors.
var (
	Null     = value.Null
	Int      = value.Int
	Float    = value.Float
	Text     = value.Text
	MustText = value.MustText
	Blob     = value.Blob
	Bool     = value.Bool
	DateTime = value.DateTime
	Decimal  = value.Decimal
	UUID     = value.UUID
	JSON     = value.JSON
	JSONRaw  = value.JSONRaw
	ValueOf  = value.From
)

// Statements.
type (
	Statement         = domain.Statement
	Select            = domain.Select
	Source            = domain.Source
	Join              = domain.Join
	JoinType          = domain.JoinType
	Projection        = domain.Projection
	OrderBy           = domain.OrderBy
	Direction         = domain.Direction
	NullsOrder        = domain.NullsOrder
	Combinator        = domain.Combinator
	CombinatorOp      = domain.CombinatorOp
	Insert            = domain.Insert
	OnConflict        = domain.OnConflict
	ConflictAction    = domain.ConflictAction
	Assignment        = domain.Assignment
	Update            = domain.Update
	Delete            = domain.Delete
	DDL               = domain.DDL
	DDLKind           = domain.DDLKind
	TableDef          = domain.TableDef
	ColumnDef         = domain.ColumnDef
	ForeignKey        = domain.ForeignKey
	Reference         = domain.Reference
	ReferentialAction = domain.ReferentialAction
	IndexDef          = domain.IndexDef
)

// Expressions and operands.
type (
	Expr          = domain.Expr
	And           = domain.And
	Or            = domain.Or
	Not           = domain.Not
	Compare       = domain.Compare
	CompareOp     = domain.CompareOp
	IsNull        = domain.IsNull
	In            = domain.In
	Like          = domain.Like
	LikeOp        = domain.LikeOp
	Between       = domain.Between
	Exists        = domain.Exists
	Operand       = domain.Operand
	Column        = domain.Column
	Param         = domain.Param
	Subquery      = domain.Subquery
	Aggregate     = domain.Aggregate
	AggregateFunc = domain.AggregateFunc
	Arith         = domain.Arith
	ArithOp       = domain.ArithOp
)

const (
	InnerJoin = domain.InnerJoin
	LeftJoin  = domain.LeftJoin
	RightJoin = domain.RightJoin
	FullJoin  = domain.FullJoin
	CrossJoin = domain.CrossJoin

	Asc          = domain.Asc
	Desc         = domain.Desc
	NullsDefault = domain.NullsDefault
	NullsFirst   = domain.NullsFirst
	NullsLast    = domain.NullsLast

	Union     = domain.Union
	UnionAll  = domain.UnionAll
	Intersect = domain.Intersect
	Except    = domain.Except

	ConflictReplace = domain.ConflictReplace
	ConflictUpdate  = domain.ConflictUpdate
	ConflictNothing = domain.ConflictNothing

	Eq    = domain.Eq
	Neq   = domain.Neq
	Lt    = domain.Lt
	Lte   = domain.Lte
	Gt    = domain.Gt
	Gte   = domain.Gte
	Is    = domain.Is
	IsNot = domain.IsNot

	OpLike = domain.OpLike
	OpGlob = domain.OpGlob

	Count = domain.Count
	Sum   = domain.Sum
	Avg   = domain.Avg
	Min   = domain.Min
	Max   = domain.Max
	Total = domain.Total

	Add    = domain.Add
	Sub    = domain.Sub
	Mul    = domain.Mul
	Div    = domain.Div
	Mod    = domain.Mod
	Concat = domain.Concat

	CreateTable  = domain.CreateTable
	DropTable    = domain.DropTable
	CreateIndex  = domain.CreateIndex
	DropIndex    = domain.DropIndex
	AddColumn    = domain.AddColumn
	DropColumn   = domain.DropColumn
	RenameTable  = domain.RenameTable
	RenameColumn = domain.RenameColumn

	NoAction   = domain.NoAction
	Restrict   = domain.Restrict
	SetNull    = domain.SetNull
	SetDefault = domain.SetDefault
	Cascade    = domain.Cascade
)

// AST helpers.
var (
	Col      = domain.Col
	TableCol = domain.TableCol
	Val      = domain.Val
	Int64    = domain.Int64
)

// Compiled statements and results.
type (
	CompiledStatement = domain.CompiledStatement
	Shape             = domain.Shape
	Field             = domain.Field
	Command           = domain.Command
	Result            = result.Result
	Record            = result.Record
	Capabilities      = compiler.Capabilities
	PoolStats         = pool.Stats
)

// Transactions.
type (
	Behavior = transaction.Behavior
	TxState  = transaction.State
)

const (
	Deferred  = transaction.Deferred
	Immediate = transaction.Immediate
	Exclusive = transaction.Exclusive

	Idle          = transaction.Idle
	InTransaction = transaction.InTransaction
	InSavepoint   = transaction.InSavepoint
)

// DecodeResult maps res onto shape; a nil shape keeps the stored kinds.
func DecodeResult(res *Result, shape Shape) ([]Record, error) {
	return result.Decode(res, shape)
}

// Scan copies records into a struct pointer or a pointer to a slice of structs.
func Scan(records []Record, dest interface{}) error {
	return result.Scan(records, dest)
}
