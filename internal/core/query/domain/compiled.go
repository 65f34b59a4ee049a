package domain

import (
	"context"

	"github.com/satishbabariya/litesql/internal/core/value"
)

// Command tags what a statement did.
type Command string

const (
	CommandSelect    Command = "select"
	CommandInsert    Command = "insert"
	CommandUpdate    Command = "update"
	CommandDelete    Command = "delete"
	CommandBegin     Command = "begin"
	CommandCommit    Command = "commit"
	CommandRollback  Command = "rollback"
	CommandSavepoint Command = "savepoint"
	CommandRelease   Command = "release"
	CommandCreate    Command = "create"
	CommandDrop      Command = "drop"
	CommandAlter     Command = "alter"
	CommandUnknown   Command = "unknown"
)

// IsDML reports whether the command reports affected rows.
func (c Command) IsDML() bool {
	return c == CommandInsert || c == CommandUpdate || c == CommandDelete
}

// IsTransactionControl reports whether the command opens, ends or names a transaction level.
func (c Command) IsTransactionControl() bool {
	switch c {
	case CommandBegin, CommandCommit, CommandRollback, CommandSavepoint, CommandRelease:
		return true
	}
	return false
}

// Field is one expected result column.
type Field struct {
	Name string
	Kind value.Kind
}

// Shape is the expected result columns of a statement. A nil Shape is unknown.
type Shape []Field

// Names returns the field names in order.
func (s Shape) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Reselect describes the follow-up read issued when RETURNING is unavailable.
type Reselect struct {
	Table   string
	Columns []string
}

// CompiledStatement is SQL text plus its ordered parameters. The number of ? placeholders
// in SQL equals len(Params).
type CompiledStatement struct {
	SQL         string
	Params      []value.Value
	Shape       Shape
	Command     Command
	ReturnsRows bool

	// RequiresReselect is set when the statement asked for RETURNING but the engine
	// cannot produce it; Reselect says what to read back.
	RequiresReselect bool
	Reselect         *Reselect
}

// QueryCompiler compiles statements.
type QueryCompiler interface {
	Compile(ctx context.Context, stmt Statement) (*CompiledStatement, error)
}
