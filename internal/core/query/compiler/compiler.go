// Package compiler compiles query ASTs into SQLite SQL with positional parameters.
package compiler

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// SQLCompiler implements the domain.QueryCompiler interface for SQLite.
type SQLCompiler struct {
	caps Capabilities
}

// NewSQLCompiler creates a new SQL compiler for an engine with the given capabilities.
func NewSQLCompiler(caps Capabilities) *SQLCompiler {
	return &SQLCompiler{
		caps: caps,
	}
}

// Capabilities returns the capabilities the compiler targets.
func (c *SQLCompiler) Capabilities() Capabilities {
	return c.caps
}

// Compile compiles a statement. It fails only for malformed statements, never because of
// parameter values.
func (c *SQLCompiler) Compile(ctx context.Context, stmt domain.Statement) (*domain.CompiledStatement, error) {
	b := &builder{}
	var (
		compiled *domain.CompiledStatement
		err      error
	)

	switch s := stmt.(type) {
	case *domain.Select:
		compiled, err = c.compileSelect(b, s)
	case *domain.Insert:
		compiled, err = c.compileInsert(b, s)
	case *domain.Update:
		compiled, err = c.compileUpdate(b, s)
	case *domain.Delete:
		compiled, err = c.compileDelete(b, s)
	case *domain.DDL:
		compiled, err = c.compileDDL(b, s)
	case nil:
		return nil, dberr.NewCompileError("nil statement")
	default:
		return nil, dberr.NewCompileError("unsupported statement type %T", stmt)
	}

	if err != nil {
		return nil, err
	}

	compiled.SQL = b.String()
	compiled.Params = b.params
	return compiled, nil
}

// builder accumulates SQL text and parameters in emission order.
type builder struct {
	sb     strings.Builder
	params []value.Value
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

// placeholder binds v to the next positional parameter.
func (b *builder) placeholder(v value.Value) {
	b.sb.WriteByte('?')
	b.params = append(b.params, v)
}

func (b *builder) ident(name string) error {
	q, err := quoteIdent(name)
	if err != nil {
		return err
	}
	b.sb.WriteString(q)
	return nil
}

func (b *builder) identList(names []string) error {
	for i, n := range names {
		if i > 0 {
			b.write(", ")
		}
		if err := b.ident(n); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) String() string {
	return b.sb.String()
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(name string) (string, error) {
	if err := validateIdent(name); err != nil {
		return "", err
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}

func validateIdent(name string) error {
	switch {
	case name == "":
		return dberr.NewCompileError("empty identifier")
	case !utf8.ValidString(name):
		return dberr.NewCompileError("identifier %q is not valid UTF-8", name)
	case strings.IndexByte(name, 0) >= 0:
		return dberr.NewCompileError("identifier %q contains a NUL byte", name)
	}
	return nil
}

func (c *SQLCompiler) appendReturning(b *builder, compiled *domain.CompiledStatement, table string, returning []string) error {
	if len(returning) == 0 {
		return nil
	}

	if !c.caps.Returning {
		compiled.RequiresReselect = true
		compiled.Reselect = &domain.Reselect{Table: table, Columns: append([]string(nil), returning...)}
		compiled.Shape = returningShape(returning)
		return nil
	}

	b.write(" RETURNING ")
	for i, col := range returning {
		if i > 0 {
			b.write(", ")
		}
		if col == "*" {
			b.write("*")
			continue
		}
		if err := b.ident(col); err != nil {
			return err
		}
	}
	compiled.ReturnsRows = true
	compiled.Shape = returningShape(returning)
	return nil
}

func returningShape(cols []string) domain.Shape {
	shape := make(domain.Shape, 0, len(cols))
	for _, col := range cols {
		if col == "*" {
			return nil
		}
		shape = append(shape, domain.Field{Name: col, Kind: value.KindAny})
	}
	return shape
}
