package compiler

import (
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
)

// compileUpdate compiles an UPDATE statement.
func (c *SQLCompiler) compileUpdate(b *builder, u *domain.Update) (*domain.CompiledStatement, error) {
	if len(u.Set) == 0 {
		return nil, dberr.NewCompileError("update of %q has no assignments", u.Table)
	}

	b.write("UPDATE ")
	if err := b.ident(u.Table); err != nil {
		return nil, err
	}
	b.write(" SET ")
	for i, a := range u.Set {
		if i > 0 {
			b.write(", ")
		}
		if err := c.buildAssignment(b, a); err != nil {
			return nil, err
		}
	}

	if u.Where != nil {
		b.write(" WHERE ")
		if err := c.buildExpr(b, u.Where, false); err != nil {
			return nil, err
		}
	}

	compiled := &domain.CompiledStatement{Command: domain.CommandUpdate}
	if err := c.appendReturning(b, compiled, u.Table, u.Returning); err != nil {
		return nil, err
	}
	return compiled, nil
}

// compileDelete compiles a DELETE statement.
func (c *SQLCompiler) compileDelete(b *builder, d *domain.Delete) (*domain.CompiledStatement, error) {
	b.write("DELETE FROM ")
	if err := b.ident(d.Table); err != nil {
		return nil, err
	}

	if d.Where != nil {
		b.write(" WHERE ")
		if err := c.buildExpr(b, d.Where, false); err != nil {
			return nil, err
		}
	}

	compiled := &domain.CompiledStatement{Command: domain.CommandDelete}
	if err := c.appendReturning(b, compiled, d.Table, d.Returning); err != nil {
		return nil, err
	}
	return compiled, nil
}
