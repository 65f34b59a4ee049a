package compiler

import (
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
)

// compileInsert compiles INSERT, including the three upsert policies.
func (c *SQLCompiler) compileInsert(b *builder, ins *domain.Insert) (*domain.CompiledStatement, error) {
	if len(ins.Rows) > 0 && len(ins.Columns) == 0 {
		return nil, dberr.NewCompileError("insert rows require a column list")
	}
	if len(ins.Columns) > 0 && len(ins.Rows) == 0 {
		return nil, dberr.NewCompileError("insert into %q has columns but no rows", ins.Table)
	}
	for i, row := range ins.Rows {
		if len(row) != len(ins.Columns) {
			return nil, dberr.NewCompileError("insert row %d has %d values for %d columns", i, len(row), len(ins.Columns))
		}
	}

	oc := ins.OnConflict
	if oc != nil {
		if err := c.validateConflict(ins, oc); err != nil {
			return nil, err
		}
	}

	if oc != nil && oc.Action == domain.ConflictReplace {
		b.write("INSERT OR REPLACE INTO ")
	} else {
		b.write("INSERT INTO ")
	}
	if err := b.ident(ins.Table); err != nil {
		return nil, err
	}

	if len(ins.Rows) == 0 {
		b.write(" DEFAULT VALUES")
	} else {
		b.write(" (")
		if err := b.identList(ins.Columns); err != nil {
			return nil, err
		}
		b.write(") VALUES ")
		for i, row := range ins.Rows {
			if i > 0 {
				b.write(", ")
			}
			b.write("(")
			for j, v := range row {
				if j > 0 {
					b.write(", ")
				}
				b.placeholder(v)
			}
			b.write(")")
		}
	}

	if oc != nil && oc.Action != domain.ConflictReplace {
		if err := c.buildOnConflict(b, ins, oc); err != nil {
			return nil, err
		}
	}

	compiled := &domain.CompiledStatement{Command: domain.CommandInsert}
	if err := c.appendReturning(b, compiled, ins.Table, ins.Returning); err != nil {
		return nil, err
	}
	return compiled, nil
}

func (c *SQLCompiler) validateConflict(ins *domain.Insert, oc *domain.OnConflict) error {
	switch oc.Action {
	case domain.ConflictReplace:
		if len(oc.Target) > 0 || len(oc.Fields) > 0 || len(oc.Set) > 0 || oc.Where != nil {
			return dberr.NewCompileError("replace conflict policy takes no target or assignments")
		}
		return nil
	case domain.ConflictNothing:
		if len(oc.Fields) > 0 || len(oc.Set) > 0 || oc.Where != nil {
			return dberr.NewCompileError("nothing conflict policy takes no assignments")
		}
	case domain.ConflictUpdate:
		if len(oc.Fields) == 0 && len(oc.Set) == 0 {
			return dberr.NewCompileError("update conflict policy needs fields or assignments")
		}
		if len(oc.Target) == 0 && !c.caps.UpsertWithoutTarget {
			return dberr.NewCompileError("update conflict policy needs a conflict target on engine %s", c.caps.Version)
		}
	default:
		return dberr.NewCompileError("unknown conflict policy %q", oc.Action)
	}

	if !c.caps.Upsert {
		return dberr.NewCompileError("ON CONFLICT is not supported by engine %s", c.caps.Version)
	}
	if len(ins.Rows) == 0 {
		return dberr.NewCompileError("ON CONFLICT cannot be used with DEFAULT VALUES")
	}
	return nil
}

// buildOnConflict writes the upsert clause. For a single row each field is rebound to the
// row's value; for several rows it refers to the excluded pseudo-table.
func (c *SQLCompiler) buildOnConflict(b *builder, ins *domain.Insert, oc *domain.OnConflict) error {
	b.write(" ON CONFLICT")
	if len(oc.Target) > 0 {
		b.write(" (")
		if err := b.identList(oc.Target); err != nil {
			return err
		}
		b.write(")")
	}

	if oc.Action == domain.ConflictNothing {
		b.write(" DO NOTHING")
		return nil
	}

	b.write(" DO UPDATE SET ")
	n := 0
	for _, field := range oc.Fields {
		idx := indexOf(ins.Columns, field)
		if idx < 0 {
			return dberr.NewCompileError("conflict update field %q is not an inserted column", field)
		}
		if n > 0 {
			b.write(", ")
		}
		n++
		if err := b.ident(field); err != nil {
			return err
		}
		b.write(" = ")
		if len(ins.Rows) == 1 {
			b.placeholder(ins.Rows[0][idx])
			continue
		}
		b.write("excluded.")
		if err := b.ident(field); err != nil {
			return err
		}
	}
	for _, a := range oc.Set {
		if n > 0 {
			b.write(", ")
		}
		n++
		if err := c.buildAssignment(b, a); err != nil {
			return err
		}
	}

	if oc.Where != nil {
		b.write(" WHERE ")
		return c.buildExpr(b, oc.Where, false)
	}
	return nil
}

func (c *SQLCompiler) buildAssignment(b *builder, a domain.Assignment) error {
	if err := b.ident(a.Column); err != nil {
		return err
	}
	b.write(" = ")
	return c.buildOperand(b, a.Value)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
