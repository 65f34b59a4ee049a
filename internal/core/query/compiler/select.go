package compiler

import (
	"strings"

	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// compileSelect compiles a SELECT query.
func (c *SQLCompiler) compileSelect(b *builder, s *domain.Select) (*domain.CompiledStatement, error) {
	if err := c.buildSelect(b, s); err != nil {
		return nil, err
	}
	return &domain.CompiledStatement{
		Command:     domain.CommandSelect,
		ReturnsRows: true,
		Shape:       selectShape(s),
	}, nil
}

// buildSelect writes a full select, including compound members and trailing clauses.
func (c *SQLCompiler) buildSelect(b *builder, s *domain.Select) error {
	if s == nil {
		return dberr.NewCompileError("nil select")
	}

	if err := c.buildSelectCore(b, s); err != nil {
		return err
	}

	for _, comb := range s.Combinators {
		switch comb.Op {
		case domain.Union, domain.UnionAll, domain.Intersect, domain.Except:
		default:
			return dberr.NewCompileError("unknown combinator %q", comb.Op)
		}
		m := comb.Select
		if m == nil {
			return dberr.NewCompileError("%s member is nil", comb.Op)
		}
		if len(m.OrderBy) > 0 || m.Limit != nil || m.Offset != nil || len(m.Combinators) > 0 {
			return dberr.NewCompileError("%s member cannot carry ORDER BY, LIMIT, OFFSET or combinators", comb.Op)
		}
		b.write(" ", string(comb.Op), " ")
		if err := c.buildSelectCore(b, m); err != nil {
			return err
		}
	}

	if len(s.OrderBy) > 0 {
		b.write(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				b.write(", ")
			}
			if err := c.buildOperand(b, o.Operand); err != nil {
				return err
			}
			switch o.Direction {
			case "":
			case domain.Asc, domain.Desc:
				b.write(" ", string(o.Direction))
			default:
				return dberr.NewCompileError("unknown sort direction %q", o.Direction)
			}
			switch o.Nulls {
			case domain.NullsDefault:
			case domain.NullsFirst, domain.NullsLast:
				b.write(" ", string(o.Nulls))
			default:
				return dberr.NewCompileError("unknown nulls order %q", o.Nulls)
			}
		}
	}

	// SQLite has no OFFSET without LIMIT; -1 means unbounded.
	if s.Limit != nil || s.Offset != nil {
		b.write(" LIMIT ")
		if s.Limit != nil {
			b.placeholder(value.Int(*s.Limit))
		} else {
			b.write("-1")
		}
		if s.Offset != nil {
			b.write(" OFFSET ")
			b.placeholder(value.Int(*s.Offset))
		}
	}
	return nil
}

func (c *SQLCompiler) buildSelectCore(b *builder, s *domain.Select) error {
	b.write("SELECT ")
	if s.Distinct {
		b.write("DISTINCT ")
	}

	if len(s.Projections) == 0 {
		b.write("*")
	}
	for i, p := range s.Projections {
		if i > 0 {
			b.write(", ")
		}
		if err := c.buildOperand(b, p.Operand); err != nil {
			return err
		}
		if p.Alias != "" {
			b.write(" AS ")
			if err := b.ident(p.Alias); err != nil {
				return err
			}
		}
	}

	if len(s.Sources) == 0 && len(s.Joins) > 0 {
		return dberr.NewCompileError("join without a source")
	}
	if len(s.Sources) > 0 {
		b.write(" FROM ")
		for i, src := range s.Sources {
			if i > 0 {
				b.write(", ")
			}
			if err := c.buildSource(b, src); err != nil {
				return err
			}
		}
	}

	for _, j := range s.Joins {
		if err := c.buildJoin(b, j); err != nil {
			return err
		}
	}

	if s.Where != nil {
		b.write(" WHERE ")
		if err := c.buildExpr(b, s.Where, false); err != nil {
			return err
		}
	}

	if len(s.GroupBy) > 0 {
		b.write(" GROUP BY ")
		for i, col := range s.GroupBy {
			if i > 0 {
				b.write(", ")
			}
			if err := c.buildColumn(b, col); err != nil {
				return err
			}
		}
	}

	if s.Having != nil {
		if len(s.GroupBy) == 0 {
			return dberr.NewCompileError("HAVING requires GROUP BY")
		}
		b.write(" HAVING ")
		if err := c.buildExpr(b, s.Having, false); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLCompiler) buildSource(b *builder, src domain.Source) error {
	if src.Subquery != nil {
		if src.Alias == "" {
			return dberr.NewCompileError("subquery source requires an alias")
		}
		b.write("(")
		if err := c.buildSelect(b, src.Subquery); err != nil {
			return err
		}
		b.write(") AS ")
		return b.ident(src.Alias)
	}

	if src.Schema != "" {
		if err := b.ident(src.Schema); err != nil {
			return err
		}
		b.write(".")
	}
	if err := b.ident(src.Table); err != nil {
		return err
	}
	if src.Alias != "" {
		b.write(" AS ")
		return b.ident(src.Alias)
	}
	return nil
}

func (c *SQLCompiler) buildJoin(b *builder, j domain.Join) error {
	switch j.Type {
	case domain.InnerJoin, domain.LeftJoin:
	case domain.CrossJoin:
		if j.On != nil {
			return dberr.NewCompileError("CROSS JOIN cannot have an ON clause")
		}
	case domain.RightJoin, domain.FullJoin:
		if !c.caps.RightFullJoin {
			return dberr.NewCompileError("unsupported join type %s for engine %s", j.Type, c.caps.Version)
		}
	default:
		return dberr.NewCompileError("unsupported join type %q", j.Type)
	}

	b.write(" ", string(j.Type), " JOIN ")
	if err := c.buildSource(b, j.Source); err != nil {
		return err
	}
	if j.On != nil {
		b.write(" ON ")
		return c.buildExpr(b, j.On, false)
	}
	return nil
}

// selectShape derives the expected columns. It is nil when any projection is a star.
func selectShape(s *domain.Select) domain.Shape {
	if len(s.Projections) == 0 {
		return nil
	}
	shape := make(domain.Shape, 0, len(s.Projections))
	for _, p := range s.Projections {
		name := p.Alias
		if name == "" {
			switch op := p.Operand.(type) {
			case domain.Column:
				if op.Name == "*" {
					return nil
				}
				name = op.Name
			case domain.Aggregate:
				name = strings.ToLower(string(op.Func))
			default:
				name = "?column?"
			}
		}
		shape = append(shape, domain.Field{Name: name, Kind: p.Hint})
	}
	return shape
}
