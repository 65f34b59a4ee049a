package compiler

import (
	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
)

// buildExpr writes a filter tree. Nested AND/OR groups keep their own parentheses so the
// tree is never re-associated.
func (c *SQLCompiler) buildExpr(b *builder, e domain.Expr, nested bool) error {
	switch x := e.(type) {
	case nil:
		return dberr.NewCompileError("nil filter expression")

	case domain.And:
		return c.buildGroup(b, []domain.Expr(x), " AND ", nested)

	case domain.Or:
		return c.buildGroup(b, []domain.Expr(x), " OR ", nested)

	case domain.Not:
		b.write("NOT (")
		if err := c.buildExpr(b, x.Expr, false); err != nil {
			return err
		}
		b.write(")")
		return nil

	case domain.Compare:
		switch x.Op {
		case domain.Eq, domain.Neq, domain.Lt, domain.Lte, domain.Gt, domain.Gte, domain.Is, domain.IsNot:
		default:
			return dberr.NewCompileError("unknown comparison operator %q", x.Op)
		}
		if err := c.buildOperand(b, x.Left); err != nil {
			return err
		}
		b.write(" ", string(x.Op), " ")
		return c.buildOperand(b, x.Right)

	case domain.IsNull:
		if err := c.buildOperand(b, x.Operand); err != nil {
			return err
		}
		if x.Negate {
			b.write(" IS NOT NULL")
		} else {
			b.write(" IS NULL")
		}
		return nil

	case domain.In:
		if x.Subquery != nil && len(x.Values) > 0 {
			return dberr.NewCompileError("IN takes either values or a subquery, not both")
		}
		if err := c.buildOperand(b, x.Operand); err != nil {
			return err
		}
		if x.Negate {
			b.write(" NOT")
		}
		b.write(" IN (")
		if x.Subquery != nil {
			if err := c.buildSelect(b, x.Subquery); err != nil {
				return err
			}
		}
		for i, v := range x.Values {
			if i > 0 {
				b.write(", ")
			}
			if err := c.buildOperand(b, v); err != nil {
				return err
			}
		}
		b.write(")")
		return nil

	case domain.Like:
		op := x.Op
		if op == "" {
			op = domain.OpLike
		}
		if op != domain.OpLike && op != domain.OpGlob {
			return dberr.NewCompileError("unknown pattern operator %q", x.Op)
		}
		if err := c.buildOperand(b, x.Operand); err != nil {
			return err
		}
		if x.Negate {
			b.write(" NOT")
		}
		b.write(" ", string(op), " ")
		return c.buildOperand(b, x.Pattern)

	case domain.Between:
		if err := c.buildOperand(b, x.Operand); err != nil {
			return err
		}
		if x.Negate {
			b.write(" NOT")
		}
		b.write(" BETWEEN ")
		if err := c.buildOperand(b, x.Low); err != nil {
			return err
		}
		b.write(" AND ")
		return c.buildOperand(b, x.High)

	case domain.Exists:
		if x.Negate {
			b.write("NOT ")
		}
		b.write("EXISTS (")
		if err := c.buildSelect(b, x.Select); err != nil {
			return err
		}
		b.write(")")
		return nil
	}

	return dberr.NewCompileError("unsupported filter expression %T", e)
}

func (c *SQLCompiler) buildGroup(b *builder, exprs []domain.Expr, sep string, nested bool) error {
	if len(exprs) == 0 {
		return dberr.NewCompileError("empty%sgroup", sep)
	}
	if nested {
		b.write("(")
	}
	for i, e := range exprs {
		if i > 0 {
			b.write(sep)
		}
		if err := c.buildExpr(b, e, true); err != nil {
			return err
		}
	}
	if nested {
		b.write(")")
	}
	return nil
}

// buildOperand writes a scalar term.
func (c *SQLCompiler) buildOperand(b *builder, o domain.Operand) error {
	switch x := o.(type) {
	case nil:
		return dberr.NewCompileError("nil operand")

	case domain.Column:
		return c.buildColumn(b, x)

	case domain.Param:
		b.placeholder(x.Value)
		return nil

	case domain.Subquery:
		b.write("(")
		if err := c.buildSelect(b, x.Select); err != nil {
			return err
		}
		b.write(")")
		return nil

	case domain.Aggregate:
		switch x.Func {
		case domain.Count, domain.Sum, domain.Avg, domain.Min, domain.Max, domain.Total:
		default:
			return dberr.NewCompileError("unknown aggregate %q", x.Func)
		}
		b.write(string(x.Func), "(")
		if x.Column == nil {
			if x.Func != domain.Count || x.Distinct {
				return dberr.NewCompileError("%s requires a column", x.Func)
			}
			b.write("*)")
			return nil
		}
		if x.Distinct {
			b.write("DISTINCT ")
		}
		if err := c.buildColumn(b, *x.Column); err != nil {
			return err
		}
		b.write(")")
		return nil

	case domain.Arith:
		switch x.Op {
		case domain.Add, domain.Sub, domain.Mul, domain.Div, domain.Mod, domain.Concat:
		default:
			return dberr.NewCompileError("unknown arithmetic operator %q", x.Op)
		}
		b.write("(")
		if err := c.buildOperand(b, x.Left); err != nil {
			return err
		}
		b.write(" ", string(x.Op), " ")
		if err := c.buildOperand(b, x.Right); err != nil {
			return err
		}
		b.write(")")
		return nil
	}

	return dberr.NewCompileError("unsupported operand %T", o)
}

func (c *SQLCompiler) buildColumn(b *builder, col domain.Column) error {
	if col.Table != "" {
		if err := b.ident(col.Table); err != nil {
			return err
		}
		b.write(".")
	}
	if col.Name == "*" {
		b.write("*")
		return nil
	}
	return b.ident(col.Name)
}
