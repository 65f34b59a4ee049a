package compiler

import (
	"regexp"
	"strings"

	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/query/sqlscan"
)

var (
	columnType    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(?: [A-Za-z][A-Za-z0-9_]*)*(?:\s*\(\s*[+-]?[0-9]+\s*(?:,\s*[+-]?[0-9]+\s*)?\))?$`)
	collationName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	strictTypes   = map[string]bool{"INT": true, "INTEGER": true, "REAL": true, "TEXT": true, "BLOB": true, "ANY": true}

	// The sqlite3 driver parses values of columns declared with these names into time.Time,
	// replacing text it cannot parse with the zero time. DateTime values are stored as TEXT.
	driverTimeTypes = map[string]bool{"DATE": true, "DATETIME": true, "TIMESTAMP": true}
)

// compileDDL compiles a schema statement. DDL carries no parameters.
func (c *SQLCompiler) compileDDL(b *builder, d *domain.DDL) (*domain.CompiledStatement, error) {
	var (
		cmd domain.Command
		err error
	)

	switch d.Kind {
	case domain.CreateTable:
		cmd, err = domain.CommandCreate, c.buildCreateTable(b, d)
	case domain.DropTable:
		cmd, err = domain.CommandDrop, c.buildDropTable(b, d)
	case domain.CreateIndex:
		cmd, err = domain.CommandCreate, c.buildCreateIndex(b, d)
	case domain.DropIndex:
		cmd, err = domain.CommandDrop, c.buildDropIndex(b, d)
	case domain.AddColumn, domain.DropColumn, domain.RenameTable, domain.RenameColumn:
		cmd, err = domain.CommandAlter, c.buildAlterTable(b, d)
	default:
		return nil, dberr.NewCompileError("unknown DDL kind %q", d.Kind)
	}
	if err != nil {
		return nil, err
	}
	return &domain.CompiledStatement{Command: cmd}, nil
}

func (c *SQLCompiler) buildCreateTable(b *builder, d *domain.DDL) error {
	def := d.Definition
	if def == nil || len(def.Columns) == 0 {
		return dberr.NewCompileError("create table %q needs at least one column", d.Table)
	}
	if def.Strict && !c.caps.StrictTables {
		return dberr.NewCompileError("STRICT tables are not supported by engine %s", c.caps.Version)
	}

	columnPK := 0
	for _, col := range def.Columns {
		if col.PrimaryKey {
			columnPK++
		}
	}
	if columnPK > 1 {
		return dberr.NewCompileError("table %q declares %d column primary keys; use a table primary key", d.Table, columnPK)
	}
	if columnPK == 1 && len(def.PrimaryKey) > 0 {
		return dberr.NewCompileError("table %q declares both a column and a table primary key", d.Table)
	}
	if def.WithoutRowID && columnPK == 0 && len(def.PrimaryKey) == 0 {
		return dberr.NewCompileError("WITHOUT ROWID table %q needs a primary key", d.Table)
	}

	b.write("CREATE TABLE ")
	if d.IfNotExists {
		b.write("IF NOT EXISTS ")
	}
	if err := b.ident(d.Table); err != nil {
		return err
	}
	b.write(" (")

	for i, col := range def.Columns {
		if i > 0 {
			b.write(", ")
		}
		if def.WithoutRowID && col.AutoIncrement {
			return dberr.NewCompileError("AUTOINCREMENT is not allowed on WITHOUT ROWID table %q", d.Table)
		}
		if def.Strict && !strictTypes[strings.ToUpper(col.Type)] {
			return dberr.NewCompileError("column %q type %q is not allowed in a STRICT table", col.Name, col.Type)
		}
		if err := c.buildColumnDef(b, col); err != nil {
			return err
		}
	}

	if len(def.PrimaryKey) > 0 {
		b.write(", PRIMARY KEY (")
		if err := b.identList(def.PrimaryKey); err != nil {
			return err
		}
		b.write(")")
	}
	for _, u := range def.Uniques {
		if len(u) == 0 {
			return dberr.NewCompileError("empty UNIQUE constraint on %q", d.Table)
		}
		b.write(", UNIQUE (")
		if err := b.identList(u); err != nil {
			return err
		}
		b.write(")")
	}
	for _, chk := range def.Checks {
		if err := writeFragment(b, "CHECK", chk); err != nil {
			return err
		}
	}
	for _, fk := range def.ForeignKeys {
		if len(fk.Columns) == 0 {
			return dberr.NewCompileError("foreign key on %q has no columns", d.Table)
		}
		if len(fk.References.Columns) > 0 && len(fk.References.Columns) != len(fk.Columns) {
			return dberr.NewCompileError("foreign key on %q references %d columns for %d", d.Table, len(fk.References.Columns), len(fk.Columns))
		}
		b.write(", FOREIGN KEY (")
		if err := b.identList(fk.Columns); err != nil {
			return err
		}
		b.write(")")
		if err := buildReference(b, fk.References); err != nil {
			return err
		}
	}
	b.write(")")

	var options []string
	if def.WithoutRowID {
		options = append(options, "WITHOUT ROWID")
	}
	if def.Strict {
		options = append(options, "STRICT")
	}
	if len(options) > 0 {
		b.write(" ", strings.Join(options, ", "))
	}
	return nil
}

func (c *SQLCompiler) buildColumnDef(b *builder, col domain.ColumnDef) error {
	if col.Type != "" && !columnType.MatchString(col.Type) {
		return dberr.NewCompileError("column %q has invalid type %q", col.Name, col.Type)
	}
	if driverTimeTypes[strings.ToUpper(strings.TrimSpace(col.Type))] {
		return dberr.NewCompileError("column %q type %q is rewritten by the driver on read; declare it TEXT", col.Name, col.Type)
	}
	if col.AutoIncrement && (!col.PrimaryKey || !strings.EqualFold(col.Type, "INTEGER")) {
		return dberr.NewCompileError("AUTOINCREMENT on %q requires an INTEGER PRIMARY KEY", col.Name)
	}

	if err := b.ident(col.Name); err != nil {
		return err
	}
	if col.Type != "" {
		b.write(" ", col.Type)
	}
	if col.PrimaryKey {
		b.write(" PRIMARY KEY")
		if col.AutoIncrement {
			b.write(" AUTOINCREMENT")
		}
	}
	if col.NotNull {
		b.write(" NOT NULL")
	}
	if col.Unique {
		b.write(" UNIQUE")
	}
	if col.Default != "" {
		if err := writeFragment(b, " DEFAULT", col.Default); err != nil {
			return err
		}
	}
	if col.Check != "" {
		if err := writeFragment(b, " CHECK", col.Check); err != nil {
			return err
		}
	}
	if col.Collate != "" {
		if !collationName.MatchString(col.Collate) {
			return dberr.NewCompileError("invalid collation %q", col.Collate)
		}
		b.write(" COLLATE ", col.Collate)
	}
	if col.References != nil {
		return buildReference(b, *col.References)
	}
	return nil
}

// writeFragment emits a verbatim expression in parentheses after keyword.
func writeFragment(b *builder, keyword, expr string) error {
	if err := sqlscan.ValidateFragment(expr); err != nil {
		return dberr.NewCompileError("invalid %s expression %q: %v", strings.ToLower(strings.TrimSpace(keyword)), expr, err).WithCause(err)
	}
	if !strings.HasPrefix(keyword, " ") {
		keyword = ", " + keyword
	}
	b.write(keyword, " (", expr, ")")
	return nil
}

func buildReference(b *builder, ref domain.Reference) error {
	b.write(" REFERENCES ")
	if err := b.ident(ref.Table); err != nil {
		return err
	}
	if len(ref.Columns) > 0 {
		b.write(" (")
		if err := b.identList(ref.Columns); err != nil {
			return err
		}
		b.write(")")
	}
	for _, clause := range []struct {
		name   string
		action domain.ReferentialAction
	}{{"ON DELETE", ref.OnDelete}, {"ON UPDATE", ref.OnUpdate}} {
		switch clause.action {
		case "":
		case domain.NoAction, domain.Restrict, domain.SetNull, domain.SetDefault, domain.Cascade:
			b.write(" ", clause.name, " ", string(clause.action))
		default:
			return dberr.NewCompileError("unknown referential action %q", clause.action)
		}
	}
	return nil
}

func (c *SQLCompiler) buildDropTable(b *builder, d *domain.DDL) error {
	b.write("DROP TABLE ")
	if d.IfExists {
		b.write("IF EXISTS ")
	}
	return b.ident(d.Table)
}

func (c *SQLCompiler) buildCreateIndex(b *builder, d *domain.DDL) error {
	idx := d.Index
	if idx == nil || idx.Name == "" || len(idx.Columns) == 0 {
		return dberr.NewCompileError("create index on %q needs a name and columns", d.Table)
	}

	b.write("CREATE ")
	if idx.Unique {
		b.write("UNIQUE ")
	}
	b.write("INDEX ")
	if d.IfNotExists {
		b.write("IF NOT EXISTS ")
	}
	if err := b.ident(idx.Name); err != nil {
		return err
	}
	b.write(" ON ")
	if err := b.ident(d.Table); err != nil {
		return err
	}
	b.write(" (")
	if err := b.identList(idx.Columns); err != nil {
		return err
	}
	b.write(")")

	if idx.Where != "" {
		if err := sqlscan.ValidateFragment(idx.Where); err != nil {
			return dberr.NewCompileError("invalid index predicate %q: %v", idx.Where, err).WithCause(err)
		}
		b.write(" WHERE ", idx.Where)
	}
	return nil
}

func (c *SQLCompiler) buildDropIndex(b *builder, d *domain.DDL) error {
	if d.Index == nil || d.Index.Name == "" {
		return dberr.NewCompileError("drop index needs an index name")
	}
	b.write("DROP INDEX ")
	if d.IfExists {
		b.write("IF EXISTS ")
	}
	return b.ident(d.Index.Name)
}

func (c *SQLCompiler) buildAlterTable(b *builder, d *domain.DDL) error {
	b.write("ALTER TABLE ")
	if err := b.ident(d.Table); err != nil {
		return err
	}

	switch d.Kind {
	case domain.AddColumn:
		if d.Column == nil {
			return dberr.NewCompileError("add column to %q needs a column definition", d.Table)
		}
		if d.Column.PrimaryKey || d.Column.Unique {
			return dberr.NewCompileError("added column %q cannot be PRIMARY KEY or UNIQUE", d.Column.Name)
		}
		b.write(" ADD COLUMN ")
		return c.buildColumnDef(b, *d.Column)

	case domain.DropColumn:
		if !c.caps.DropColumn {
			return dberr.NewCompileError("DROP COLUMN is not supported by engine %s", c.caps.Version)
		}
		b.write(" DROP COLUMN ")
		return b.ident(d.ColumnName)

	case domain.RenameTable:
		b.write(" RENAME TO ")
		return b.ident(d.NewName)

	default: // domain.RenameColumn
		if !c.caps.RenameColumn {
			return dberr.NewCompileError("RENAME COLUMN is not supported by engine %s", c.caps.Version)
		}
		b.write(" RENAME COLUMN ")
		if err := b.ident(d.ColumnName); err != nil {
			return err
		}
		b.write(" TO ")
		return b.ident(d.NewName)
	}
}
