package domain

// DDLKind selects the schema statement.
type DDLKind string

const (
	// CreateTable emits CREATE TABLE from Definition.
	CreateTable DDLKind = "create_table"
	// DropTable emits DROP TABLE.
	DropTable DDLKind = "drop_table"
	// CreateIndex emits CREATE INDEX from Index.
	CreateIndex DDLKind = "create_index"
	// DropIndex emits DROP INDEX for Index.Name.
	DropIndex DDLKind = "drop_index"
	// AddColumn emits ALTER TABLE ... ADD COLUMN from Column.
	AddColumn DDLKind = "add_column"
	// DropColumn emits ALTER TABLE ... DROP COLUMN ColumnName.
	DropColumn DDLKind = "drop_column"
	// RenameTable emits ALTER TABLE ... RENAME TO NewName.
	RenameTable DDLKind = "rename_table"
	// RenameColumn emits ALTER TABLE ... RENAME COLUMN ColumnName TO NewName.
	RenameColumn DDLKind = "rename_column"
)

// DDL is a schema statement built from a pre-validated definition. Types, defaults and
// checks are emitted as given; the compiler never infers them.
type DDL struct {
	Kind        DDLKind
	Table       string
	IfNotExists bool
	IfExists    bool
	Definition  *TableDef
	Index       *IndexDef
	Column      *ColumnDef
	ColumnName  string
	NewName     string
}

// TableDef is the body of CREATE TABLE.
type TableDef struct {
	Columns      []ColumnDef
	PrimaryKey   []string // table-level composite key
	Uniques      [][]string
	ForeignKeys  []ForeignKey
	Checks       []string
	WithoutRowID bool
	Strict       bool
}

// ColumnDef is one column definition.
type ColumnDef struct {
	Name          string
	Type          string
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	Default       string // SQL expression, emitted verbatim
	Check         string // SQL expression, emitted verbatim
	Collate       string
	References    *Reference
}

// ForeignKey is a table-level foreign key.
type ForeignKey struct {
	Columns    []string
	References Reference
}

// ReferentialAction is an ON DELETE / ON UPDATE action.
type ReferentialAction string

const (
	NoAction   ReferentialAction = "NO ACTION"
	Restrict   ReferentialAction = "RESTRICT"
	SetNull    ReferentialAction = "SET NULL"
	SetDefault ReferentialAction = "SET DEFAULT"
	Cascade    ReferentialAction = "CASCADE"
)

// Reference is the REFERENCES clause.
type Reference struct {
	Table    string
	Columns  []string
	OnDelete ReferentialAction
	OnUpdate ReferentialAction
}

// IndexDef is the body of CREATE INDEX.
type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
	Where   string // partial index predicate, emitted verbatim
}
