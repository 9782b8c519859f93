// Package ast defines the abstract syntax produced by the DDL parser:
// just enough of CREATE TABLE's grammar to describe captured table
// schemas (spec §4.A/§4.B).
package ast

import "strings"

// Ident is a single (possibly quoted) SQL identifier.
type Ident struct {
	Value      string
	QuoteStyle byte // 0 if unquoted, else one of '\'', '"', '`', '['
}

// NewIdent creates an unquoted identifier.
func NewIdent(value string) Ident { return Ident{Value: value} }

// WithQuote creates an identifier quoted with the given character.
func WithQuote(quote byte, value string) Ident {
	return Ident{Value: value, QuoteStyle: quote}
}

func (i Ident) String() string {
	switch i.QuoteStyle {
	case '"', '\'', '`':
		q := string(i.QuoteStyle)
		return q + strings.ReplaceAll(i.Value, q, q+q) + q
	case '[':
		return "[" + i.Value + "]"
	default:
		return i.Value
	}
}

// ObjectName is a non-empty, dot-separated sequence of identifiers,
// e.g. `db.table`.
type ObjectName []Ident

func (n ObjectName) String() string {
	parts := make([]string, len(n))
	for i, id := range n {
		parts[i] = id.String()
	}
	return strings.Join(parts, ".")
}

// ColumnOption is a single recognised or tolerated column option.
// Only Null, NotNull, PrimaryKey and Comment are materialised (spec
// §4.B); every other option the parser recognises syntactically is
// discarded before reaching the AST.
type ColumnOption interface {
	isColumnOption()
	String() string
}

type NullOption struct{}

func (NullOption) isColumnOption() {}
func (NullOption) String() string  { return "NULL" }

type NotNullOption struct{}

func (NotNullOption) isColumnOption() {}
func (NotNullOption) String() string  { return "NOT NULL" }

type PrimaryKeyOption struct{}

func (PrimaryKeyOption) isColumnOption() {}
func (PrimaryKeyOption) String() string  { return "PRIMARY KEY" }

type CommentOption struct{ Text string }

func (CommentOption) isColumnOption() {}
func (c CommentOption) String() string {
	return "COMMENT '" + strings.ReplaceAll(c.Text, "'", "''") + "'"
}

// ColumnDef is a single column declaration within a CREATE TABLE.
type ColumnDef struct {
	Name     Ident
	DataType DataType
	Options  []ColumnOption
}

func (c ColumnDef) String() string {
	var b strings.Builder
	b.WriteString(c.Name.String())
	if _, unspecified := c.DataType.(Unspecified); !unspecified {
		b.WriteByte(' ')
		b.WriteString(c.DataType.String())
	}
	for _, opt := range c.Options {
		b.WriteByte(' ')
		b.WriteString(opt.String())
	}
	return b.String()
}

// TableConstraint is a table-level constraint. Only PrimaryKeys is
// materialised (spec §4.B); UNIQUE/FOREIGN KEY/CHECK are parsed for
// syntax only and discarded.
type TableConstraint interface {
	isTableConstraint()
	String() string
}

type PrimaryKeys struct {
	Columns []Ident
}

func (PrimaryKeys) isTableConstraint() {}
func (p PrimaryKeys) String() string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.String()
	}
	return "PRIMARY KEY (" + strings.Join(names, ", ") + ")"
}

// Statement is the parse result of top-level DDL text. Only
// CreateTable is materialised by this parser (spec §4.B); any other
// recognised statement keyword (ALTER, DROP) is reported by its own
// Statement types for the pipeline to route to SchemaChange(Alter)/
// SchemaChange(Drop) without finer structure.
type Statement interface {
	isStatement()
}

// CreateTable is the materialised result of parsing `CREATE TABLE`.
type CreateTable struct {
	IfNotExists bool
	Name        ObjectName
	Columns     []ColumnDef
	Constraints []TableConstraint
}

func (CreateTable) isStatement() {}

func (c CreateTable) String() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if c.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(c.Name.String())
	b.WriteString(" (")
	first := true
	for _, col := range c.Columns {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(col.String())
	}
	for _, con := range c.Constraints {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(con.String())
	}
	b.WriteString(")")
	return b.String()
}

// AlterTable is a recognised-but-not-further-parsed ALTER TABLE
// statement; the pipeline routes it to SchemaChange(Alter).
type AlterTable struct {
	Name ObjectName
}

func (AlterTable) isStatement() {}

// DropTable is a recognised-but-not-further-parsed DROP TABLE
// statement; the pipeline routes it to SchemaChange(Drop).
type DropTable struct {
	Name ObjectName
}

func (DropTable) isStatement() {}
