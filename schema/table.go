package schema

import "github.com/neverchanje/chgcap-mysql/ddl/ast"

// Column is a single column of a captured TableSchema (spec §3).
type Column struct {
	Name         string
	DataType     ast.DataType
	Nullable     bool
	IsPrimaryKey bool
	Comment      string
}

// Table is the current schema of a captured table: an ordered column
// list, matching the column order a RowsEvent's null-bitmap and value
// list are positional against.
type Table struct {
	Database string
	Name     string
	Columns  []Column
}

// ColumnIndex returns the position of name within Columns, or -1 if
// the table has no such column.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// FromCreateTable builds a Table from a parsed CREATE TABLE statement,
// resolving PRIMARY KEY table constraints and per-column PRIMARY KEY
// options into Column.IsPrimaryKey.
func FromCreateTable(database string, stmt ast.CreateTable) *Table {
	t := &Table{Database: database}
	if len(stmt.Name) > 0 {
		t.Name = stmt.Name[len(stmt.Name)-1].Value
	}

	primaryKeys := map[string]bool{}
	for _, c := range stmt.Constraints {
		if pk, ok := c.(ast.PrimaryKeys); ok {
			for _, col := range pk.Columns {
				primaryKeys[col.Value] = true
			}
		}
	}

	for _, col := range stmt.Columns {
		c := Column{
			Name:     col.Name.Value,
			DataType: col.DataType,
			Nullable: true,
		}
		for _, opt := range col.Options {
			switch opt.(type) {
			case ast.NotNullOption:
				c.Nullable = false
			case ast.NullOption:
				c.Nullable = true
			case ast.PrimaryKeyOption:
				c.IsPrimaryKey = true
				c.Nullable = false
			}
			if co, ok := opt.(ast.CommentOption); ok {
				c.Comment = co.Text
			}
		}
		if primaryKeys[c.Name] {
			c.IsPrimaryKey = true
			c.Nullable = false
		}
		t.Columns = append(t.Columns, c)
	}

	return t
}
