package schema

import (
	"testing"

	"github.com/neverchanje/chgcap-mysql/ddl"
	"github.com/neverchanje/chgcap-mysql/ddl/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_UpsertLookupDrop(t *testing.T) {
	r := New()
	assert.Nil(t, r.Lookup("db", "t1"))

	tbl := &Table{Database: "db", Name: "t1"}
	r.Upsert("db", "t1", tbl)
	assert.Same(t, tbl, r.Lookup("db", "t1"))

	r.Drop("db", "t1")
	assert.Nil(t, r.Lookup("db", "t1"))
}

func TestFromCreateTable_ResolvesPrimaryKeys(t *testing.T) {
	stmt, err := ddl.Parse(`CREATE TABLE t2 (x INT UNSIGNED NOT NULL, y DECIMAL(10,2), PRIMARY KEY(x));`)
	require.NoError(t, err)
	ct := stmt.(ast.CreateTable)

	tbl := FromCreateTable("db", ct)
	assert.Equal(t, "t2", tbl.Name)
	require.Len(t, tbl.Columns, 2)
	assert.Equal(t, "x", tbl.Columns[0].Name)
	assert.True(t, tbl.Columns[0].IsPrimaryKey)
	assert.False(t, tbl.Columns[0].Nullable)
	assert.False(t, tbl.Columns[1].IsPrimaryKey)
	assert.True(t, tbl.Columns[1].Nullable)

	assert.Equal(t, 0, tbl.ColumnIndex("x"))
	assert.Equal(t, -1, tbl.ColumnIndex("missing"))
}

func TestFromCreateTable_ColumnLevelPrimaryKey(t *testing.T) {
	stmt, err := ddl.Parse(`CREATE TABLE t3 (id INT PRIMARY KEY, v VARCHAR(10));`)
	require.NoError(t, err)
	ct := stmt.(ast.CreateTable)

	tbl := FromCreateTable("db", ct)
	assert.True(t, tbl.Columns[0].IsPrimaryKey)
	assert.False(t, tbl.Columns[0].Nullable)
}
