package ddl

import (
	"testing"

	"github.com/neverchanje/chgcap-mysql/ddl/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CreateTableSimple(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE t1 (id INT PRIMARY KEY, v VARCHAR(10));`)
	require.NoError(t, err)
	ct, ok := stmt.(ast.CreateTable)
	require.True(t, ok)
	assert.Equal(t, "t1", ct.Name.String())
	require.Len(t, ct.Columns, 2)

	assert.Equal(t, "id", ct.Columns[0].Name.Value)
	ifam, ok := ct.Columns[0].DataType.(ast.IntegerFamily)
	require.True(t, ok)
	assert.Equal(t, "INT", ifam.Name)
	require.Len(t, ct.Columns[0].Options, 1)
	_, ok = ct.Columns[0].Options[0].(ast.PrimaryKeyOption)
	assert.True(t, ok)

	assert.Equal(t, "v", ct.Columns[1].Name.Value)
	sfam, ok := ct.Columns[1].DataType.(ast.StringFamily)
	require.True(t, ok)
	assert.Equal(t, "VARCHAR", sfam.Name)
	require.NotNil(t, sfam.Length)
	assert.Equal(t, uint64(10), sfam.Length.Length)
}

func TestParse_CreateTableWithTableLevelPrimaryKey(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE t2 (x INT UNSIGNED NOT NULL, y DECIMAL(10,2), PRIMARY KEY(x));`)
	require.NoError(t, err)
	ct := stmt.(ast.CreateTable)
	require.Len(t, ct.Constraints, 1)
	pk, ok := ct.Constraints[0].(ast.PrimaryKeys)
	require.True(t, ok)
	require.Len(t, pk.Columns, 1)
	assert.Equal(t, "x", pk.Columns[0].Value)

	ifam := ct.Columns[0].DataType.(ast.IntegerFamily)
	assert.True(t, ifam.Unsigned)
	require.Len(t, ct.Columns[0].Options, 1)
	_, ok = ct.Columns[0].Options[0].(ast.NotNullOption)
	assert.True(t, ok)

	fp := ct.Columns[1].DataType.(ast.FixedPoint)
	assert.Equal(t, "DECIMAL", fp.Name)
	assert.True(t, fp.Info.HasScale)
	assert.Equal(t, uint64(10), fp.Info.Precision)
	assert.Equal(t, uint64(2), fp.Info.Scale)
}

func TestParse_IfNotExists(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE IF NOT EXISTS t3 (a INT);`)
	require.NoError(t, err)
	ct := stmt.(ast.CreateTable)
	assert.True(t, ct.IfNotExists)
}

func TestParse_CommentAndEnumSet(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE t4 (status ENUM('a','b') COMMENT 'state', tags SET('x','y'));`)
	require.NoError(t, err)
	ct := stmt.(ast.CreateTable)
	enum := ct.Columns[0].DataType.(ast.EnumType)
	assert.Equal(t, []string{"a", "b"}, enum.Values)
	require.Len(t, ct.Columns[0].Options, 1)
	co := ct.Columns[0].Options[0].(ast.CommentOption)
	assert.Equal(t, "state", co.Text)

	set := ct.Columns[1].DataType.(ast.SetType)
	assert.Equal(t, []string{"x", "y"}, set.Values)
}

func TestParse_LikeAndAsUnsupported(t *testing.T) {
	_, err := Parse(`CREATE TABLE t5 LIKE t1;`)
	assert.Error(t, err)

	_, err = Parse(`CREATE TABLE t6 AS SELECT * FROM t1;`)
	assert.Error(t, err)
}

func TestParse_AlterAndDropTable(t *testing.T) {
	stmt, err := Parse(`ALTER TABLE t1 ADD COLUMN z INT;`)
	require.NoError(t, err)
	at := stmt.(ast.AlterTable)
	assert.Equal(t, "t1", at.Name.String())

	stmt, err = Parse(`DROP TABLE IF EXISTS t1;`)
	require.NoError(t, err)
	dt := stmt.(ast.DropTable)
	assert.Equal(t, "t1", dt.Name.String())
}

func TestParse_TrailingOptionsIgnored(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE t7 (a INT) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`)
	require.NoError(t, err)
	ct := stmt.(ast.CreateTable)
	require.Len(t, ct.Columns, 1)
}

func TestParse_UnsupportedStatement(t *testing.T) {
	_, err := Parse(`INSERT INTO t1 VALUES (1,'a');`)
	assert.Error(t, err)
}

func TestParse_SchemaRoundTrip(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE t8 (id INT PRIMARY KEY, v DECIMAL(5,2), n ENUM('a','b'));`)
	require.NoError(t, err)
	ct := stmt.(ast.CreateTable)

	rendered := ct.String() + ";"

	stmt2, err := Parse(rendered)
	require.NoError(t, err)
	ct2 := stmt2.(ast.CreateTable)
	assert.Equal(t, ct.String(), ct2.String())
}
