package change

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRowChange_String_Insert(t *testing.T) {
	rc := RowChange{Kind: Insert, Row: Row{
		{ColumnType: "INT", Val: int32(1)},
		{ColumnType: "VARCHAR", Val: "a"},
	}}
	assert.Equal(t, `Insert(INT(1),VARCHAR("a"))`, rc.String())
}

func TestRowChange_String_Delete(t *testing.T) {
	rc := RowChange{Kind: Delete, Row: Row{
		{ColumnType: "INT", Val: int32(1)},
	}}
	assert.Equal(t, `Delete(INT(1))`, rc.String())
}

func TestValue_String_Null(t *testing.T) {
	v := Value{ColumnType: "VARCHAR", Val: nil}
	assert.Equal(t, "VARCHAR(NULL)", v.String())
}

func TestValue_String_Decimal(t *testing.T) {
	d, _ := decimal.NewFromString("12.50")
	v := Value{ColumnType: "NEWDECIMAL", Val: d}
	assert.Equal(t, "NEWDECIMAL(12.50)", v.String())
}

func TestFmtColumnType_KnownAndUnknown(t *testing.T) {
	assert.Equal(t, "TINYINT", FmtColumnType("tiny"))
	assert.Equal(t, "NEWDECIMAL", FmtColumnType("newDecimal"))
	assert.Equal(t, "FROBNICATE", FmtColumnType("frobnicate"))
}

func TestUpdateExpansion_DeleteThenInsert(t *testing.T) {
	data := Data{Rows: []RowChange{
		{Kind: Delete, Row: Row{{ColumnType: "INT", Val: int32(1)}, {ColumnType: "VARCHAR", Val: "a"}}},
		{Kind: Insert, Row: Row{{ColumnType: "INT", Val: int32(1)}, {ColumnType: "VARCHAR", Val: "b"}}},
	}}
	assert.Len(t, data.Rows, 2)
	assert.Equal(t, Delete, data.Rows[0].Kind)
	assert.Equal(t, Insert, data.Rows[1].Kind)
}
