// Package change defines the typed change-record model emitted by the
// binlog pipeline: row-level Insert/Delete changes and DDL
// schema-change notifications, plus the deterministic textual
// rendering used as the test-oracle comparison form.
package change

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Value is one column's decoded value together with the MySQL type
// name used for rendering (spec §4.H: "resolved column type for
// rendering").
type Value struct {
	ColumnType string // e.g. "INT", "VARCHAR", "NEWDECIMAL" — see fmtColumnType
	Val        interface{}
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%s)", v.ColumnType, fmtValue(v.Val))
}

func fmtValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return fmt.Sprintf("%q", string(x))
	case decimal.Decimal:
		if x.Exponent() < 0 {
			return x.StringFixed(-x.Exponent()) // keep the scale, e.g. 12.50
		}
		return x.String()
	case fmt.Stringer:
		return fmt.Sprintf("%q", x.String())
	case json.RawMessage:
		var buf bytes.Buffer
		if err := json.Compact(&buf, x); err != nil {
			return fmt.Sprintf("%q", string(x))
		}
		return buf.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Row is an ordered list of column values, matching the column order
// of the TableSchema in effect when the row was decoded.
type Row []Value

func (r Row) String() string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

// RowChange is either an Insert or a Delete of a single row. Updates
// are expanded by the pipeline into a Delete(before) immediately
// followed by an Insert(after) — see spec §4.F.
type RowChange struct {
	Kind RowChangeKind
	Row  Row
}

// RowChangeKind distinguishes Insert from Delete.
type RowChangeKind int

const (
	Insert RowChangeKind = iota
	Delete
)

func (c RowChange) String() string {
	switch c.Kind {
	case Insert:
		return fmt.Sprintf("Insert(%s)", c.Row)
	case Delete:
		return fmt.Sprintf("Delete(%s)", c.Row)
	default:
		return fmt.Sprintf("RowChange(%d,%s)", c.Kind, c.Row)
	}
}

// SchemaChangeKind classifies a DDL-driven schema change.
type SchemaChangeKind int

const (
	SchemaCreate SchemaChangeKind = iota
	SchemaAlter
	SchemaDrop
)

func (k SchemaChangeKind) String() string {
	switch k {
	case SchemaCreate:
		return "Create"
	case SchemaAlter:
		return "Alter"
	case SchemaDrop:
		return "Drop"
	default:
		return "Unknown"
	}
}

// Data is the payload of a Record: either a DataChange (ordered row
// changes) or a SchemaChange.
type Data struct {
	Rows        []RowChange      // set when this is a DataChange
	SchemaKind  SchemaChangeKind // set when this is a SchemaChange
	IsSchema    bool
}

// Record is a single emitted change: a data mutation or a schema
// change, plus the replication position at which it occurred.
type Record struct {
	TableID      uint64
	TableName    string
	DatabaseName string
	SchemaName   string // optional, empty if not applicable
	Position     Position
	Data         Data
}

// Envelope is one item of the downstream stream: either a Record or
// an Err, matching spec §6.2's Result<ChangeRecord, Error> contract.
type Envelope struct {
	Record *Record
	Err    error
}

// fmtColumnType maps a protocol wire column type name (as produced by
// protocol.ColumnType.String(), e.g. "tiny") to the upper-snake
// display name used in rendering ("TINYINT"), matching
// original_source's fmt_column_type table exactly.
func fmtColumnType(wireName string) string {
	name, ok := columnTypeDisplayNames[wireName]
	if !ok {
		name = strings.ToUpper(wireName)
	}
	return name
}

var columnTypeDisplayNames = map[string]string{
	"decimal":    "DECIMAL",
	"tiny":       "TINYINT",
	"short":      "SMALLINT",
	"long":       "INT",
	"float":      "FLOAT",
	"double":     "DOUBLE",
	"timestamp":  "TIMESTAMP",
	"longLong":   "BIGINT",
	"int24":      "MEDIUMINT",
	"date":       "DATE",
	"time":       "TIME",
	"dateTime":   "DATETIME",
	"year":       "YEAR",
	"newDate":    "DATE",
	"varchar":    "VARCHAR",
	"bit":        "BIT",
	"timestamp2": "TIMESTAMP",
	"dateTime2":  "DATETIME",
	"time2":      "TIME",
	"json":       "JSON",
	"newDecimal": "NEWDECIMAL",
	"enum":       "ENUM",
	"set":        "SET",
	"tinyBlob":   "TINYBLOB",
	"mediumBlob": "MEDIUMBLOB",
	"longBlob":   "LONGBLOB",
	"blob":       "BLOB",
	"varString":  "VAR_STRING",
	"string":     "STRING",
	"geometry":   "GEOMETRY",
}

// FmtColumnType is the exported form used by the pipeline when
// building Value from a decoded protocol.Column.
func FmtColumnType(wireName string) string {
	return fmtColumnType(wireName)
}
