package domain

import (
	"math"
	"strconv"
	"time"
)

// ValueKind discriminates the payload of a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindFloat
	KindTime
)

// String returns the kind name used in summaries and API payloads.
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

// Value is one typed cell of an extracted dataset.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Time time.Time
}

// NullValue returns a null cell.
func NullValue() Value {
	return Value{Kind: KindNull}
}

// StringValue returns a string cell.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// FloatValue returns a numeric cell.
func FloatValue(f float64) Value {
	return Value{Kind: KindFloat, Num: f}
}

// TimeValue returns a timestamp cell.
func TimeValue(t time.Time) Value {
	return Value{Kind: KindTime, Time: t}
}

// IsNull reports whether the cell carries no value.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// String renders the cell as dataset CSVs carry it: empty for null cells,
// minimal round-trip form for numbers and the export timestamp layout for
// times.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindFloat:
		if math.IsNaN(v.Num) {
			return ""
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindTime:
		return v.Time.Format(ExportTimeLayout)
	default:
		return ""
	}
}

// Row is one dataset row; cells align positionally with the table's columns.
type Row []Value

// Table is an extracted dataset: ordered columns, one kind per column and
// rows in document order. Kinds are decided for the whole extracted set, so
// every non-null cell of a column shares the column's kind.
type Table struct {
	Name    string      `json:"name"`
	Columns []string    `json:"columns"`
	Kinds   []ValueKind `json:"-"`
	Rows    []Row       `json:"-"`
}

// NewTable returns an empty table over the given columns. Columns start as
// string kinded until coercion assigns their final kinds.
func NewTable(name string, columns []string) *Table {
	kinds := make([]ValueKind, len(columns))
	for i := range kinds {
		kinds[i] = KindString
	}
	return &Table{Name: name, Columns: columns, Kinds: kinds}
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's cells, or nil when the column
// does not exist.
func (t *Table) Column(name string) []Value {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	cells := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		cells[i] = row[idx]
	}
	return cells
}

// ColumnTypes maps column names to their kind names.
func (t *Table) ColumnTypes() map[string]string {
	types := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		types[c] = t.Kinds[i].String()
	}
	return types
}
