// Package dataset holds the in-memory tabular representation shared by the
// training and inference flows.
package dataset

import (
	"fmt"
	"strconv"
)

// Value is a single cell: a number, a text or null.
type Value struct {
	Num    float64
	Str    string
	IsText bool
	Valid  bool
}

func Number(f float64) Value { return Value{Num: f, Valid: true} }

func Text(s string) Value { return Value{Str: s, IsText: true, Valid: true} }

func Null() Value { return Value{} }

func (v Value) IsNull() bool { return !v.Valid }

// Float returns the numeric content. A text cell that parses as a number is
// accepted; any other text is reported as not numeric.
func (v Value) Float() (float64, bool) {
	if !v.Valid {
		return 0, false
	}
	if !v.IsText {
		return v.Num, true
	}
	f, err := strconv.ParseFloat(v.Str, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String renders the cell the way it is written to CSV. Null renders empty.
func (v Value) String() string {
	switch {
	case !v.Valid:
		return ""
	case v.IsText:
		return v.Str
	default:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
}

// Table is a column-named row-major table.
type Table struct {
	Columns []string
	Rows    [][]Value

	index map[string]int
}

func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Append adds a row; it must have one value per column.
func (t *Table) Append(row []Value) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name or -1.
func (t *Table) Index(name string) int {
	if t.index == nil || len(t.index) != len(t.Columns) {
		t.index = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.index[c] = i
		}
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Missing returns the names from want that the table lacks, in want order.
func (t *Table) Missing(want []string) []string {
	var missing []string
	for _, name := range want {
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Column copies the values of one column.
func (t *Table) Column(name string) ([]Value, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	values := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Drop returns a copy of the table without the named column.
func (t *Table) Drop(name string) (*Table, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	columns := make([]string, 0, len(t.Columns)-1)
	columns = append(columns, t.Columns[:idx]...)
	columns = append(columns, t.Columns[idx+1:]...)

	out := NewTable(columns)
	out.Rows = make([][]Value, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]Value, 0, len(columns))
		r = append(r, row[:idx]...)
		r = append(r, row[idx+1:]...)
		out.Rows[i] = r
	}
	return out, nil
}

// Subset returns a table holding the rows at the given positions, sharing cells.
func (t *Table) Subset(rows []int) *Table {
	out := NewTable(t.Columns)
	out.Rows = make([][]Value, len(rows))
	for i, r := range rows {
		out.Rows[i] = t.Rows[r]
	}
	return out
}
