package housing

import (
	"fmt"

	"houseprice/dataset"
)

// FeatureRow is the canonical single-row table: exactly the catalog columns,
// in catalog order.
type FeatureRow struct {
	table *dataset.Table
}

// BuildRow maps raw values keyed by canonical column name onto the catalog.
// Unknown keys are ignored. An absent key (or a nil value) yields 0 for a
// numeric column and null for a categorical one. Values are not coerced: a
// string given for a numeric column is kept as text and is rejected later by
// the numeric conversion in the preprocessor.
func BuildRow(values map[string]any) FeatureRow {
	table := dataset.NewTable(ColumnNames())
	row := make([]dataset.Value, len(catalog))
	for i, col := range catalog {
		row[i] = toValue(col, values[col.Name])
	}
	table.Rows = [][]dataset.Value{row}
	return FeatureRow{table: table}
}

func defaultValue(col Column) dataset.Value {
	if col.Kind == Numeric {
		return dataset.Number(0)
	}
	return dataset.Null()
}

func toValue(col Column, raw any) dataset.Value {
	switch v := raw.(type) {
	case nil:
		return defaultValue(col)
	case dataset.Value:
		if v.IsNull() {
			return defaultValue(col)
		}
		return v
	case *float64:
		if v == nil {
			return defaultValue(col)
		}
		return dataset.Number(*v)
	case *string:
		if v == nil {
			return defaultValue(col)
		}
		return dataset.Text(*v)
	case float64:
		return dataset.Number(v)
	case float32:
		return dataset.Number(float64(v))
	case int:
		return dataset.Number(float64(v))
	case int32:
		return dataset.Number(float64(v))
	case int64:
		return dataset.Number(float64(v))
	case string:
		return dataset.Text(v)
	default:
		return dataset.Text(fmt.Sprint(v))
	}
}

// Columns returns the row's column names.
func (r FeatureRow) Columns() []string {
	if r.table == nil {
		return nil
	}
	return append([]string(nil), r.table.Columns...)
}

// Get returns the value of the named column.
func (r FeatureRow) Get(name string) (dataset.Value, bool) {
	if r.table == nil {
		return dataset.Value{}, false
	}
	idx := r.table.Index(name)
	if idx < 0 {
		return dataset.Value{}, false
	}
	return r.table.Rows[0][idx], true
}

// Table exposes the row as a one-row table for the preprocessor.
func (r FeatureRow) Table() *dataset.Table {
	return r.table
}

// Map returns the row as name → display string, nulls omitted.
func (r FeatureRow) Map() map[string]string {
	out := make(map[string]string)
	if r.table == nil {
		return out
	}
	for i, name := range r.table.Columns {
		v := r.table.Rows[0][i]
		if v.IsNull() {
			continue
		}
		out[name] = v.String()
	}
	return out
}
