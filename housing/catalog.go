package housing

import (
	"fmt"
	"reflect"
	"strings"
)

type Kind uint8

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Column describes one feature of the canonical row.
type Column struct {
	Name    string
	FormKey string
	Kind    Kind
	Integer bool

	field int
}

var (
	catalog   = buildCatalog()
	byName    = indexBy(func(c Column) string { return c.Name })
	byFormKey = indexBy(func(c Column) string { return c.FormKey })
)

func buildCatalog() []Column {
	var (
		floatPtr  = reflect.TypeOf((*float64)(nil))
		stringPtr = reflect.TypeOf((*string)(nil))
	)

	rt := reflect.TypeOf(Attributes{})
	columns := make([]Column, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag, ok := f.Tag.Lookup("col")
		if !ok {
			panic(fmt.Sprintf("housing: field %s has no col tag", f.Name))
		}
		name, opts, _ := strings.Cut(tag, ",")

		col := Column{Name: name, field: i, Integer: opts == "int"}
		switch f.Type {
		case floatPtr:
			col.Kind = Numeric
		case stringPtr:
			col.Kind = Categorical
		default:
			panic(fmt.Sprintf("housing: field %s has unsupported type %s", f.Name, f.Type))
		}

		col.FormKey = f.Tag.Get("form")
		if col.FormKey == "" {
			col.FormKey = strings.NewReplacer(" ", "_", "/", "_").Replace(name)
		}
		columns = append(columns, col)
	}
	return columns
}

func indexBy(key func(Column) string) map[string]int {
	index := make(map[string]int, len(catalog))
	for i, c := range catalog {
		index[key(c)] = i
	}
	return index
}

// Columns returns the catalog in row order.
func Columns() []Column {
	return append([]Column(nil), catalog...)
}

// ColumnNames returns the canonical column names in row order.
func ColumnNames() []string {
	names := make([]string, len(catalog))
	for i, c := range catalog {
		names[i] = c.Name
	}
	return names
}

// NumericColumns returns the numeric column group in row order.
func NumericColumns() []string {
	return namesOf(Numeric)
}

// CategoricalColumns returns the categorical column group in row order.
func CategoricalColumns() []string {
	return namesOf(Categorical)
}

func namesOf(kind Kind) []string {
	var names []string
	for _, c := range catalog {
		if c.Kind == kind {
			names = append(names, c.Name)
		}
	}
	return names
}

// Lookup finds a column by canonical name.
func Lookup(name string) (Column, bool) {
	i, ok := byName[name]
	if !ok {
		return Column{}, false
	}
	return catalog[i], true
}

// LookupFormKey finds a column by its HTML form key.
func LookupFormKey(key string) (Column, bool) {
	i, ok := byFormKey[key]
	if !ok {
		return Column{}, false
	}
	return catalog[i], true
}
