package table

import (
	"fmt"
	"maps"
	"slices"

	"github.com/zclconf/go-cty/cty"
)

// Table is an ordered set of equally long columns of cty values.
// A Table is not safe for concurrent mutation.
type Table struct {
	names []string
	cols  map[string][]cty.Value
	rows  int
}

// New returns an empty table. Its row count is fixed by the first column added.
func New() *Table {
	return &Table{cols: make(map[string][]cty.Value)}
}

// FromColumns builds a table from names and their values, in the order given.
func FromColumns(names []string, cols map[string][]cty.Value) (*Table, error) {
	t := New()
	for _, name := range names {
		values, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("column %q has no values", name)
		}
		if err := t.Set(name, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustFromColumns is FromColumns for fixtures; it panics on error.
func MustFromColumns(names []string, cols map[string][]cty.Value) *Table {
	t, err := FromColumns(names, cols)
	if err != nil {
		panic(err)
	}
	return t
}

// Set adds a column or replaces an existing one. The length must match the
// table's row count unless the table has no columns yet.
func (t *Table) Set(name string, values []cty.Value) error {
	if name == "" {
		return fmt.Errorf("column name must not be empty")
	}
	if len(t.names) > 0 && len(values) != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.rows)
	}
	if _, exists := t.cols[name]; !exists {
		t.names = append(t.names, name)
	}
	t.cols[name] = values
	t.rows = len(values)
	return nil
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]cty.Value, bool) {
	values, ok := t.cols[name]
	return values, ok
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	return slices.Clone(t.names)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// Shape returns the row and column counts.
func (t *Table) Shape() (rows, cols int) {
	return t.rows, len(t.names)
}

// Clone returns a copy whose column list can be changed independently.
// Value slices are shared; tables never mutate a slice in place.
func (t *Table) Clone() *Table {
	return &Table{
		names: slices.Clone(t.names),
		cols:  maps.Clone(t.cols),
		rows:  t.rows,
	}
}

// Select returns a table holding only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := New()
	for _, name := range names {
		values, ok := t.cols[name]
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if err := out.Set(name, values); err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		out.rows = t.rows
	}
	return out, nil
}

// Take returns the values of column name at the given row indices.
func (t *Table) Take(name string, rows []int) []cty.Value {
	values := t.cols[name]
	out := make([]cty.Value, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}

// Row returns the values of one record keyed by column name.
func (t *Table) Row(i int) map[string]cty.Value {
	out := make(map[string]cty.Value, len(t.names))
	for _, name := range t.names {
		out[name] = t.cols[name][i]
	}
	return out
}
