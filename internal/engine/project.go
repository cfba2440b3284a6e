package engine

import (
	"fmt"
	"slices"

	"github.com/vk/featuregrid/internal/table"
	"github.com/zclconf/go-cty/cty"
)

// Project selects the requested columns from a result. keys are carried in
// front of the requested columns wherever they exist.
//
// When every requested column is an aggregate output the projection has one
// row per group. Otherwise it has one row per record and aggregate values
// are broadcast onto the records of their group.
func (r *Result) Project(columns, keys []string) (*table.Table, error) {
	var aggOnly = len(columns) > 0
	for _, c := range columns {
		switch {
		case r.isAggregate(c):
		case r.Rows.Has(c):
			aggOnly = false
		default:
			return nil, fmt.Errorf("output column %q was not produced", c)
		}
	}

	var names []string
	add := func(name string) {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	if aggOnly {
		for _, k := range keys {
			if r.Aggregates.Has(k) {
				add(k)
			}
		}
		for _, c := range columns {
			add(c)
		}
		return r.Aggregates.Select(names...)
	}

	out := table.New()
	for _, k := range keys {
		if r.Rows.Has(k) {
			add(k)
		}
	}
	for _, c := range columns {
		add(c)
	}
	for _, name := range names {
		values, ok := r.Rows.Column(name)
		if !ok || r.isAggregate(name) {
			values = r.broadcast(name)
		}
		if err := out.Set(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// isAggregate reports whether column is an aggregate output rather than a
// group key.
func (r *Result) isAggregate(column string) bool {
	return r.Aggregates.Has(column) && !slices.Contains(r.groupBy, column)
}

func (r *Result) broadcast(column string) []cty.Value {
	agg, _ := r.Aggregates.Column(column)
	out := make([]cty.Value, r.Rows.Len())
	for row := range out {
		out[row] = agg[r.rowGroup[row]]
	}
	return out
}
