package table

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Remap renames columns according to mapping (raw name to canonical name).
// Columns absent from the table are ignored. If the canonical name already
// exists it is replaced by the renamed column.
func Remap(t *Table, mapping map[string]string) *Table {
	out := New()
	renamed := make(map[string]string, len(mapping))
	for from, to := range mapping {
		if t.Has(from) && from != to {
			renamed[from] = to
		}
	}
	targets := make(map[string]bool, len(renamed))
	for _, to := range renamed {
		targets[to] = true
	}
	for _, name := range t.names {
		target, isRenamed := renamed[name]
		if !isRenamed {
			if targets[name] {
				continue
			}
			target = name
		}
		// Lengths always agree because all columns come from t.
		_ = out.Set(target, t.cols[name])
	}
	out.rows = t.rows
	return out
}

// Coerce converts the listed columns to the given types. Columns absent
// from the table are ignored.
func Coerce(t *Table, types map[string]cty.Type) (*Table, error) {
	out := t.Clone()
	for _, name := range t.names {
		ty, ok := types[name]
		if !ok {
			continue
		}
		src := t.cols[name]
		dst := make([]cty.Value, len(src))
		for i, v := range src {
			cv, err := convert.Convert(v, ty)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: cannot convert to %s: %w", name, i, ty.FriendlyName(), err)
			}
			dst[i] = cv
		}
		out.cols[name] = dst
	}
	return out, nil
}

// Strings builds a string column.
func Strings(values ...string) []cty.Value {
	out := make([]cty.Value, len(values))
	for i, s := range values {
		out[i] = cty.StringVal(s)
	}
	return out
}

// Numbers builds a number column.
func Numbers(values ...float64) []cty.Value {
	out := make([]cty.Value, len(values))
	for i, n := range values {
		out[i] = cty.NumberFloatVal(n)
	}
	return out
}
