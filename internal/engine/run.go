package engine

import (
	"fmt"
	"strings"

	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/feature"
	"github.com/vk/featuregrid/internal/resolver"
	"github.com/vk/featuregrid/internal/table"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// run is the mutable state of one plan execution.
type run struct {
	plan    *resolver.Plan
	cfg     *config.ModelConfig
	working *table.Table
	groupBy []string

	// Groups are computed once, on first use, and shared by every aggregate.
	groups   []table.Group
	rowGroup []int

	// aggregates maps an output name to its value per group key ID.
	aggregates map[string]map[string]cty.Value
	aggOrder   []string
}

type bindingSource int

const (
	fromColumn bindingSource = iota
	fromAggregate
	fromConfig
)

type binding struct {
	name   string
	source bindingSource
	column []cty.Value
	keyed  map[string]cty.Value
	scalar cty.Value
}

// bind resolves every argument of f: a dataset column first, then a prior
// aggregate result, then configuration.
func (r *run) bind(f *feature.Feature) ([]binding, error) {
	args := make([]binding, 0, len(f.Inputs)+len(f.Params))
	for _, name := range f.Inputs {
		if col, ok := r.working.Column(name); ok {
			args = append(args, binding{name: name, source: fromColumn, column: col})
			continue
		}
		if keyed, ok := r.aggregates[name]; ok {
			args = append(args, binding{name: name, source: fromAggregate, keyed: keyed})
			continue
		}
		if v, ok := r.cfg.Param(f.Name, name); ok {
			args = append(args, binding{name: name, source: fromConfig, scalar: v})
			continue
		}
		return nil, &feature.MissingArgumentBindingError{Feature: f.Name, Argument: name}
	}
	for _, name := range f.Params {
		v, ok := r.cfg.Param(f.Name, name)
		if !ok {
			return nil, &feature.MissingArgumentBindingError{Feature: f.Name, Argument: name}
		}
		args = append(args, binding{name: name, source: fromConfig, scalar: v})
	}
	return args, nil
}

func (r *run) ensureGroups() error {
	if r.groups != nil {
		return nil
	}
	groups, err := r.working.GroupBy(r.groupBy)
	if err != nil {
		return err
	}
	r.groups = groups
	r.rowGroup = make([]int, r.working.Len())
	for gi, g := range groups {
		for _, row := range g.Rows {
			r.rowGroup[row] = gi
		}
	}
	return nil
}

// evalRow applies the row form of f to every record and appends its outputs
// to the working dataset.
func (r *run) evalRow(f *feature.Feature) error {
	args, err := r.bind(f)
	if err != nil {
		return err
	}
	if f.Routine.Row == nil {
		return execError(f, args, fmt.Errorf("routine %q has no row form", f.Routine.Name))
	}
	for _, a := range args {
		if a.source == fromAggregate {
			if err := r.ensureGroups(); err != nil {
				return execError(f, args, err)
			}
			break
		}
	}

	outs := f.OutputNames()
	n := r.working.Len()
	columns := make([][]cty.Value, len(outs))
	for i := range columns {
		columns[i] = make([]cty.Value, n)
	}

	vals := make([]cty.Value, len(args))
	for row := 0; row < n; row++ {
		for i, a := range args {
			switch a.source {
			case fromColumn:
				vals[i] = a.column[row]
			case fromAggregate:
				vals[i] = keyedValue(a.keyed, r.groups[r.rowGroup[row]].ID())
			case fromConfig:
				vals[i] = a.scalar
			}
		}
		v, err := callRow(f.Routine.Row, vals)
		if err != nil {
			return execError(f, args, fmt.Errorf("row %d: %w", row, err))
		}
		parts, err := spread(f, v)
		if err != nil {
			return execError(f, args, fmt.Errorf("row %d: %w", row, err))
		}
		for i, p := range parts {
			columns[i][row] = p
		}
	}

	for i, out := range outs {
		if err := r.working.Set(out, columns[i]); err != nil {
			return execError(f, args, err)
		}
	}
	return nil
}

// evalGroup calls the group form of f and stores one value per group key.
// When no argument is bound to a dataset column the routine runs once over
// the keyed results (see evalKeyed). Otherwise it runs once per group: column
// arguments receive that group's rows and aggregate arguments the key's
// single value.
func (r *run) evalGroup(f *feature.Feature) error {
	args, err := r.bind(f)
	if err != nil {
		return err
	}
	if f.Routine.Group == nil {
		return execError(f, args, fmt.Errorf("routine %q has no group form", f.Routine.Name))
	}
	if err := r.ensureGroups(); err != nil {
		return execError(f, args, err)
	}

	outs := f.OutputNames()
	results := make([]map[string]cty.Value, len(outs))
	for i := range results {
		results[i] = make(map[string]cty.Value, len(r.groups))
	}

	if keyedOnly(args) {
		err = r.evalKeyed(f, args, results)
	} else {
		err = r.evalPerGroup(f, args, results)
	}
	if err != nil {
		return err
	}

	for i, out := range outs {
		r.aggregates[out] = results[i]
		r.aggOrder = append(r.aggOrder, out)
	}
	return nil
}

func (r *run) evalPerGroup(f *feature.Feature, args []binding, results []map[string]cty.Value) error {
	vals := make([][]cty.Value, len(args))
	for _, g := range r.groups {
		id := g.ID()
		for i, a := range args {
			switch a.source {
			case fromColumn:
				vals[i] = takeRows(a.column, g.Rows)
			case fromAggregate:
				vals[i] = []cty.Value{keyedValue(a.keyed, id)}
			case fromConfig:
				vals[i] = []cty.Value{a.scalar}
			}
		}
		v, err := callGroup(f.Routine.Group, vals)
		if err != nil {
			return execError(f, args, fmt.Errorf("group %s: %w", describeKey(r.groupBy, g.Key), err))
		}
		parts, err := spread(f, v)
		if err != nil {
			return execError(f, args, fmt.Errorf("group %s: %w", describeKey(r.groupBy, g.Key), err))
		}
		for i, p := range parts {
			results[i][id] = p
		}
	}
	return nil
}

// evalKeyed calls the group form of f once, without regrouping the dataset.
// Each aggregate argument holds every key's value in group order and each
// config argument is a one-element slice. The routine returns a list or
// tuple with one value per key, in the same order.
func (r *run) evalKeyed(f *feature.Feature, args []binding, results []map[string]cty.Value) error {
	vals := make([][]cty.Value, len(args))
	for i, a := range args {
		switch a.source {
		case fromAggregate:
			col := make([]cty.Value, len(r.groups))
			for gi, g := range r.groups {
				col[gi] = keyedValue(a.keyed, g.ID())
			}
			vals[i] = col
		case fromConfig:
			vals[i] = []cty.Value{a.scalar}
		}
	}

	v, err := callGroup(f.Routine.Group, vals)
	if err != nil {
		return execError(f, args, err)
	}
	if !v.IsKnown() || v.IsNull() || !(v.Type().IsListType() || v.Type().IsTupleType()) {
		return execError(f, args, fmt.Errorf("result over group keys must be a list or tuple, got %s", v.Type().FriendlyName()))
	}
	if v.LengthInt() != len(r.groups) {
		return execError(f, args, fmt.Errorf("result has %d values for %d group keys", v.LengthInt(), len(r.groups)))
	}

	for gi, g := range r.groups {
		parts, err := spread(f, v.Index(cty.NumberIntVal(int64(gi))))
		if err != nil {
			return execError(f, args, fmt.Errorf("group %s: %w", describeKey(r.groupBy, g.Key), err))
		}
		for i, p := range parts {
			results[i][g.ID()] = p
		}
	}
	return nil
}

// keyedOnly reports whether args bind at least one aggregate result and no
// dataset column.
func keyedOnly(args []binding) bool {
	keyed := false
	for _, a := range args {
		switch a.source {
		case fromColumn:
			return false
		case fromAggregate:
			keyed = true
		}
	}
	return keyed
}

// result assembles the aggregate table from the keyed results.
func (r *run) result() (*Result, error) {
	res := &Result{
		Rows:       r.working,
		Aggregates: table.New(),
		groupBy:    r.groupBy,
		groups:     r.groups,
		rowGroup:   r.rowGroup,
	}
	if len(r.aggOrder) == 0 {
		return res, nil
	}

	for ki, key := range r.groupBy {
		col := make([]cty.Value, len(r.groups))
		for gi, g := range r.groups {
			col[gi] = g.Key[ki]
		}
		if err := res.Aggregates.Set(key, col); err != nil {
			return nil, err
		}
	}
	for _, out := range r.aggOrder {
		col := make([]cty.Value, len(r.groups))
		for gi, g := range r.groups {
			col[gi] = keyedValue(r.aggregates[out], g.ID())
		}
		if err := res.Aggregates.Set(out, col); err != nil {
			return nil, fmt.Errorf("failed to combine aggregate %q: %w", out, err)
		}
	}
	return res, nil
}

func keyedValue(keyed map[string]cty.Value, id string) cty.Value {
	if v, ok := keyed[id]; ok {
		return v
	}
	return cty.NullVal(cty.DynamicPseudoType)
}

func takeRows(col []cty.Value, rows []int) []cty.Value {
	out := make([]cty.Value, len(rows))
	for i, row := range rows {
		out[i] = col[row]
	}
	return out
}

func callRow(fn feature.RowFunc, args []cty.Value) (v cty.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("routine panicked: %v", p)
		}
	}()
	return fn(args)
}

func callGroup(fn feature.GroupFunc, args [][]cty.Value) (v cty.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("routine panicked: %v", p)
		}
	}()
	return fn(args)
}

// spread splits a routine result across the feature's outputs and applies
// the declared dtype. Multi-output routines return an object keyed by
// output name or a tuple/list in output order.
func spread(f *feature.Feature, v cty.Value) ([]cty.Value, error) {
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("routine returned an unknown value")
	}
	outs := f.OutputNames()
	parts := make([]cty.Value, len(outs))

	switch ty := v.Type(); {
	case len(outs) == 1:
		parts[0] = v
	case v.IsNull():
		for i := range parts {
			parts[i] = cty.NullVal(cty.DynamicPseudoType)
		}
	case ty.IsObjectType():
		for i, out := range outs {
			if !ty.HasAttribute(out) {
				return nil, fmt.Errorf("result has no attribute for output %q", out)
			}
			parts[i] = v.GetAttr(out)
		}
	case ty.IsTupleType() || ty.IsListType():
		if v.LengthInt() != len(outs) {
			return nil, fmt.Errorf("result has %d elements for %d outputs", v.LengthInt(), len(outs))
		}
		for i := range outs {
			parts[i] = v.Index(cty.NumberIntVal(int64(i)))
		}
	default:
		return nil, fmt.Errorf("%d outputs declared but result is a single %s", len(outs), ty.FriendlyName())
	}

	if f.DType == cty.NilType || f.DType == cty.DynamicPseudoType {
		return parts, nil
	}
	for i, p := range parts {
		cv, err := convert.Convert(p, f.DType)
		if err != nil {
			return nil, fmt.Errorf("output %q is not a %s: %w", outs[i], f.DType.FriendlyName(), err)
		}
		parts[i] = cv
	}
	return parts, nil
}

func execError(f *feature.Feature, args []binding, err error) error {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.name
	}
	return &feature.TransformationExecutionError{Feature: f.Name, Args: names, Err: err}
}

func describeKey(keys []string, values []cty.Value) string {
	if len(keys) == 0 {
		return "(all rows)"
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		text := values[i].GoString()
		if raw, err := (ctyjson.SimpleJSONValue{Value: values[i]}).MarshalJSON(); err == nil {
			text = string(raw)
		}
		parts[i] = k + "=" + text
	}
	return strings.Join(parts, ",")
}
