package feature

import (
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"
)

// Kind tells the engine how a feature's routine is evaluated.
type Kind string

const (
	// KindUnset leaves the decision to a classifier.
	KindUnset Kind = ""
	// KindRowLevel produces one value per record (a filter).
	KindRowLevel Kind = "row_level"
	// KindAggregate produces one value per group key (an attribute).
	KindAggregate Kind = "aggregate"
)

// ParseKind converts a manifest string into a Kind. The empty string maps
// to KindUnset.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindUnset, KindRowLevel, KindAggregate:
		return Kind(s), nil
	}
	return KindUnset, fmt.Errorf("unknown feature kind %q: must be %q or %q", s, KindRowLevel, KindAggregate)
}

// Category is descriptive metadata used for catalog lookups.
type Category string

const (
	CategoryFilter        Category = "filter"
	CategoryAttribute     Category = "attribute"
	CategoryScore         Category = "score"
	CategoryPreprocessing Category = "preprocessing"
)

// RowFunc computes one value from the arguments of a single record.
type RowFunc func(args []cty.Value) (cty.Value, error)

// GroupFunc reduces the argument columns of one group to a single value.
// When an argument is bound from a prior aggregate result it holds exactly
// one element: that key's value.
type GroupFunc func(args [][]cty.Value) (cty.Value, error)

// Routine is a compiled transformation. A routine may provide a row form,
// a group form, or both; the feature's kind selects which one is invoked.
type Routine struct {
	Name  string
	Row   RowFunc
	Group GroupFunc
}

// Row wraps fn as a row-level routine.
func Row(name string, fn RowFunc) *Routine {
	return &Routine{Name: name, Row: fn}
}

// Group wraps fn as a grouped routine.
func Group(name string, fn GroupFunc) *Routine {
	return &Routine{Name: name, Group: fn}
}

// Feature is a named, declared transformation producing one or more columns.
type Feature struct {
	Name      string   `validate:"required"`
	Kind      Kind     `validate:"omitempty,oneof=row_level aggregate"`
	Inputs    []string `validate:"dive,required"`
	Outputs   []string `validate:"dive,required"`
	DependsOn []string `validate:"dive,required"`
	// Params are configuration keys the routine reads. They are bound after
	// Inputs, from per-feature parameters or globals, never from the dataset.
	Params  []string `validate:"dive,required"`
	Routine *Routine `validate:"required"`

	Description string
	Category    Category `validate:"omitempty,oneof=filter attribute score preprocessing"`
	DType       cty.Type
	Tags        []string
	Version     string

	// Source is optional routine text. It is only read by source-scanning
	// classifiers and is never executed.
	Source string
}

// OutputNames returns the declared outputs, or the feature name when none
// were declared.
func (f *Feature) OutputNames() []string {
	if len(f.Outputs) == 0 {
		return []string{f.Name}
	}
	return f.Outputs
}

// Arguments returns the names bound to the routine, inputs first.
func (f *Feature) Arguments() []string {
	return append(slices.Clone(f.Inputs), f.Params...)
}

// Produces reports whether column is one of the feature's outputs.
func (f *Feature) Produces(column string) bool {
	return slices.Contains(f.OutputNames(), column)
}

// HasTag reports whether the feature carries the given tag.
func (f *Feature) HasTag(tag string) bool {
	return slices.Contains(f.Tags, tag)
}

// Clone returns a copy that shares the routine but no slices.
func (f *Feature) Clone() *Feature {
	c := *f
	c.Inputs = slices.Clone(f.Inputs)
	c.Outputs = slices.Clone(f.Outputs)
	c.DependsOn = slices.Clone(f.DependsOn)
	c.Params = slices.Clone(f.Params)
	c.Tags = slices.Clone(f.Tags)
	return &c
}
