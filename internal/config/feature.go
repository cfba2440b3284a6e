package config

import "github.com/zclconf/go-cty/cty"

// FeatureDefinition is the format-agnostic manifest of one feature. The
// routine is named, not embedded: it is bound to a registered handler when
// the feature is loaded.
type FeatureDefinition struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	Kind        string   `json:"kind,omitempty" validate:"omitempty,oneof=row_level aggregate"`
	Category    string   `json:"category,omitempty"`
	Inputs      []string `json:"inputs,omitempty"`
	Outputs     []string `json:"outputs,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Params      []string `json:"params,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Version     string   `json:"version,omitempty"`
	Routine     string   `json:"routine" validate:"required"`
	// DType is cty.NilType when no type was declared.
	DType cty.Type `json:"-"`
}
