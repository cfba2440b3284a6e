package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/zclconf/go-cty/cty"
)

// DefaultInput is the dataset a model reads when it names none.
const DefaultInput = "raw"

// Pipeline is the ordered list of models a run executes. A later model may
// read an earlier model's outputs as its input dataset.
type Pipeline struct {
	Models []*ModelConfig `validate:"dive"`
}

// ModelConfig is the format-agnostic configuration of one model stage.
type ModelConfig struct {
	Name string `validate:"required"`
	// Input names the context dataset the model reads.
	Input   string
	GroupBy []string `validate:"dive,required"`
	Outputs []string `validate:"required,min=1,dive,required"`
	// KeyColumns are kept by output projection alongside the group-by keys.
	KeyColumns []string `validate:"dive,required"`
	// ColumnMap renames raw columns to canonical names before execution.
	ColumnMap map[string]string
	// ColumnTypes converts columns after renaming.
	ColumnTypes map[string]cty.Type
	// Params holds per-feature argument values, keyed by feature then argument.
	Params map[string]map[string]cty.Value
	// Globals are argument values visible to every feature.
	Globals map[string]cty.Value
	// Save writes the stage outputs through the configured sink.
	Save bool
}

// InputDataset returns the dataset name this model reads.
func (m *ModelConfig) InputDataset() string {
	if m.Input == "" {
		return DefaultInput
	}
	return m.Input
}

// Param returns the configured value for an argument of a feature. Feature
// parameters shadow globals.
func (m *ModelConfig) Param(featureName, arg string) (cty.Value, bool) {
	if m == nil {
		return cty.NilVal, false
	}
	if params, ok := m.Params[featureName]; ok {
		if v, ok := params[arg]; ok {
			return v, true
		}
	}
	v, ok := m.Globals[arg]
	return v, ok
}

// Model returns the named model.
func (p *Pipeline) Model(name string) (*ModelConfig, bool) {
	for _, m := range p.Models {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Validate checks struct constraints and that model names are unique.
func (p *Pipeline) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("invalid pipeline configuration: %w", err)
	}
	seen := make(map[string]struct{}, len(p.Models))
	for _, m := range p.Models {
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("invalid pipeline configuration: model %q defined more than once", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}
