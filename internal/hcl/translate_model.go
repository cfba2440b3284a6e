// This file translates decoded HCL blocks into the format-agnostic
// configuration model defined in the config package.

package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// translateModel converts a model block into the agnostic model.
func translateModel(ctx context.Context, b *modelBlock) (*config.ModelConfig, error) {
	m := &config.ModelConfig{
		Name:       b.Name,
		Input:      b.Input,
		GroupBy:    b.GroupBy,
		Outputs:    b.Outputs,
		KeyColumns: b.KeyColumns,
		ColumnMap:  b.ColumnMap,
		Save:       b.Save,
	}

	if exprDefined(b.ColumnTypes) {
		types, err := columnTypes(ctx, b.ColumnTypes)
		if err != nil {
			return nil, fmt.Errorf("model '%s', column_types: %w", b.Name, err)
		}
		m.ColumnTypes = types
	}

	if exprDefined(b.Globals) {
		globals, err := objectAttributes(b.Globals)
		if err != nil {
			return nil, fmt.Errorf("model '%s', globals: %w", b.Name, err)
		}
		m.Globals = globals
	}

	for _, p := range b.Params {
		if m.Params == nil {
			m.Params = make(map[string]map[string]cty.Value, len(b.Params))
		}
		if _, dup := m.Params[p.Feature]; dup {
			return nil, fmt.Errorf("model '%s': param block for feature '%s' defined more than once", b.Name, p.Feature)
		}
		values, err := bodyAttributes(p.Body)
		if err != nil {
			return nil, fmt.Errorf("model '%s', param '%s': %w", b.Name, p.Feature, err)
		}
		m.Params[p.Feature] = values
	}

	ctxlog.FromContext(ctx).Debug("Translated model block.", "model", m.Name, "outputs", len(m.Outputs), "params", len(m.Params))
	return m, nil
}

// translateFeature converts a feature block into a feature definition.
func translateFeature(ctx context.Context, b *featureBlock) (*config.FeatureDefinition, error) {
	def := &config.FeatureDefinition{
		Name:        b.Name,
		Description: b.Description,
		Kind:        b.Kind,
		Category:    b.Category,
		Inputs:      b.Inputs,
		Outputs:     b.Outputs,
		DependsOn:   b.DependsOn,
		Params:      b.Params,
		Tags:        b.Tags,
		Version:     b.Version,
		Routine:     b.Routine,
		DType:       cty.NilType,
	}
	if exprDefined(b.DType) {
		ty, err := typeExprToCtyType(ctx, b.DType)
		if err != nil {
			return nil, fmt.Errorf("feature '%s', dtype: %w", b.Name, err)
		}
		def.DType = ty
	}
	return def, nil
}

// columnTypes reads an object of column names to type expressions, such as
// `{ quantity = number }`.
func columnTypes(ctx context.Context, expr hcl.Expression) (map[string]cty.Type, error) {
	pairs, diags := hcl.ExprMap(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	types := make(map[string]cty.Type, len(pairs))
	for _, pair := range pairs {
		name := hcl.ExprAsKeyword(pair.Key)
		if name == "" {
			key, diags := pair.Key.Value(nil)
			if diags.HasErrors() {
				return nil, diags
			}
			if key.Type() != cty.String || key.IsNull() {
				return nil, fmt.Errorf("%s: column name must be a string", pair.Key.Range())
			}
			name = key.AsString()
		}
		ty, err := typeExprToCtyType(ctx, pair.Value)
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", name, err)
		}
		types[name] = ty
	}
	return types, nil
}

// objectAttributes evaluates expr, which must be an object or map, into its
// attribute values.
func objectAttributes(expr hcl.Expression) (map[string]cty.Value, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("expected an object, got %s", val.Type().FriendlyName())
	}
	out := make(map[string]cty.Value, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		out[k.AsString()] = v
	}
	return out, nil
}

// bodyAttributes evaluates every attribute of body.
func bodyAttributes(body hcl.Body) (map[string]cty.Value, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	out := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		out[name] = val
	}
	return out, nil
}
