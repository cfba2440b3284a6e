package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// primitiveTypes maps type keywords to cty types. Besides the HCL keywords
// it accepts the dtype names common in tabular data.
var primitiveTypes = map[string]cty.Type{
	"string":   cty.String,
	"str":      cty.String,
	"category": cty.String,
	"number":   cty.Number,
	"float":    cty.Number,
	"int":      cty.Number,
	"bool":     cty.Bool,
	"any":      cty.DynamicPseudoType,
}

// typeExprToCtyType converts a type expression such as `number`,
// `list(string)` or the quoted form `"float"` into a cty.Type.
func typeExprToCtyType(ctx context.Context, expr hcl.Expression) (cty.Type, error) {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		return cty.DynamicPseudoType, nil
	}

	switch v := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		if len(v.Args) != 1 {
			return cty.NilType, fmt.Errorf("type constructor %s() requires exactly one argument, got %d", v.Name, len(v.Args))
		}
		elem, err := typeExprToCtyType(ctx, v.Args[0])
		if err != nil {
			return cty.NilType, err
		}
		if elem == cty.DynamicPseudoType {
			return cty.NilType, fmt.Errorf("collection types cannot contain type 'any'")
		}
		logger.Debug("Parsed collection type.", "constructor", v.Name, "element", elem.FriendlyName())
		switch v.Name {
		case "list":
			return cty.List(elem), nil
		case "map":
			return cty.Map(elem), nil
		case "set":
			return cty.Set(elem), nil
		default:
			return cty.NilType, fmt.Errorf("unknown type constructor function %q", v.Name)
		}

	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return cty.NilType, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		return primitive(v.Traversal.RootName())

	case *hclsyntax.TemplateExpr:
		val, diags := v.Value(nil)
		if diags.HasErrors() {
			return cty.NilType, diags
		}
		if val.Type() != cty.String || val.IsNull() {
			return cty.NilType, fmt.Errorf("quoted type name must be a string")
		}
		return primitive(val.AsString())

	default:
		return cty.NilType, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

func primitive(name string) (cty.Type, error) {
	ty, ok := primitiveTypes[name]
	if !ok {
		return cty.NilType, fmt.Errorf("unknown primitive type %q", name)
	}
	return ty, nil
}
