package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadModels(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pipeline.hcl", `
model "pricing" {
  group_by    = ["product"]
  outputs     = ["price_per_unit", "discount_pct"]
  key_columns = ["store"]
  column_map  = { rev = "revenue" }
  column_types = {
    quantity = number
    product  = "str"
    tags     = list(string)
  }
  globals = { threshold = 100 }
  save    = true

  param "high_value" {
    threshold = 50
  }
}

model "summary" {
  input   = "pricing_attrs"
  outputs = ["avg_discount"]
}
`)

	p, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, p.Models, 2)

	pricing, ok := p.Model("pricing")
	require.True(t, ok)
	assert.Equal(t, "raw", pricing.InputDataset())
	assert.Equal(t, []string{"product"}, pricing.GroupBy)
	assert.Equal(t, []string{"price_per_unit", "discount_pct"}, pricing.Outputs)
	assert.Equal(t, []string{"store"}, pricing.KeyColumns)
	assert.Equal(t, map[string]string{"rev": "revenue"}, pricing.ColumnMap)
	assert.Equal(t, map[string]cty.Type{"quantity": cty.Number, "product": cty.String, "tags": cty.List(cty.String)}, pricing.ColumnTypes)
	assert.True(t, pricing.Save)

	v, ok := pricing.Param("high_value", "threshold")
	require.True(t, ok)
	assert.True(t, v.RawEquals(cty.NumberIntVal(50)))
	v, ok = pricing.Param("other", "threshold")
	require.True(t, ok)
	assert.True(t, v.RawEquals(cty.NumberIntVal(100)))

	summary, ok := p.Model("summary")
	require.True(t, ok)
	assert.Equal(t, "pricing_attrs", summary.InputDataset())
	assert.Nil(t, summary.ColumnTypes)
	assert.Nil(t, summary.Globals)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		content string
		want    string
	}{
		"syntax": {
			content: `model "broken" {`,
			want:    "failed to parse",
		},
		"missing outputs": {
			content: `model "m" { group_by = ["a"] }`,
			want:    "failed to decode",
		},
		"unknown type": {
			content: `model "m" {
  outputs      = ["x"]
  column_types = { a = decimal }
}`,
			want: `unknown primitive type "decimal"`,
		},
		"duplicate model": {
			content: `model "m" { outputs = ["x"] }
model "m" { outputs = ["y"] }`,
			want: "defined more than once",
		},
		"globals not an object": {
			content: `model "m" {
  outputs = ["x"]
  globals = 5
}`,
			want: "expected an object",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "main.hcl", tc.content)
			_, err := NewLoader().Load(context.Background(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("no files", func(t *testing.T) {
		_, err := NewLoader().Load(context.Background(), t.TempDir())
		assert.ErrorContains(t, err, "no .hcl files")
	})
}

func TestDecodeFeatures(t *testing.T) {
	src := []byte(`
feature "price_per_unit" {
  description = "Revenue per unit sold."
  kind        = "row_level"
  category    = "filter"
  inputs      = ["revenue", "quantity"]
  dtype       = number
  tags        = ["pricing"]
  version     = "1.0.0"
  routine     = "retail.price_per_unit"
}

feature "bounds" {
  inputs  = ["price_per_unit"]
  outputs = ["low", "high"]
  routine = "retail.bounds"
}
`)

	defs, err := NewLoader().DecodeFeatures(context.Background(), "feature.hcl", src)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "price_per_unit", defs[0].Name)
	assert.Equal(t, "row_level", defs[0].Kind)
	assert.Equal(t, []string{"revenue", "quantity"}, defs[0].Inputs)
	assert.Equal(t, cty.Number, defs[0].DType)
	assert.Equal(t, "retail.price_per_unit", defs[0].Routine)

	assert.Equal(t, []string{"low", "high"}, defs[1].Outputs)
	assert.Equal(t, cty.NilType, defs[1].DType)

	t.Run("routine is required", func(t *testing.T) {
		_, err := NewLoader().DecodeFeatures(context.Background(), "feature.hcl", []byte(`feature "x" {}`))
		assert.ErrorContains(t, err, "failed to decode")
	})
}

func TestTypeExprToCtyType(t *testing.T) {
	cases := map[string]struct {
		src  string
		want cty.Type
		err  string
	}{
		"set":         {src: `set(number)`, want: cty.Set(cty.Number)},
		"map":         {src: `map(bool)`, want: cty.Map(cty.Bool)},
		"any element": {src: `list(any)`, err: "cannot contain type 'any'"},
		"arity":       {src: `list(string, number)`, err: "exactly one argument"},
		"constructor": {src: `tuple(string)`, err: "unknown type constructor"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			src := []byte("feature \"f\" {\n  routine = \"r\"\n  dtype = " + tc.src + "\n}\n")
			defs, err := NewLoader().DecodeFeatures(context.Background(), "f.hcl", src)
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, defs[0].DType)
		})
	}
}
