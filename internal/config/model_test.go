package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestParam(t *testing.T) {
	m := &ModelConfig{
		Params:  map[string]map[string]cty.Value{"discount_pct": {"threshold": cty.NumberIntVal(5)}},
		Globals: map[string]cty.Value{"threshold": cty.NumberIntVal(1), "vat": cty.NumberFloatVal(0.2)},
	}

	v, ok := m.Param("discount_pct", "threshold")
	require.True(t, ok)
	assert.True(t, v.RawEquals(cty.NumberIntVal(5)))

	v, ok = m.Param("other", "threshold")
	require.True(t, ok)
	assert.True(t, v.RawEquals(cty.NumberIntVal(1)))

	_, ok = m.Param("other", "missing")
	assert.False(t, ok)

	var nilModel *ModelConfig
	_, ok = nilModel.Param("a", "b")
	assert.False(t, ok)
}

func TestInputDataset(t *testing.T) {
	assert.Equal(t, DefaultInput, (&ModelConfig{}).InputDataset())
	assert.Equal(t, "sales_attrs", (&ModelConfig{Input: "sales_attrs"}).InputDataset())
}

func TestPipelineValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p := &Pipeline{Models: []*ModelConfig{{Name: "sales", Outputs: []string{"discount_pct"}}}}
		assert.NoError(t, p.Validate())
		m, ok := p.Model("sales")
		require.True(t, ok)
		assert.Equal(t, "sales", m.Name)
	})

	t.Run("missing outputs", func(t *testing.T) {
		p := &Pipeline{Models: []*ModelConfig{{Name: "sales"}}}
		assert.ErrorContains(t, p.Validate(), "Outputs")
	})

	t.Run("duplicate model", func(t *testing.T) {
		p := &Pipeline{Models: []*ModelConfig{
			{Name: "sales", Outputs: []string{"a"}},
			{Name: "sales", Outputs: []string{"b"}},
		}}
		assert.ErrorContains(t, p.Validate(), `model "sales" defined more than once`)
	})
}
