package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vk/featuregrid/internal/feature"
	"github.com/vk/featuregrid/internal/reduce"
	"github.com/zclconf/go-cty/cty"
)

func ratio(args []cty.Value) (cty.Value, error) {
	return args[0].Divide(args[1]), nil
}

func meanPrice(args [][]cty.Value) (cty.Value, error) {
	m, err := reduce.Mean(args[0])
	if err != nil {
		return cty.NilVal, err
	}
	return cty.NumberFloatVal(m), nil
}

func markedTotal(args [][]cty.Value) (cty.Value, error) {
	//agg
	total := 0.0
	for _, v := range args[0] {
		f, _ := v.AsBigFloat().Float64()
		total += f
	}
	return cty.NumberFloatVal(total), nil
}

func loopTotal(args [][]cty.Value) (cty.Value, error) {
	total := 0.0
	for _, v := range args[0] {
		f, _ := v.AsBigFloat().Float64()
		total += f
	}
	return cty.NumberFloatVal(total), nil
}

func labelsSummary(args []cty.Value) (cty.Value, error) {
	// Flags rows whose note mentions a call like df.sum( in free text.
	return cty.BoolVal(strings.Contains(args[0].AsString(), "df.sum(")), nil
}

func TestDeclared(t *testing.T) {
	c := Declared{}
	assert.Equal(t, feature.KindAggregate, c.Classify(&feature.Feature{Kind: feature.KindAggregate}, nil))
	assert.Equal(t, feature.KindRowLevel, c.Classify(&feature.Feature{Source: "x.sum()"}, nil))
}

func TestHeuristic(t *testing.T) {
	h := Heuristic{}

	t.Run("declared kind wins over tokens", func(t *testing.T) {
		f := &feature.Feature{Kind: feature.KindRowLevel, Source: "return col.Sum()"}
		assert.Equal(t, feature.KindRowLevel, h.Classify(f, nil))
	})

	t.Run("reduction token in source", func(t *testing.T) {
		f := &feature.Feature{Source: "return df.groupby(k)[x].MEAN()"}
		assert.Equal(t, feature.KindAggregate, h.Classify(f, nil))
	})

	t.Run("marker comment", func(t *testing.T) {
		f := &feature.Feature{Source: "# gby\nreturn x\n#agg"}
		assert.Equal(t, feature.KindAggregate, h.Classify(f, nil))
	})

	t.Run("aggregation propagates from inputs", func(t *testing.T) {
		known := func(col string) (feature.Kind, bool) {
			if col == "mean_price" {
				return feature.KindAggregate, true
			}
			return feature.KindUnset, false
		}
		f := &feature.Feature{Inputs: []string{"price", "mean_price"}}
		assert.Equal(t, feature.KindAggregate, h.Classify(f, known))
	})

	t.Run("row-level inputs and no tokens", func(t *testing.T) {
		known := func(col string) (feature.Kind, bool) { return feature.KindRowLevel, col == "ppu" }
		f := &feature.Feature{Inputs: []string{"ppu", "quantity"}, Source: "return a / b"}
		assert.Equal(t, feature.KindRowLevel, h.Classify(f, known))
	})
}

func TestHeuristicWithGoSource(t *testing.T) {
	h := Heuristic{Sources: NewGoSource()}

	cases := []struct {
		name    string
		routine *feature.Routine
		want    feature.Kind
	}{
		{"row routine", feature.Row("ratio", ratio), feature.KindRowLevel},
		{"reduction call", feature.Group("meanPrice", meanPrice), feature.KindAggregate},
		{"marker comment", feature.Group("markedTotal", markedTotal), feature.KindAggregate},
		{"closure", feature.Group("closure", func(args [][]cty.Value) (cty.Value, error) {
			m, err := reduce.Max(args[0])
			return cty.NumberFloatVal(m), err
		}), feature.KindAggregate},
		// The scan is textual: a reduction written as a loop is missed and
		// a row routine quoting a token in a string literal is caught.
		{"false negative", feature.Group("loopTotal", loopTotal), feature.KindRowLevel},
		{"false positive", feature.Row("labelsSummary", labelsSummary), feature.KindAggregate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &feature.Feature{Name: tc.name, Routine: tc.routine}
			assert.Equal(t, tc.want, h.Classify(f, nil))
		})
	}

	t.Run("declaration overrides a misfire", func(t *testing.T) {
		f := &feature.Feature{Name: "labels", Kind: feature.KindRowLevel, Routine: feature.Row("labelsSummary", labelsSummary)}
		assert.Equal(t, feature.KindRowLevel, h.Classify(f, nil))
	})
}

func TestGoSourceText(t *testing.T) {
	g := NewGoSource()
	text := g.Source(&feature.Feature{Routine: feature.Row("ratio", ratio)})
	assert.True(t, strings.HasPrefix(text, "func ratio("))
	assert.Contains(t, text, "Divide")
	assert.NotContains(t, text, "meanPrice")

	assert.Empty(t, g.Source(&feature.Feature{}))
}

func TestContainsAggregationToken(t *testing.T) {
	assert.False(t, ContainsAggregationToken(""))
	assert.False(t, ContainsAggregationToken("summary := a + b"))
	assert.True(t, ContainsAggregationToken("x.NUnique()"))
	assert.True(t, ContainsAggregationToken("s.countDistinct(x)"))
}
