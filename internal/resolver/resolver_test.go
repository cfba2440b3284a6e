package resolver

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/featuregrid/internal/catalog"
	"github.com/vk/featuregrid/internal/classify"
	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/feature"
	"github.com/vk/featuregrid/internal/table"
	"github.com/zclconf/go-cty/cty"
)

var (
	rowNoop   = feature.Row("rowNoop", func([]cty.Value) (cty.Value, error) { return cty.NullVal(cty.Number), nil })
	groupNoop = feature.Group("groupNoop", func([][]cty.Value) (cty.Value, error) { return cty.NullVal(cty.Number), nil })
)

func build(t *testing.T, features ...*feature.Feature) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder()
	for _, f := range features {
		require.NoError(t, b.Register(f))
	}
	c, err := b.Build(context.Background())
	require.NoError(t, err)
	return c
}

func pricing() []*feature.Feature {
	return []*feature.Feature{
		{Name: "price_per_unit", Kind: feature.KindRowLevel, Inputs: []string{"revenue", "quantity"}, Routine: rowNoop},
		{Name: "discount_pct", Kind: feature.KindAggregate, Inputs: []string{"product", "price_per_unit"}, DependsOn: []string{"price_per_unit"}, Routine: groupNoop},
	}
}

func declared(source Source) *Resolver {
	return New(source, WithClassifier(classify.Declared{}))
}

func TestResolvePricingScenario(t *testing.T) {
	r := declared(build(t, pricing()...))

	plan, err := r.Resolve(context.Background(), []string{"discount_pct"})
	require.NoError(t, err)

	assert.Equal(t, []string{"product", "quantity", "revenue"}, plan.RequiredRawInputs)
	assert.Equal(t, []string{"price_per_unit", "discount_pct"}, plan.ExecutionOrder)
	assert.Equal(t, []string{"discount_pct", "price_per_unit"}, plan.RequiredFeatures)
	assert.Equal(t, []string{"price_per_unit"}, plan.Filters())
	assert.Equal(t, []string{"discount_pct"}, plan.Attributes())
	assert.True(t, plan.HasAggregates())
}

func TestMinimality(t *testing.T) {
	// deep <- mid <- base; only base's inputs are raw.
	c := build(t,
		&feature.Feature{Name: "base", Inputs: []string{"revenue"}, Routine: rowNoop},
		&feature.Feature{Name: "mid", Inputs: []string{"base", "quantity"}, Routine: rowNoop},
		&feature.Feature{Name: "deep", Inputs: []string{"mid"}, Routine: rowNoop},
		&feature.Feature{Name: "unrelated", Inputs: []string{"cost"}, Routine: rowNoop},
	)

	plan, err := declared(c).Resolve(context.Background(), []string{"deep"})
	require.NoError(t, err)

	assert.Equal(t, []string{"quantity", "revenue"}, plan.RequiredRawInputs)
	for _, raw := range plan.RequiredRawInputs {
		for _, name := range plan.RequiredFeatures {
			assert.False(t, plan.Feature(name).Produces(raw), "%s is produced by %s", raw, name)
		}
	}
	assert.NotContains(t, plan.RequiredFeatures, "unrelated")
}

func TestMultiOutputFeature(t *testing.T) {
	c := build(t,
		&feature.Feature{Name: "bounds", Outputs: []string{"low", "high"}, Inputs: []string{"price"}, Routine: rowNoop},
		&feature.Feature{Name: "spread", Inputs: []string{"high", "low"}, Routine: rowNoop},
	)

	t.Run("output column as request", func(t *testing.T) {
		plan, err := declared(c).Resolve(context.Background(), []string{"high"})
		require.NoError(t, err)
		assert.Equal(t, []string{"bounds"}, plan.ExecutionOrder)
	})

	t.Run("inputs bound to outputs of another feature", func(t *testing.T) {
		plan, err := declared(c).Resolve(context.Background(), []string{"spread"})
		require.NoError(t, err)
		assert.Equal(t, []string{"bounds", "spread"}, plan.ExecutionOrder)
		assert.Equal(t, []string{"price"}, plan.RequiredRawInputs)
		producer, ok := plan.Producer("low")
		require.True(t, ok)
		assert.Equal(t, "bounds", producer)
	})
}

func TestDeterminism(t *testing.T) {
	defs := []*feature.Feature{
		{Name: "a", Inputs: []string{"x"}, Routine: rowNoop},
		{Name: "b", Inputs: []string{"x"}, Routine: rowNoop},
		{Name: "c", Inputs: []string{"a", "b"}, Routine: rowNoop},
		{Name: "d", Inputs: []string{"y"}, Routine: rowNoop},
		{Name: "e", Inputs: []string{"c", "d"}, DependsOn: []string{"b"}, Routine: rowNoop},
	}
	reversed := slices.Clone(defs)
	slices.Reverse(reversed)

	ctx := context.Background()
	first, err := declared(build(t, defs...)).Resolve(ctx, []string{"e"})
	require.NoError(t, err)
	again, err := declared(build(t, defs...)).Resolve(ctx, []string{"e"})
	require.NoError(t, err)
	reordered, err := declared(build(t, reversed...)).Resolve(ctx, []string{"e"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, first.ExecutionOrder)
	assert.Equal(t, first.ExecutionOrder, again.ExecutionOrder)
	assert.Equal(t, first.ExecutionOrder, reordered.ExecutionOrder)
}

func TestTopologicalSoundness(t *testing.T) {
	c := build(t,
		&feature.Feature{Name: "z_base", Inputs: []string{"x"}, Routine: rowNoop},
		&feature.Feature{Name: "y_mid", Inputs: []string{"z_base"}, Routine: rowNoop},
		&feature.Feature{Name: "a_top", Inputs: []string{"y_mid"}, DependsOn: []string{"m_side"}, Routine: rowNoop},
		&feature.Feature{Name: "m_side", DependsOn: []string{"z_base"}, Routine: rowNoop},
	)

	plan, err := declared(c).Resolve(context.Background(), []string{"a_top"})
	require.NoError(t, err)

	pos := make(map[string]int)
	for i, name := range plan.ExecutionOrder {
		pos[name] = i
	}
	for _, name := range plan.ExecutionOrder {
		f := plan.Feature(name)
		for _, dep := range append(slices.Clone(f.DependsOn), f.Inputs...) {
			producer, ok := plan.Producer(dep)
			if !ok {
				continue
			}
			assert.Less(t, pos[producer], pos[name], "%s must run before %s", producer, name)
		}
	}
	assert.Equal(t, []string{"z_base", "m_side", "y_mid", "a_top"}, plan.ExecutionOrder)
}

func TestCycleDetection(t *testing.T) {
	t.Run("depends_on cycle", func(t *testing.T) {
		c := build(t,
			&feature.Feature{Name: "A", DependsOn: []string{"B"}, Routine: rowNoop},
			&feature.Feature{Name: "B", DependsOn: []string{"A"}, Routine: rowNoop},
		)
		plan, err := declared(c).Resolve(context.Background(), []string{"A"})
		assert.Nil(t, plan)

		var cycle *feature.CyclicDependencyError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"A", "B", "A"}, cycle.Chain)
		assert.EqualError(t, err, "cyclic dependency: A -> B -> A")
	})

	t.Run("cycle through inputs", func(t *testing.T) {
		c := build(t,
			&feature.Feature{Name: "p", Inputs: []string{"r"}, Routine: rowNoop},
			&feature.Feature{Name: "q", Inputs: []string{"p"}, Routine: rowNoop},
			&feature.Feature{Name: "r", Inputs: []string{"q"}, Routine: rowNoop},
			&feature.Feature{Name: "top", Inputs: []string{"q"}, Routine: rowNoop},
		)
		_, err := declared(c).Resolve(context.Background(), []string{"top"})
		var cycle *feature.CyclicDependencyError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"p", "r", "q", "p"}, cycle.Chain)
	})

	t.Run("unrelated request still resolves", func(t *testing.T) {
		c := build(t,
			&feature.Feature{Name: "A", DependsOn: []string{"B"}, Routine: rowNoop},
			&feature.Feature{Name: "B", DependsOn: []string{"A"}, Routine: rowNoop},
			&feature.Feature{Name: "C", Inputs: []string{"x"}, Routine: rowNoop},
		)
		plan, err := declared(c).Resolve(context.Background(), []string{"C"})
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, plan.ExecutionOrder)
	})
}

func TestUnknownOutput(t *testing.T) {
	_, err := declared(build(t, pricing()...)).Resolve(context.Background(), []string{"margin"})
	var unknown *feature.UnknownFeatureError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "margin", unknown.Name)
}

func TestRawDependsOn(t *testing.T) {
	b := catalog.NewBuilder()
	b.DeclareRawInputs("order_date")
	require.NoError(t, b.Register(&feature.Feature{Name: "recency", Inputs: []string{"customer"}, DependsOn: []string{"order_date"}, Routine: rowNoop}))
	c, err := b.Build(context.Background())
	require.NoError(t, err)

	plan, err := declared(c).Resolve(context.Background(), []string{"recency"})
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "order_date"}, plan.RequiredRawInputs)
}

func TestClassificationPropagates(t *testing.T) {
	c := build(t,
		&feature.Feature{Name: "mean_price", Inputs: []string{"price"}, Source: "return reduce.Mean(args[0])", Routine: groupNoop},
		&feature.Feature{Name: "price_gap", Inputs: []string{"mean_price", "list_price"}, Source: "return a - b", Routine: groupNoop},
		&feature.Feature{Name: "ppu", Inputs: []string{"price", "qty"}, Source: "return a / b", Routine: rowNoop},
	)
	r := New(c, WithClassifier(classify.Heuristic{}))

	plan, err := r.Resolve(context.Background(), []string{"price_gap", "ppu"})
	require.NoError(t, err)
	assert.Equal(t, feature.KindAggregate, plan.Kind("mean_price"))
	assert.Equal(t, feature.KindAggregate, plan.Kind("price_gap"))
	assert.Equal(t, feature.KindRowLevel, plan.Kind("ppu"))
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	defs := append(pricing(), &feature.Feature{
		Name: "high_value", Kind: feature.KindRowLevel, Inputs: []string{"revenue"}, Params: []string{"threshold"}, Routine: rowNoop,
	})
	r := declared(build(t, defs...))

	full := table.MustFromColumns([]string{"product", "revenue", "quantity"}, map[string][]cty.Value{
		"product":  table.Strings("A"),
		"revenue":  table.Numbers(1),
		"quantity": table.Numbers(1),
	})
	cfg := &config.ModelConfig{Name: "sales", GroupBy: []string{"product"}, Outputs: []string{"discount_pct"},
		Globals: map[string]cty.Value{"threshold": cty.NumberIntVal(100)}}

	t.Run("valid", func(t *testing.T) {
		res := r.DryRun(ctx, []string{"discount_pct", "high_value"}, cfg, full)
		assert.True(t, res.Valid)
		assert.NoError(t, res.Err())
		require.NotNil(t, res.Plan)
	})

	t.Run("every missing input is reported", func(t *testing.T) {
		partial := table.MustFromColumns([]string{"sku"}, map[string][]cty.Value{"sku": table.Strings("A")})
		noParams := &config.ModelConfig{Name: "sales", GroupBy: []string{"region"}, Outputs: []string{"discount_pct"}}

		res := r.DryRun(ctx, []string{"discount_pct", "high_value"}, noParams, partial)
		assert.False(t, res.Valid)
		require.NotNil(t, res.Plan)

		var missing []string
		for _, e := range res.Errors {
			var mi *feature.MissingInputError
			require.ErrorAs(t, e, &mi)
			missing = append(missing, string(mi.Kind)+":"+mi.Name)
		}
		assert.ElementsMatch(t, []string{
			"column:revenue", "column:quantity", "column:product", "column:revenue",
			"config:threshold", "group_by:region",
		}, missing)
		assert.ErrorIs(t, res.Err(), feature.ErrMissingInput)
	})

	t.Run("resolution error", func(t *testing.T) {
		res := r.DryRun(ctx, []string{"nope"}, cfg, full)
		assert.False(t, res.Valid)
		assert.Nil(t, res.Plan)
		assert.ErrorIs(t, res.Err(), feature.ErrUnknownFeature)
	})

	t.Run("routine form must match kind", func(t *testing.T) {
		c := build(t, &feature.Feature{Name: "total", Kind: feature.KindAggregate, Inputs: []string{"revenue"}, Routine: rowNoop})
		res := declared(c).DryRun(ctx, []string{"total"}, cfg, full)
		assert.False(t, res.Valid)
		assert.ErrorContains(t, res.Err(), `feature "total" is aggregate but routine "rowNoop" has no group form`)
	})

	t.Run("without dataset only config is checked", func(t *testing.T) {
		res := r.DryRun(ctx, []string{"discount_pct"}, cfg, nil)
		assert.True(t, res.Valid)
	})
}

func TestTree(t *testing.T) {
	plan, err := declared(build(t, pricing()...)).Resolve(context.Background(), []string{"discount_pct"})
	require.NoError(t, err)

	want := "discount_pct [aggregate]\n" +
		"├── price_per_unit [row_level]\n" +
		"│   ├── revenue (raw)\n" +
		"│   └── quantity (raw)\n" +
		"└── product (raw)\n"
	assert.Equal(t, want, plan.Tree("discount_pct"))
}

func TestPendingSkipsSatisfiedBranches(t *testing.T) {
	c := build(t,
		&feature.Feature{Name: "base", Inputs: []string{"revenue"}, Routine: rowNoop},
		&feature.Feature{Name: "mid", Inputs: []string{"base"}, Routine: rowNoop},
		&feature.Feature{Name: "side", Inputs: []string{"cost"}, Routine: rowNoop},
		&feature.Feature{Name: "top", Inputs: []string{"mid", "side"}, Routine: rowNoop},
	)
	plan, err := declared(c).Resolve(context.Background(), []string{"top"})
	require.NoError(t, err)

	has := func(cols ...string) func(string) bool {
		return func(name string) bool { return slices.Contains(cols, name) }
	}

	assert.Equal(t, plan.ExecutionOrder, plan.Pending(has()))
	assert.Equal(t, []string{"side", "top"}, plan.Pending(has("mid")))
	assert.Empty(t, plan.Pending(has("top")))
	assert.Equal(t, []string{"top"}, plan.Pending(has("mid", "side")))
}

func TestValidateIgnoresSatisfiedFeatures(t *testing.T) {
	c := build(t, pricing()...)
	r := declared(c)
	dataset := table.MustFromColumns([]string{"product", "price_per_unit"}, map[string][]cty.Value{
		"product":        table.Strings("A", "B"),
		"price_per_unit": table.Numbers(50, 50),
	})

	res := r.DryRun(context.Background(), []string{"discount_pct"}, &config.ModelConfig{GroupBy: []string{"product"}}, dataset)
	assert.True(t, res.Valid, "revenue and quantity are not needed: %v", res.Err())
}

func TestGroupByKeysAreRawInputs(t *testing.T) {
	c := build(t, append(pricing(),
		&feature.Feature{Name: "region", Kind: feature.KindRowLevel, Inputs: []string{"store"}, Routine: rowNoop},
	)...)

	t.Run("added when the plan aggregates", func(t *testing.T) {
		r := New(c, WithClassifier(classify.Declared{}), WithGroupBy("category", "product"))
		plan, err := r.Resolve(context.Background(), []string{"discount_pct"})
		require.NoError(t, err)
		assert.Equal(t, []string{"category", "product", "quantity", "revenue"}, plan.RequiredRawInputs)
	})

	t.Run("ignored without aggregates", func(t *testing.T) {
		r := New(c, WithClassifier(classify.Declared{}), WithGroupBy("category"))
		plan, err := r.Resolve(context.Background(), []string{"price_per_unit"})
		require.NoError(t, err)
		assert.Equal(t, []string{"quantity", "revenue"}, plan.RequiredRawInputs)
	})

	t.Run("produced keys are not raw", func(t *testing.T) {
		r := New(c, WithClassifier(classify.Declared{}), WithGroupBy("region"))
		plan, err := r.Resolve(context.Background(), []string{"discount_pct", "region"})
		require.NoError(t, err)
		assert.Equal(t, []string{"product", "quantity", "revenue", "store"}, plan.RequiredRawInputs)
	})

	t.Run("dry run takes keys from the model", func(t *testing.T) {
		cfg := &config.ModelConfig{Name: "pricing", GroupBy: []string{"category"}}
		dry := declared(c).DryRun(context.Background(), []string{"discount_pct"}, cfg, nil)
		require.True(t, dry.Valid, "%v", dry.Errors)
		assert.Contains(t, dry.Plan.RequiredRawInputs, "category")
	})
}

func TestDefaultClassifierIsDeclared(t *testing.T) {
	c := build(t,
		&feature.Feature{Name: "total", Inputs: []string{"revenue"}, Source: "return revenue.sum()", Routine: groupNoop},
		&feature.Feature{Name: "avg", Kind: feature.KindAggregate, Inputs: []string{"price"}, Routine: groupNoop},
	)

	plan, err := New(c).Resolve(context.Background(), []string{"total", "avg"})
	require.NoError(t, err)
	assert.Equal(t, feature.KindRowLevel, plan.Kind("total"), "source text is ignored by default")
	assert.Equal(t, feature.KindAggregate, plan.Kind("avg"))

	plan, err = New(c, WithClassifier(classify.Heuristic{})).Resolve(context.Background(), []string{"total"})
	require.NoError(t, err)
	assert.Equal(t, feature.KindAggregate, plan.Kind("total"))
}
