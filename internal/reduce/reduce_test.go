package reduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func nums(xs ...float64) []cty.Value {
	out := make([]cty.Value, len(xs))
	for i, x := range xs {
		out[i] = cty.NumberFloatVal(x)
	}
	return out
}

func TestReductions(t *testing.T) {
	col := append(nums(4, 1, 3, 2), cty.NullVal(cty.Number))

	sum, err := Sum(col)
	require.NoError(t, err)
	assert.Equal(t, 10.0, sum)

	mean, err := Mean(col)
	require.NoError(t, err)
	assert.Equal(t, 2.5, mean)

	hi, err := Max(col)
	require.NoError(t, err)
	assert.Equal(t, 4.0, hi)

	lo, err := Min(col)
	require.NoError(t, err)
	assert.Equal(t, 1.0, lo)

	med, err := Median(col)
	require.NoError(t, err)
	assert.Equal(t, 2.5, med)

	med, err = Median(nums(3, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 2.0, med)

	q, err := Quantile(1, col)
	require.NoError(t, err)
	assert.Equal(t, 4.0, q)

	sd, err := StdDev(nums(2, 4))
	require.NoError(t, err)
	assert.InDelta(t, 1.41421, sd, 1e-4)
}

func TestEmptyColumns(t *testing.T) {
	empty := []cty.Value{cty.NullVal(cty.Number)}

	sum, err := Sum(empty)
	require.NoError(t, err)
	assert.Zero(t, sum)

	_, err = Mean(empty)
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = Max(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestTypeErrors(t *testing.T) {
	_, err := Sum([]cty.Value{cty.StringVal("x")})
	assert.ErrorContains(t, err, "expected number, got string")

	_, err = Float(cty.NullVal(cty.Number))
	assert.Error(t, err)

	_, err = Quantile(1.5, nums(1))
	assert.ErrorContains(t, err, "out of range")
}

func TestNUnique(t *testing.T) {
	col := []cty.Value{
		cty.StringVal("a"), cty.StringVal("b"), cty.StringVal("a"),
		cty.NullVal(cty.String),
	}
	assert.Equal(t, 2, NUnique(col))
}
