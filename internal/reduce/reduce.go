// Package reduce provides the numeric reductions feature routines use over
// cty columns. Null and unknown cells are skipped.
package reduce

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmpty is returned when a reduction has no non-null values to work on.
var ErrEmpty = errors.New("no values to reduce")

// Float converts a single cty number to float64.
func Float(v cty.Value) (float64, error) {
	if v.IsNull() || !v.IsKnown() {
		return 0, fmt.Errorf("value is null")
	}
	if v.Type() != cty.Number {
		return 0, fmt.Errorf("expected number, got %s", v.Type().FriendlyName())
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

// Floats converts the non-null numbers of a column to float64.
func Floats(values []cty.Value) ([]float64, error) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v.IsNull() || !v.IsKnown() {
			continue
		}
		f, err := Float(v)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func nonEmpty(values []cty.Value) ([]float64, error) {
	xs, err := Floats(values)
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return nil, ErrEmpty
	}
	return xs, nil
}

// Sum returns the sum of the column. An empty column sums to zero.
func Sum(values []cty.Value) (float64, error) {
	xs, err := Floats(values)
	if err != nil {
		return 0, err
	}
	return floats.Sum(xs), nil
}

// Mean returns the arithmetic mean.
func Mean(values []cty.Value) (float64, error) {
	xs, err := nonEmpty(values)
	if err != nil {
		return 0, err
	}
	return stat.Mean(xs, nil), nil
}

// Max returns the largest value.
func Max(values []cty.Value) (float64, error) {
	xs, err := nonEmpty(values)
	if err != nil {
		return 0, err
	}
	return floats.Max(xs), nil
}

// Min returns the smallest value.
func Min(values []cty.Value) (float64, error) {
	xs, err := nonEmpty(values)
	if err != nil {
		return 0, err
	}
	return floats.Min(xs), nil
}

// Median returns the middle value, averaging the two middle values for an
// even count.
func Median(values []cty.Value) (float64, error) {
	xs, err := nonEmpty(values)
	if err != nil {
		return 0, err
	}
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2], nil
	}
	return (xs[n/2-1] + xs[n/2]) / 2, nil
}

// Quantile returns the empirical p-quantile, 0 <= p <= 1.
func Quantile(p float64, values []cty.Value) (float64, error) {
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("quantile %v out of range [0, 1]", p)
	}
	xs, err := nonEmpty(values)
	if err != nil {
		return 0, err
	}
	sort.Float64s(xs)
	return stat.Quantile(p, stat.Empirical, xs, nil), nil
}

// StdDev returns the sample standard deviation.
func StdDev(values []cty.Value) (float64, error) {
	xs, err := nonEmpty(values)
	if err != nil {
		return 0, err
	}
	if len(xs) < 2 {
		return 0, nil
	}
	return stat.StdDev(xs, nil), nil
}

// NUnique counts distinct non-null values of any primitive type.
func NUnique(values []cty.Value) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v.IsNull() || !v.IsKnown() {
			continue
		}
		seen[v.GoString()] = struct{}{}
	}
	return len(seen)
}
