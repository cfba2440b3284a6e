package retail

import (
	"errors"

	"github.com/vk/featuregrid/internal/reduce"
	"github.com/zclconf/go-cty/cty"
)

// PricePerUnit divides revenue by quantity. A zero quantity yields null.
func PricePerUnit(args []cty.Value) (cty.Value, error) {
	revenue, quantity, err := pair(args)
	if err != nil || quantity == 0 {
		return cty.NullVal(cty.Number), err
	}
	return cty.NumberFloatVal(revenue / quantity), nil
}

// ProfitMargin is (revenue - cost) / revenue as a percentage.
func ProfitMargin(args []cty.Value) (cty.Value, error) {
	revenue, cost, err := pair(args)
	if err != nil || revenue == 0 {
		return cty.NullVal(cty.Number), err
	}
	return cty.NumberFloatVal((revenue - cost) / revenue * 100), nil
}

// PriceIndex relates a record's unit price to the group average.
func PriceIndex(args []cty.Value) (cty.Value, error) {
	price, avg, err := pair(args)
	if err != nil || avg == 0 {
		return cty.NullVal(cty.Number), err
	}
	return cty.NumberFloatVal(price / avg), nil
}

// HighValue flags records whose revenue exceeds the threshold parameter.
func HighValue(args []cty.Value) (cty.Value, error) {
	revenue, threshold, err := pair(args)
	if err != nil {
		return cty.NullVal(cty.Bool), err
	}
	return cty.BoolVal(revenue > threshold), nil
}

// DiscountPct is the deepest discount in a group: the largest percentage by
// which a unit price falls below the group mean. Arguments are the product
// column and the unit prices.
func DiscountPct(args [][]cty.Value) (cty.Value, error) {
	prices := args[1]
	mean, err := reduce.Mean(prices)
	if err != nil || mean == 0 {
		return nullIfEmpty(err)
	}
	values, err := reduce.Floats(prices)
	if err != nil {
		return cty.NilVal, err
	}
	deepest := 0.0
	for _, p := range values {
		deepest = max(deepest, (mean-p)/mean*100)
	}
	return cty.NumberFloatVal(deepest), nil
}

// TotalRevenue sums revenue per group.
func TotalRevenue(args [][]cty.Value) (cty.Value, error) {
	total, err := reduce.Sum(args[0])
	if err != nil {
		return cty.NilVal, err
	}
	return cty.NumberFloatVal(total), nil
}

// AvgPrice averages the unit price per group.
func AvgPrice(args [][]cty.Value) (cty.Value, error) {
	avg, err := reduce.Mean(args[0])
	if err != nil {
		return nullIfEmpty(err)
	}
	return cty.NumberFloatVal(avg), nil
}

// nullIfEmpty turns a reduction over an all-null group into a null result.
func nullIfEmpty(err error) (cty.Value, error) {
	if err == nil || errors.Is(err, reduce.ErrEmpty) {
		return cty.NullVal(cty.Number), nil
	}
	return cty.NilVal, err
}

func pair(args []cty.Value) (float64, float64, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return 0, 0, nil
	}
	a, err := reduce.Float(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := reduce.Float(args[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
