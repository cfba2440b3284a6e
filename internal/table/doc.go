// Package table is the columnar dataset the engine operates on. Cells are
// cty values so that declared feature types, HCL parameters and computed
// results share one value model.
package table
