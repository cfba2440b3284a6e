// Package feature defines the unit of computation shared by the catalog,
// the resolver and the engine: a named transformation with declared inputs,
// outputs, ordering dependencies and a compiled routine. It also holds the
// error taxonomy used across those packages.
package feature
