// Package featurestore loads feature definitions from a directory tree.
//
// Each feature lives in its own directory, <model>/<feature>/, holding a
// descriptor and optionally the routine's source text:
//
//	retail/price_per_unit/feature.hcl
//	retail/price_per_unit/routine.go
//
// A descriptor is either a feature.hcl manifest or a metadata.json document
// validated against a JSON schema. It names a routine registered in the
// handlers table; source text is never compiled or evaluated, it only feeds
// kind classification.
package featurestore
