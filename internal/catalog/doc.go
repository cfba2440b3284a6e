// Package catalog stores feature definitions by name.
//
// A Builder accepts registrations during a build phase and rejects
// duplicate names and duplicate outputs immediately. Build then checks that
// every depends_on reference names a registered feature or a declared raw
// input, and returns a read-only Catalog that can be shared across runs.
//
// The Catalog also answers the introspection queries used by the CLI:
// category and tag lookups, free text search and summary statistics.
package catalog
