// Package dag is a small directed graph keyed by string IDs. An edge from A
// to B means B depends on A. The resolver uses it to detect cycles with
// their full chain and to produce a deterministic topological order.
package dag
