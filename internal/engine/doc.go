// Package engine executes a resolved plan against a dataset.
//
// Features run strictly in plan order. Row-level features add columns to a
// working copy of the dataset; aggregate features are evaluated once per
// group-by key and kept apart, then assembled into a per-key table. Each
// routine argument binds from a dataset column, a prior aggregate result or
// configuration, in that order. A feature whose outputs are already columns
// of the dataset is skipped, so a plan can be re-run on its own output.
package engine
