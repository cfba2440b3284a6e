// Package resolver turns a set of desired outputs into an execution plan.
//
// # Algorithm
//
//  1. Closure walk: a depth-first walk over depends_on edges and over
//     inputs that name another feature's output. A name seen again on the
//     current path is a cycle and is reported with its full chain.
//  2. Minimal raw inputs: inputs of required features that no required
//     feature produces. Requesting a deep output never asks for columns that
//     only an intermediate feature would have consumed.
//  3. Order: Kahn's algorithm over the required features, taking the
//     lexicographically smallest ready name, so the order does not depend
//     on registration order. Features left unplaced are reported as a cycle.
//
// Kinds are assigned in execution order by a classify.Classifier, so that
// aggregation can propagate from producers to consumers.
//
// DryRun resolves and validates without running any routine. Validation
// errors are collected rather than returned one at a time.
package resolver
