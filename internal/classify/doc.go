// Package classify decides whether a feature is evaluated per record or per
// group. A declared kind always wins. Heuristic inference scans routine
// text for reduction calls and marker comments and propagates aggregation
// forward from inputs produced by aggregate features. The scan is a plain
// substring match and can misfire, so manifests should declare kinds.
package classify
