// Package pipeline holds the state shared between model stages of a run
// and the runner that executes those stages.
//
// A Context maps dataset names to tables. Each finished stage stores its
// row output as <model>_filters and its aggregate output as <model>_attrs,
// which a later stage can name as its input.
package pipeline
