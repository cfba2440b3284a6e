// Package cli defines the featuregrid command tree: the run, plan and
// catalog commands and their flags. It translates flags into the
// application's configuration and reports usage errors with exit codes.
package cli
