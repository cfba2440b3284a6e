// Package app contains the core application logic. It wires the routine
// handlers, the feature store and the model configuration together and
// exposes the run, plan and catalog operations, decoupled from any specific
// entrypoint like a CLI.
package app
