// Package hcl provides the concrete HCL implementation of the configuration
// loading interfaces defined in the `config` package. It parses model files
// (`model "name" { ... }` blocks) and feature manifests (`feature "name"
// { ... }` blocks) and translates them into the format-agnostic model.
package hcl
