// Package config defines the format-agnostic configuration model for model
// stages, along with the Loader interface for reading it from a concrete
// format. The HCL implementation lives in the `hcl` package.
package config
