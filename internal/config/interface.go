package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths and translates it into
	// the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Pipeline, error)
}

// FeatureDecoder reads feature manifests in a concrete format.
type FeatureDecoder interface {
	// DecodeFeatures parses the manifest src, read from filename.
	DecodeFeatures(ctx context.Context, filename string, src []byte) ([]*FeatureDefinition, error)
}
