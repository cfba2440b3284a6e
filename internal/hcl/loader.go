package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/fsutil"
)

// Loader is the HCL-specific implementation of config.Loader and
// config.FeatureDecoder.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under paths and collects their model blocks,
// in file order, into a validated pipeline.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.ExpandPaths(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	pipeline := &config.Pipeline{}
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		root, err := decodeFile(parser, file, src)
		if err != nil {
			return nil, err
		}
		for _, block := range root.Models {
			m, err := translateModel(ctx, block)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
			pipeline.Models = append(pipeline.Models, m)
		}
	}

	if err := pipeline.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.", "models", len(pipeline.Models))
	return pipeline, nil
}

// DecodeFeatures parses a feature manifest.
func (l *Loader) DecodeFeatures(ctx context.Context, filename string, src []byte) ([]*config.FeatureDefinition, error) {
	root, err := decodeFile(hclparse.NewParser(), filename, src)
	if err != nil {
		return nil, err
	}
	defs := make([]*config.FeatureDefinition, 0, len(root.Features))
	for _, block := range root.Features {
		def, err := translateFeature(ctx, block)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", filename, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func decodeFile(parser *hclparse.Parser, filename string, src []byte) (*fileRoot, error) {
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	if attrs, _ := root.Remain.JustAttributes(); len(attrs) > 0 {
		for name, attr := range attrs {
			return nil, fmt.Errorf("%s: unexpected top-level attribute %q", attr.NameRange, name)
		}
	}
	return &root, nil
}

var _ interface {
	config.Loader
	config.FeatureDecoder
} = (*Loader)(nil)

// exprDefined reports whether an optional attribute was written in the
// source. gohcl fills omitted optional expressions with a zero-width
// placeholder, so a nil check is not enough.
func exprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}
