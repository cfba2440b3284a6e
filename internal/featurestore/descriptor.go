package featurestore

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vk/featuregrid/internal/config"
	"github.com/xeipuuv/gojsonschema"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

//go:embed schema.json
var metadataSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(metadataSchema)

// metadataDoc is the metadata.json form of a feature definition. The
// dtype uses the cty JSON type notation, e.g. "number" or ["list","string"].
type metadataDoc struct {
	config.FeatureDefinition
	DType json.RawMessage `json:"dtype,omitempty"`
}

// decodeJSON validates src against the metadata schema and decodes it.
func decodeJSON(src []byte) (*config.FeatureDefinition, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(src))
	if err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return nil, fmt.Errorf("metadata validation errors: %s", strings.Join(errs, "; "))
	}

	var d metadataDoc
	if err := json.Unmarshal(src, &d); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	def := d.FeatureDefinition
	def.DType = cty.NilType
	if len(d.DType) > 0 {
		ty, err := ctyjson.UnmarshalType(d.DType)
		if err != nil {
			return nil, fmt.Errorf("invalid dtype: %w", err)
		}
		def.DType = ty
	}
	return &def, nil
}

// decodeHCL decodes a manifest that must define exactly the feature name.
func decodeHCL(ctx context.Context, decoder config.FeatureDecoder, filename string, src []byte, name string) (*config.FeatureDefinition, error) {
	defs, err := decoder.DecodeFeatures(ctx, filename, src)
	if err != nil {
		return nil, err
	}
	if len(defs) != 1 {
		return nil, fmt.Errorf("%s must define exactly one feature, found %d", filename, len(defs))
	}
	if defs[0].Name != name {
		return nil, fmt.Errorf("%s defines feature %q but its directory is %q", filename, defs[0].Name, name)
	}
	return defs[0], nil
}
