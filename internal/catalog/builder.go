package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/feature"
)

// Builder collects feature definitions during the build phase. It is not
// safe for concurrent use; the Catalog it produces is.
type Builder struct {
	features  map[string]*feature.Feature
	owners    map[string]string
	rawInputs map[string]struct{}
	validate  *validator.Validate
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		features:  make(map[string]*feature.Feature),
		owners:    make(map[string]string),
		rawInputs: make(map[string]struct{}),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register inserts a copy of f. A name that is already registered fails
// with a DuplicateFeatureError; an output already produced by another
// feature fails as well, since outputs identify their producer.
func (b *Builder) Register(f *feature.Feature) error {
	if f == nil {
		return errors.New("feature must not be nil")
	}
	if err := b.validate.Struct(f); err != nil {
		return fmt.Errorf("invalid feature %q: %w", f.Name, err)
	}
	if _, exists := b.features[f.Name]; exists {
		return &feature.DuplicateFeatureError{Name: f.Name}
	}

	c := f.Clone()
	for _, out := range c.OutputNames() {
		if owner, taken := b.owners[out]; taken {
			return fmt.Errorf("feature %q: output %q is already produced by %q: %w", c.Name, out, owner, feature.ErrDuplicateFeature)
		}
	}
	for _, out := range c.OutputNames() {
		b.owners[out] = c.Name
	}
	b.features[c.Name] = c
	return nil
}

// DeclareRawInputs records names that depends_on may reference without a
// feature definition.
func (b *Builder) DeclareRawInputs(names ...string) {
	for _, n := range names {
		b.rawInputs[n] = struct{}{}
	}
}

// Build checks every depends_on reference and freezes the catalog. All
// dangling references are reported together.
func (b *Builder) Build(ctx context.Context) (*Catalog, error) {
	logger := ctxlog.FromContext(ctx)

	names := make([]string, 0, len(b.features))
	for name := range b.features {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		for _, dep := range b.features[name].DependsOn {
			if _, ok := b.features[dep]; ok {
				continue
			}
			if _, ok := b.rawInputs[dep]; ok {
				continue
			}
			errs = append(errs, &feature.UnknownFeatureError{Name: dep, Referrer: name})
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("catalog validation failed: %w", errors.Join(errs...))
	}

	c := &Catalog{
		features:  make(map[string]*feature.Feature, len(b.features)),
		owners:    make(map[string]string, len(b.owners)),
		rawInputs: make(map[string]struct{}, len(b.rawInputs)),
		names:     names,
	}
	for k, v := range b.features {
		c.features[k] = v.Clone()
	}
	for k, v := range b.owners {
		c.owners[k] = v
	}
	for k := range b.rawInputs {
		c.rawInputs[k] = struct{}{}
	}

	logger.Debug("Catalog built.", "features", len(c.names), "raw_inputs", len(c.rawInputs))
	return c, nil
}
