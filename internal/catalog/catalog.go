package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/vk/featuregrid/internal/feature"
)

// Catalog is an immutable mapping from feature name to definition. It may be
// shared by any number of concurrent runs.
type Catalog struct {
	features  map[string]*feature.Feature
	owners    map[string]string
	rawInputs map[string]struct{}
	names     []string
}

// Get returns the named feature.
func (c *Catalog) Get(name string) (*feature.Feature, bool) {
	f, ok := c.features[name]
	return f, ok
}

// Exists reports whether the name is registered.
func (c *Catalog) Exists(name string) bool {
	_, ok := c.features[name]
	return ok
}

// Names returns all feature names in lexicographic order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// All returns every feature ordered by name.
func (c *Catalog) All() []*feature.Feature {
	return c.filter(func(*feature.Feature) bool { return true })
}

// ByCategory returns the features of one category ordered by name.
func (c *Catalog) ByCategory(category feature.Category) []*feature.Feature {
	return c.filter(func(f *feature.Feature) bool { return f.Category == category })
}

// ByTag returns the features carrying tag ordered by name.
func (c *Catalog) ByTag(tag string) []*feature.Feature {
	return c.filter(func(f *feature.Feature) bool { return f.HasTag(tag) })
}

// Search matches query case-insensitively against names, descriptions and tags.
func (c *Catalog) Search(query string) []*feature.Feature {
	q := strings.ToLower(query)
	return c.filter(func(f *feature.Feature) bool {
		if strings.Contains(strings.ToLower(f.Name), q) || strings.Contains(strings.ToLower(f.Description), q) {
			return true
		}
		for _, tag := range f.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
		return false
	})
}

func (c *Catalog) filter(keep func(*feature.Feature) bool) []*feature.Feature {
	var out []*feature.Feature
	for _, name := range c.names {
		if f := c.features[name]; keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// RawInputs returns the declared raw inputs, sorted.
func (c *Catalog) RawInputs() []string {
	out := make([]string, 0, len(c.rawInputs))
	for k := range c.rawInputs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the named feature or an UnknownFeatureError.
func (c *Catalog) Lookup(_ context.Context, name string) (*feature.Feature, error) {
	f, ok := c.features[name]
	if !ok {
		return nil, &feature.UnknownFeatureError{Name: name}
	}
	return f, nil
}

// OwnerOf returns the feature that produces column. A feature name is
// treated as its own output reference.
func (c *Catalog) OwnerOf(_ context.Context, column string) (string, bool, error) {
	if owner, ok := c.owners[column]; ok {
		return owner, true, nil
	}
	if _, ok := c.features[column]; ok {
		return column, true, nil
	}
	return "", false, nil
}
