package catalog

import "github.com/vk/featuregrid/internal/feature"

// Stats summarizes a catalog for introspection output.
type Stats struct {
	Total               int                      `json:"total"`
	ByCategory          map[feature.Category]int `json:"by_category"`
	Aggregates          int                      `json:"aggregates"`
	RowLevel            int                      `json:"row_level"`
	Undeclared          int                      `json:"undeclared"`
	WithoutDependencies int                      `json:"without_dependencies"`
	AvgDependencies     float64                  `json:"avg_dependencies"`
	MaxDependencies     int                      `json:"max_dependencies"`
}

// Statistics counts features by category and declared kind, and measures
// how many other features each one depends on, explicitly or through inputs.
func (c *Catalog) Statistics() Stats {
	s := Stats{
		Total:      len(c.names),
		ByCategory: make(map[feature.Category]int),
	}
	totalDeps := 0
	for _, name := range c.names {
		f := c.features[name]
		if f.Category != "" {
			s.ByCategory[f.Category]++
		}
		switch f.Kind {
		case feature.KindAggregate:
			s.Aggregates++
		case feature.KindRowLevel:
			s.RowLevel++
		default:
			s.Undeclared++
		}

		n := len(c.featureDeps(f))
		totalDeps += n
		if n == 0 {
			s.WithoutDependencies++
		}
		if n > s.MaxDependencies {
			s.MaxDependencies = n
		}
	}
	if s.Total > 0 {
		s.AvgDependencies = float64(totalDeps) / float64(s.Total)
	}
	return s
}

func (c *Catalog) featureDeps(f *feature.Feature) map[string]struct{} {
	deps := make(map[string]struct{})
	for _, d := range f.DependsOn {
		if _, ok := c.features[d]; ok {
			deps[d] = struct{}{}
		}
	}
	for _, in := range f.Inputs {
		if owner, ok := c.owners[in]; ok && owner != f.Name {
			deps[owner] = struct{}{}
		}
	}
	return deps
}
