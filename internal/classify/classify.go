package classify

import (
	"strings"

	"github.com/vk/featuregrid/internal/feature"
)

// KindLookup returns the kind already assigned to the feature producing
// column, if column is produced by a feature classified earlier.
type KindLookup func(column string) (feature.Kind, bool)

// Classifier decides how a feature's routine is evaluated.
type Classifier interface {
	Classify(f *feature.Feature, known KindLookup) feature.Kind
}

// Declared trusts the declared kind and treats undeclared features as row-level.
type Declared struct{}

// Classify implements Classifier.
func (Declared) Classify(f *feature.Feature, _ KindLookup) feature.Kind {
	if f.Kind != feature.KindUnset {
		return f.Kind
	}
	return feature.KindRowLevel
}

// AggregationTokens are the case-insensitive substrings that mark routine
// text as a per-group reduction.
var AggregationTokens = []string{
	".sum(", ".min(", ".max(", ".mean(", ".median(",
	".percentile(", ".quantile(", ".unique(", ".nunique(",
	".countdistinct(", ".nansum(",
	"//agg", "// agg", "//gby", "// gby", "#agg", "#gby",
}

// SourceProvider returns the text of a feature's routine, or "" when it is
// not available.
type SourceProvider interface {
	Source(f *feature.Feature) string
}

// Heuristic honours declared kinds and otherwise infers the kind from the
// routine text and from the kinds of the features producing its inputs.
type Heuristic struct {
	// Sources is consulted when the feature carries no Source text.
	Sources SourceProvider
}

// Classify implements Classifier.
func (h Heuristic) Classify(f *feature.Feature, known KindLookup) feature.Kind {
	if f.Kind != feature.KindUnset {
		return f.Kind
	}
	if ContainsAggregationToken(h.source(f)) {
		return feature.KindAggregate
	}
	if known != nil {
		for _, in := range f.Inputs {
			if k, ok := known(in); ok && k == feature.KindAggregate {
				return feature.KindAggregate
			}
		}
	}
	return feature.KindRowLevel
}

func (h Heuristic) source(f *feature.Feature) string {
	if f.Source != "" {
		return f.Source
	}
	if h.Sources == nil {
		return ""
	}
	return h.Sources.Source(f)
}

// ContainsAggregationToken reports whether text contains any of AggregationTokens.
func ContainsAggregationToken(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, tok := range AggregationTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
