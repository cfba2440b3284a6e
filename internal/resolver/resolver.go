package resolver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/vk/featuregrid/internal/classify"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/dag"
	"github.com/vk/featuregrid/internal/feature"
	"github.com/vk/featuregrid/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Source provides feature definitions by name. Both the in-memory catalog
// and the filesystem feature store implement it.
type Source interface {
	// Lookup returns the named feature, or an error matching
	// feature.ErrUnknownFeature.
	Lookup(ctx context.Context, name string) (*feature.Feature, error)
	// OwnerOf returns the name of the feature producing column, if any.
	OwnerOf(ctx context.Context, column string) (string, bool, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClassifier replaces the default classify.Declared classifier.
func WithClassifier(c classify.Classifier) Option {
	return func(r *Resolver) { r.classifier = c }
}

// WithGroupBy names the group-by key columns. They become required raw
// inputs of any plan with an aggregate feature, unless a feature produces
// them.
func WithGroupBy(keys ...string) Option {
	return func(r *Resolver) { r.groupBy = slices.Clone(keys) }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) { r.tracer = t }
}

// Resolver turns desired outputs into execution plans.
type Resolver struct {
	source     Source
	classifier classify.Classifier
	tracer     trace.Tracer
	groupBy    []string
}

// New returns a resolver over source. By default features without a
// declared kind are row-level; resolution itself reads no files.
func New(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:     source,
		classifier: classify.Declared{},
		tracer:     tracing.Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// resolution holds the per-request lookup caches.
type resolution struct {
	ctx      context.Context
	source   Source
	features map[string]*feature.Feature
	owners   map[string]string
	unowned  map[string]bool
	deps     map[string][]string
	rawDeps  map[string][]string
}

func (s *resolution) lookup(name string) (*feature.Feature, error) {
	if f, ok := s.features[name]; ok {
		return f, nil
	}
	f, err := s.source.Lookup(s.ctx, name)
	if err != nil {
		return nil, err
	}
	s.features[name] = f
	return f, nil
}

func (s *resolution) ownerOf(column string) (string, bool, error) {
	if owner, ok := s.owners[column]; ok {
		return owner, true, nil
	}
	if s.unowned[column] {
		return "", false, nil
	}
	owner, ok, err := s.source.OwnerOf(s.ctx, column)
	if err != nil {
		return "", false, err
	}
	if ok {
		s.owners[column] = owner
	} else {
		s.unowned[column] = true
	}
	return owner, ok, nil
}

// edges returns the features f must run after, in declaration order, and
// the depends_on entries that are raw inputs rather than features.
func (s *resolution) edges(f *feature.Feature) ([]string, []string, error) {
	if deps, ok := s.deps[f.Name]; ok {
		return deps, s.rawDeps[f.Name], nil
	}
	var deps, raw []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != f.Name && !seen[name] {
			seen[name] = true
			deps = append(deps, name)
		}
	}
	for _, d := range f.DependsOn {
		_, err := s.lookup(d)
		switch {
		case err == nil:
			add(d)
		case errors.Is(err, feature.ErrUnknownFeature):
			raw = append(raw, d)
		default:
			return nil, nil, err
		}
	}
	for _, in := range f.Inputs {
		owner, ok, err := s.ownerOf(in)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			add(owner)
		}
	}
	s.deps[f.Name] = deps
	s.rawDeps[f.Name] = raw
	return deps, raw, nil
}

// Resolve computes the required features, the minimal raw inputs and a
// deterministic execution order for outputs. Each output may name a feature
// or a column a feature produces.
func (r *Resolver) Resolve(ctx context.Context, outputs []string) (*Plan, error) {
	ctx, span := tracing.StartSpan(ctx, r.tracer, "resolver.resolve",
		attribute.StringSlice(tracing.OutputsKey, outputs))
	defer span.End()

	plan, err := r.resolve(ctx, outputs)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.StringSlice(tracing.OrderKey, plan.ExecutionOrder))
	return plan, nil
}

func (r *Resolver) resolve(ctx context.Context, outputs []string) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	s := &resolution{
		ctx:      ctx,
		source:   r.source,
		features: make(map[string]*feature.Feature),
		owners:   make(map[string]string),
		unowned:  make(map[string]bool),
		deps:     make(map[string][]string),
		rawDeps:  make(map[string][]string),
	}

	requested := dedupe(outputs)
	roots := make([]string, 0, len(requested))
	for _, out := range requested {
		owner, ok, err := s.ownerOf(out)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &feature.UnknownFeatureError{Name: out}
		}
		roots = append(roots, owner)
	}

	required, err := closure(s, roots)
	if err != nil {
		return nil, err
	}
	logger.Debug("Closure walk complete.", "required", len(required))

	plan := &Plan{
		Outputs:          requested,
		RequiredFeatures: required,
		features:         make(map[string]*feature.Feature, len(required)),
		kinds:            make(map[string]feature.Kind, len(required)),
		producers:        make(map[string]string),
	}
	for _, name := range required {
		plan.features[name] = s.features[name]
		plan.producers[name] = name
	}
	for _, name := range required {
		for _, out := range s.features[name].OutputNames() {
			plan.producers[out] = name
		}
	}

	g, err := dependencyGraph(s, required)
	if err != nil {
		return nil, err
	}
	order, err := topoOrder(g)
	if err != nil {
		return nil, err
	}
	plan.ExecutionOrder = order

	known := func(column string) (feature.Kind, bool) {
		producer, ok := plan.producers[column]
		if !ok {
			return feature.KindUnset, false
		}
		k, ok := plan.kinds[producer]
		return k, ok
	}
	for _, name := range order {
		plan.kinds[name] = r.classifier.Classify(plan.features[name], known)
	}
	plan.RequiredRawInputs = rawInputs(s, plan, r.groupBy)

	logger.Debug("Plan resolved.",
		"outputs", strings.Join(requested, ","),
		"order", strings.Join(order, ","),
		"raw_inputs", strings.Join(plan.RequiredRawInputs, ","))
	return plan, nil
}

// closure walks depends_on and input edges depth-first from roots and
// returns every visited feature, sorted. Cycles are not detected here; see
// dependencyGraph.
func closure(s *resolution, roots []string) ([]string, error) {
	done := make(map[string]bool)

	var walk func(name, referrer string) error
	walk = func(name, referrer string) error {
		if done[name] {
			return nil
		}
		f, err := s.lookup(name)
		if err != nil {
			var unknown *feature.UnknownFeatureError
			if errors.As(err, &unknown) && unknown.Referrer == "" && referrer != "" {
				return &feature.UnknownFeatureError{Name: name, Referrer: referrer}
			}
			return err
		}
		done[name] = true

		deps, _, err := s.edges(f)
		if err != nil {
			return err
		}
		for _, d := range deps {
			if err := walk(d, name); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := walk(root, ""); err != nil {
			return nil, err
		}
	}

	required := make([]string, 0, len(done))
	for name := range done {
		required = append(required, name)
	}
	sort.Strings(required)
	return required, nil
}

// dependencyGraph builds the graph of required features, with an edge from
// each dependency to its dependent, and rejects cycles. The reported chain
// reads dependent first: "a -> b -> a" means a needs b and b needs a.
func dependencyGraph(s *resolution, required []string) (*dag.Graph, error) {
	g := dag.New()
	for _, name := range required {
		g.AddNode(name)
	}
	for _, name := range required {
		for _, d := range s.deps[name] {
			if err := g.AddEdge(d, name); err != nil {
				return nil, fmt.Errorf("failed to build dependency graph: %w", err)
			}
		}
	}

	if err := g.DetectCycles(); err != nil {
		var cycle *dag.CycleError
		if !errors.As(err, &cycle) {
			return nil, err
		}
		chain := slices.Clone(cycle.Path)
		slices.Reverse(chain)
		return nil, &feature.CyclicDependencyError{Chain: chain}
	}
	return g, nil
}

// rawInputs collects the inputs of required features that no required
// feature produces, plus raw depends_on entries and, when the plan
// aggregates, the group-by keys.
func rawInputs(s *resolution, plan *Plan, groupBy []string) []string {
	seen := make(map[string]bool)
	var raw []string
	add := func(in string) {
		if _, produced := plan.producers[in]; produced || seen[in] {
			return
		}
		seen[in] = true
		raw = append(raw, in)
	}
	for _, name := range plan.RequiredFeatures {
		f := plan.features[name]
		for _, in := range append(slices.Clone(f.Inputs), s.rawDeps[name]...) {
			add(in)
		}
	}
	if plan.HasAggregates() {
		for _, key := range groupBy {
			add(key)
		}
	}
	sort.Strings(raw)
	return raw
}

func topoOrder(g *dag.Graph) ([]string, error) {
	order, remainder := g.TopoSort()
	if len(remainder) > 0 {
		return nil, &feature.CyclicDependencyError{Remainder: remainder}
	}
	return order, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
