package engine

import (
	"context"
	"fmt"

	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/feature"
	"github.com/vk/featuregrid/internal/resolver"
	"github.com/vk/featuregrid/internal/table"
	"github.com/vk/featuregrid/internal/tracing"
	"github.com/zclconf/go-cty/cty"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Engine.
type Option func(*Engine)

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine executes resolved plans. It holds no per-run state and may be
// shared.
type Engine struct {
	tracer trace.Tracer
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{tracer: tracing.Tracer()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result holds the two result surfaces of a plan.
type Result struct {
	// Rows is the input dataset plus every row-level output.
	Rows *table.Table
	// Aggregates has one row per group key: the key columns followed by
	// every aggregate output in execution order.
	Aggregates *table.Table

	groupBy  []string
	groups   []table.Group
	rowGroup []int
}

// Execute runs the features of plan in order against a copy of dataset.
// Features whose outputs the dataset already holds are skipped, along with
// anything only they needed. The first failure aborts the plan and no
// result is returned.
func (e *Engine) Execute(ctx context.Context, plan *resolver.Plan, dataset *table.Table, cfg *config.ModelConfig) (*Result, error) {
	rows, _ := dataset.Shape()
	ctx, span := tracing.StartSpan(ctx, e.tracer, "engine.execute",
		attribute.StringSlice(tracing.OrderKey, plan.ExecutionOrder),
		attribute.Int(tracing.RowsKey, rows))
	defer span.End()

	r := &run{
		plan:       plan,
		cfg:        cfg,
		working:    dataset.Clone(),
		aggregates: make(map[string]map[string]cty.Value),
	}
	if cfg != nil {
		r.groupBy = cfg.GroupBy
	}

	pending := plan.Pending(dataset.Has)
	if skipped := len(plan.ExecutionOrder) - len(pending); skipped > 0 {
		ctxlog.FromContext(ctx).Debug("Skipping features whose outputs are already present.", "skipped", skipped)
	}

	for _, name := range pending {
		if err := ctx.Err(); err != nil {
			tracing.SetError(span, err)
			return nil, fmt.Errorf("plan aborted before %q: %w", name, err)
		}
		if err := e.executeFeature(ctx, r, name); err != nil {
			tracing.SetError(span, err, attribute.String(tracing.FeatureKey, name))
			return nil, err
		}
	}

	res, err := r.result()
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int(tracing.GroupsKey, len(res.groups)))
	return res, nil
}

func (e *Engine) executeFeature(ctx context.Context, r *run, name string) error {
	f := r.plan.Feature(name)
	kind := r.plan.Kind(name)
	ctx = ctxlog.With(ctx, "feature", name, "kind", string(kind))
	logger := ctxlog.FromContext(ctx)

	_, span := tracing.StartSpan(ctx, e.tracer, "engine.feature",
		attribute.String(tracing.FeatureKey, name),
		attribute.String(tracing.FeatureKindKey, string(kind)))
	defer span.End()

	var err error
	switch kind {
	case feature.KindAggregate:
		err = r.evalGroup(f)
	default:
		err = r.evalRow(f)
	}
	if err != nil {
		tracing.SetError(span, err)
		logger.Debug("Feature failed.", "error", err)
		return err
	}
	logger.Debug("Feature executed.")
	return nil
}
