package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/engine"
	"github.com/vk/featuregrid/internal/resolver"
	"github.com/vk/featuregrid/internal/table"
)

// Stage is one model run: a configuration and the features it may use.
type Stage struct {
	Config *config.ModelConfig
	Source resolver.Source
}

// Sink persists stage outputs.
type Sink interface {
	Write(ctx context.Context, runID, model string, out *Output) error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithEngine replaces the default engine.
func WithEngine(e *engine.Engine) RunnerOption {
	return func(r *Runner) { r.engine = e }
}

// WithResolverOptions are applied to the resolver of every stage.
func WithResolverOptions(opts ...resolver.Option) RunnerOption {
	return func(r *Runner) { r.resolverOpts = append(r.resolverOpts, opts...) }
}

// WithSink saves the output of stages whose configuration asks for it.
func WithSink(s Sink) RunnerOption {
	return func(r *Runner) { r.sink = s }
}

// Runner executes model stages against a pipeline context, in order. Each
// stage reads its input dataset by name, so a stage may consume the
// <model>_filters or <model>_attrs output of an earlier one.
type Runner struct {
	engine       *engine.Engine
	resolverOpts []resolver.Option
	sink         Sink
}

// NewRunner returns a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{engine: engine.New()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes stages in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, pc *Context, stages ...Stage) error {
	ctx = ctxlog.With(ctx, "run_id", pc.RunID())
	logger := ctxlog.FromContext(ctx)
	logger.Info("Pipeline run started.", "stages", len(stages))

	for i, stage := range stages {
		if _, err := r.RunStage(ctx, pc, stage); err != nil {
			return fmt.Errorf("stage %d (%s): %w", i+1, stage.Config.Name, err)
		}
	}

	logger.Info("Pipeline run finished.", "datasets", len(pc.Datasets()))
	return nil
}

// RunStage preprocesses the stage input, validates the plan with a dry run,
// executes it, and stores the output in pc.
func (r *Runner) RunStage(ctx context.Context, pc *Context, stage Stage) (*Output, error) {
	cfg := stage.Config
	ctx = ctxlog.With(ctx, "model", cfg.Name)
	logger := ctxlog.FromContext(ctx)

	input, err := pc.Dataset(cfg.InputDataset())
	if err != nil {
		return nil, err
	}
	data, err := Preprocess(input, cfg)
	if err != nil {
		return nil, err
	}
	pc.Record("preprocess", cfg.Name, data)

	res := resolver.New(stage.Source, r.resolverOpts...)
	dry := res.DryRun(ctx, cfg.Outputs, cfg, data)
	if !dry.Valid {
		logger.Warn("Plan validation failed.", "errors", len(dry.Errors))
		return nil, dry.Err()
	}
	logger.Debug("Plan resolved.", "order", dry.Plan.ExecutionOrder, "raw_inputs", dry.Plan.RequiredRawInputs)

	result, err := r.engine.Execute(ctx, dry.Plan, data, cfg)
	if err != nil {
		return nil, err
	}
	projected, err := result.Project(dry.Plan.OutputColumns(), keyColumns(cfg))
	if err != nil {
		return nil, err
	}

	out := &Output{
		Rows:       result.Rows,
		Aggregates: result.Aggregates,
		Projected:  projected,
		Plan:       dry.Plan,
	}
	pc.SetModelOutput(cfg.Name, out)

	if cfg.Save && r.sink != nil {
		if err := r.sink.Write(ctx, pc.RunID(), cfg.Name, out); err != nil {
			return nil, fmt.Errorf("failed to save outputs: %w", err)
		}
	}

	rows, cols := projected.Shape()
	logger.Info("Stage finished.", "features", len(dry.Plan.ExecutionOrder), "rows", rows, "columns", cols)
	return out, nil
}

// Preprocess renames and converts the columns of input as cfg declares.
func Preprocess(input *table.Table, cfg *config.ModelConfig) (*table.Table, error) {
	data := table.Remap(input, cfg.ColumnMap)
	if len(cfg.ColumnTypes) == 0 {
		return data, nil
	}
	data, err := table.Coerce(data, cfg.ColumnTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to coerce columns: %w", err)
	}
	return data, nil
}

func keyColumns(cfg *config.ModelConfig) []string {
	keys := slices.Clone(cfg.GroupBy)
	for _, k := range cfg.KeyColumns {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}
