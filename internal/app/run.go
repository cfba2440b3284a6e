package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/pipeline"
	"github.com/vk/featuregrid/internal/resolver"
	"github.com/vk/featuregrid/internal/sink"
	"github.com/vk/featuregrid/internal/table"
	"github.com/vk/featuregrid/internal/tracing"
)

// Run executes the configured models against the dataset and writes the run
// summary to the output writer as JSON.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.pipeline == nil {
		return errors.New("no model configuration loaded")
	}
	stages, err := a.stages()
	if err != nil {
		return err
	}

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer()
		defer a.closeHealthcheckServer(ctx)
	}
	if a.config.Tracing {
		shutdown, err := tracing.NewProvider(ctx, "featuregrid")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			if serr := shutdown(context.WithoutCancel(ctx)); serr != nil {
				a.logger.Error("Failed to shutdown tracer provider", "error", serr)
			}
		}()
	}

	data, err := loadDataset(a.config.DataPath)
	if err != nil {
		return err
	}
	pc := pipeline.NewContext()
	pc.SetDataset(config.DefaultInput, data)

	opts := []pipeline.RunnerOption{
		pipeline.WithResolverOptions(resolver.WithClassifier(a.classifier)),
	}
	if a.config.OutputDir != "" {
		opts = append(opts, pipeline.WithSink(sink.NewCSV(a.config.OutputDir)))
	}

	a.logger.Info("🚀 Starting pipeline run.", "run_id", pc.RunID(), "stages", len(stages))
	if err := pipeline.NewRunner(opts...).Run(ctx, pc, stages...); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Pipeline run finished.")

	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	return enc.Encode(pc.Summary())
}

// stages returns the selected models in configuration order.
func (a *App) stages() ([]pipeline.Stage, error) {
	for _, name := range a.config.Models {
		if _, ok := a.pipeline.Model(name); !ok {
			return nil, fmt.Errorf("model %q is not configured", name)
		}
	}
	var stages []pipeline.Stage
	for _, m := range a.pipeline.Models {
		if len(a.config.Models) > 0 && !slices.Contains(a.config.Models, m.Name) {
			continue
		}
		stages = append(stages, pipeline.Stage{Config: m, Source: a.store})
	}
	if len(stages) == 0 {
		return nil, errors.New("no models to run")
	}
	return stages, nil
}

func loadDataset(path string) (*table.Table, error) {
	if path == "" {
		return nil, errors.New("no dataset given")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	t, err := table.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return t, nil
}
