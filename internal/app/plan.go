package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/pipeline"
	"github.com/vk/featuregrid/internal/resolver"
	"github.com/vk/featuregrid/internal/table"
)

// Plan resolves and validates outputs without running any routine, and
// prints the plan. With a model name the model's outputs and configuration
// are used; explicit outputs override the model's. When a dataset is
// configured the plan is also checked against its columns.
func (a *App) Plan(ctx context.Context, model string, outputs []string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	var cfg *config.ModelConfig
	if model != "" {
		if a.pipeline == nil {
			return errors.New("no model configuration loaded")
		}
		m, ok := a.pipeline.Model(model)
		if !ok {
			return fmt.Errorf("model %q is not configured", model)
		}
		cfg = m
		if len(outputs) == 0 {
			outputs = m.Outputs
		}
	}
	if len(outputs) == 0 {
		return errors.New("no outputs to plan")
	}

	var data *table.Table
	if a.config.DataPath != "" {
		raw, err := loadDataset(a.config.DataPath)
		if err != nil {
			return err
		}
		data = raw
		if cfg != nil {
			if data, err = pipeline.Preprocess(raw, cfg); err != nil {
				return err
			}
		}
	}

	dry := resolver.New(a.store, resolver.WithClassifier(a.classifier)).DryRun(ctx, outputs, cfg, data)
	if dry.Plan != nil {
		a.printPlan(dry.Plan)
	}
	if !dry.Valid {
		fmt.Fprintln(a.outW, "Errors:")
		for _, err := range dry.Errors {
			fmt.Fprintf(a.outW, "  - %v\n", err)
		}
		return fmt.Errorf("plan is not valid: %w", dry.Err())
	}
	fmt.Fprintln(a.outW, "Plan is valid.")
	return nil
}

func (a *App) printPlan(p *resolver.Plan) {
	w := a.outW
	fmt.Fprintf(w, "Outputs:         %s\n", strings.Join(p.Outputs, ", "))
	fmt.Fprintf(w, "Execution order: %s\n", strings.Join(p.ExecutionOrder, " -> "))
	fmt.Fprintf(w, "Raw inputs:      %s\n", strings.Join(p.RequiredRawInputs, ", "))
	fmt.Fprintf(w, "Row-level:       %s\n", strings.Join(p.Filters(), ", "))
	fmt.Fprintf(w, "Aggregate:       %s\n", strings.Join(p.Attributes(), ", "))
	fmt.Fprintln(w)
	for _, out := range p.Outputs {
		producer, _ := p.Producer(out)
		fmt.Fprint(w, p.Tree(producer))
	}
	fmt.Fprintln(w)
}
