package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/feature"
	"github.com/vk/featuregrid/internal/table"
)

// DryRunResult is a resolved plan plus the outcome of validating it
// against a configuration and, optionally, a dataset.
type DryRunResult struct {
	Plan   *Plan
	Valid  bool
	Errors []error
}

// Err joins all validation errors, or returns nil for a valid result.
func (d *DryRunResult) Err() error {
	return errors.Join(d.Errors...)
}

// DryRun resolves outputs and validates the plan without invoking any
// routine. The group-by keys of cfg replace those of WithGroupBy.
// Resolution errors stop validation; every other problem is collected.
// With a nil dataset only configuration and routine checks run.
func (r *Resolver) DryRun(ctx context.Context, outputs []string, cfg *config.ModelConfig, dataset *table.Table) *DryRunResult {
	logger := ctxlog.FromContext(ctx)

	res := r
	if cfg != nil && len(cfg.GroupBy) > 0 {
		scoped := *r
		WithGroupBy(cfg.GroupBy...)(&scoped)
		res = &scoped
	}
	plan, err := res.Resolve(ctx, outputs)
	if err != nil {
		return &DryRunResult{Errors: []error{err}}
	}

	errs := Validate(plan, cfg, dataset)
	logger.Debug("Dry run finished.", "valid", len(errs) == 0, "errors", len(errs))
	return &DryRunResult{Plan: plan, Valid: len(errs) == 0, Errors: errs}
}

// Validate checks that every raw input of plan can be bound, that group-by
// columns exist when the plan aggregates, and that each routine provides
// the form its kind needs. With a dataset, features it already satisfies
// are not checked.
func Validate(plan *Plan, cfg *config.ModelConfig, dataset *table.Table) []error {
	var errs []error

	order := plan.ExecutionOrder
	if dataset != nil {
		order = plan.Pending(dataset.Has)
	}
	aggregates := false
	for _, name := range order {
		f := plan.Feature(name)
		kind := plan.Kind(name)
		aggregates = aggregates || kind == feature.KindAggregate

		switch {
		case kind == feature.KindAggregate && f.Routine.Group == nil:
			errs = append(errs, fmt.Errorf("feature %q is aggregate but routine %q has no group form", name, f.Routine.Name))
		case kind == feature.KindRowLevel && f.Routine.Row == nil:
			errs = append(errs, fmt.Errorf("feature %q is row-level but routine %q has no row form", name, f.Routine.Name))
		}

		for _, in := range f.Inputs {
			if _, produced := plan.Producer(in); produced {
				continue
			}
			if dataset != nil && dataset.Has(in) {
				continue
			}
			if _, ok := cfg.Param(name, in); ok {
				continue
			}
			if dataset == nil {
				// Without a dataset only configuration can be checked; an
				// unbound input is assumed to be a column.
				continue
			}
			errs = append(errs, &feature.MissingInputError{Feature: name, Name: in, Kind: feature.InputColumn})
		}

		for _, p := range f.Params {
			if _, ok := cfg.Param(name, p); !ok {
				errs = append(errs, &feature.MissingInputError{Feature: name, Name: p, Kind: feature.InputConfig})
			}
		}

		for _, d := range f.DependsOn {
			if _, produced := plan.Producer(d); produced {
				continue
			}
			if dataset != nil && !dataset.Has(d) {
				errs = append(errs, &feature.MissingInputError{Feature: name, Name: d, Kind: feature.InputColumn})
			}
		}
	}

	if aggregates && cfg != nil && dataset != nil {
		for _, key := range cfg.GroupBy {
			if _, produced := plan.Producer(key); !produced && !dataset.Has(key) {
				errs = append(errs, &feature.MissingInputError{Name: key, Kind: feature.InputGroupBy})
			}
		}
	}
	return errs
}
