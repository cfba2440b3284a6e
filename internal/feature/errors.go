package feature

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the catalog, resolver and engine. Typed errors below
// match them through errors.Is.
var (
	// ErrUnknownFeature indicates a requested output or dependency has no definition.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrDuplicateFeature indicates a feature name was registered twice.
	ErrDuplicateFeature = errors.New("duplicate feature")

	// ErrCyclicDependency indicates the required features cannot be ordered.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrMissingInput indicates a raw column or config key is absent.
	ErrMissingInput = errors.New("missing input")

	// ErrMissingArgumentBinding indicates an argument could not be bound at execution time.
	ErrMissingArgumentBinding = errors.New("missing argument binding")

	// ErrTransformationExecution indicates a routine failed.
	ErrTransformationExecution = errors.New("transformation failed")
)

// UnknownFeatureError names the missing feature and, when known, who referenced it.
type UnknownFeatureError struct {
	Name     string
	Referrer string
}

func (e *UnknownFeatureError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("unknown feature %q referenced by %q", e.Name, e.Referrer)
	}
	return fmt.Sprintf("unknown feature %q", e.Name)
}

func (e *UnknownFeatureError) Is(target error) bool { return target == ErrUnknownFeature }

// DuplicateFeatureError is returned when a name is registered twice.
type DuplicateFeatureError struct {
	Name string
}

func (e *DuplicateFeatureError) Error() string {
	return fmt.Sprintf("feature %q already registered", e.Name)
}

func (e *DuplicateFeatureError) Is(target error) bool { return target == ErrDuplicateFeature }

// CyclicDependencyError carries either the cycle found during the closure
// walk (Chain) or the features that could not be placed in order (Remainder).
type CyclicDependencyError struct {
	Chain     []string
	Remainder []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Chain) > 0 {
		return "cyclic dependency: " + strings.Join(e.Chain, " -> ")
	}
	return "cyclic dependency among unplaced features: " + strings.Join(e.Remainder, ", ")
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrCyclicDependency }

// InputKind distinguishes the sources a MissingInputError can refer to.
type InputKind string

const (
	InputColumn  InputKind = "column"
	InputConfig  InputKind = "config"
	InputGroupBy InputKind = "group_by"
)

// MissingInputError reports a required raw column or config key that is absent.
type MissingInputError struct {
	Feature string
	Name    string
	Kind    InputKind
}

func (e *MissingInputError) Error() string {
	if e.Feature == "" {
		return fmt.Sprintf("missing %s %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("feature %q: missing %s %q", e.Feature, e.Kind, e.Name)
}

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// MissingArgumentBindingError is returned when an argument names neither a
// column, a prior aggregate result nor a config value.
type MissingArgumentBindingError struct {
	Feature  string
	Argument string
}

func (e *MissingArgumentBindingError) Error() string {
	return fmt.Sprintf("feature %q: argument %q cannot be bound", e.Feature, e.Argument)
}

func (e *MissingArgumentBindingError) Is(target error) bool {
	return target == ErrMissingArgumentBinding
}

// TransformationExecutionError wraps a routine failure with the feature and
// the bound argument names.
type TransformationExecutionError struct {
	Feature string
	Args    []string
	Err     error
}

func (e *TransformationExecutionError) Error() string {
	return fmt.Sprintf("feature %q (args %s) failed: %v", e.Feature, strings.Join(e.Args, ", "), e.Err)
}

func (e *TransformationExecutionError) Unwrap() error { return e.Err }

func (e *TransformationExecutionError) Is(target error) bool {
	return target == ErrTransformationExecution
}
