// Package validator checks loaded runs before execution. Every step type
// must resolve against the run's executor registry, and prefixed steps must
// carry the parameters their prefix needs.
package validator

import (
	"fmt"

	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
	"github.com/devicelab-dev/se-interpreter/pkg/steps"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    int // 1-based; 0 when the error is not tied to a step
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: step #%d: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of script paths checked, in run order.
	Files []string
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates runs.
type Validator struct {
	registry *steps.Registry
}

// New creates a Validator. A nil registry means each run's own registry.
func New(registry *steps.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks every distinct script among runs. Data-driven rows of
// the same script share one check.
func (v *Validator) Validate(runs []*interpreter.TestRun) *Result {
	result := &Result{}
	validated := make(map[*script.Script]bool)

	for _, run := range runs {
		if run.Script == nil || validated[run.Script] {
			continue
		}
		validated[run.Script] = true

		file := run.Script.Path
		if file == "" {
			file = run.Name()
		}
		result.Files = append(result.Files, file)

		reg := v.registry
		if reg == nil {
			reg = run.Registry
		}
		if reg == nil {
			reg = steps.NewRegistry()
		}
		for i, step := range run.Script.Steps {
			for _, msg := range checkStep(reg, step) {
				result.Errors = append(result.Errors, &ValidationError{File: file, Step: i + 1, Message: msg})
			}
		}
	}
	return result
}

// checkStep returns the problems found with a single step.
func checkStep(reg *steps.Registry, step *script.Step) []string {
	var problems []string

	prefix, name := interpreter.SplitPrefix(step.Type)
	exec, err := reg.Resolve(name)
	if err != nil {
		problems = append(problems, fmt.Sprintf("unable to load step type %s", step.Type))
	} else if prefix != "" {
		if cmp := steps.CmpOf(exec); cmp != "" && prefix != interpreter.PrefixStore && !step.Has(cmp) {
			problems = append(problems, fmt.Sprintf("%s is missing parameter %q", step.Type, cmp))
		}
		if prefix == interpreter.PrefixStore && !step.Has("variable") {
			problems = append(problems, fmt.Sprintf("%s is missing parameter \"variable\"", step.Type))
		}
	}

	if step.Has("locator") {
		if _, err := step.Locator("locator"); err != nil {
			problems = append(problems, fmt.Sprintf("invalid locator: %v", err))
		}
	}
	return problems
}
