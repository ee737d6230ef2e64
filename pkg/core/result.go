package core

import "fmt"

// StepResult is the outcome reported by executors, steps and whole runs.
// Action executors set Success; getter executors set Value.
type StepResult struct {
	Success bool
	Value   interface{}
	Error   error

	// AdditionalError holds a secondary failure (e.g. session teardown)
	// that occurred while a primary Error was already being reported.
	AdditionalError error
}

// Passed returns a successful result.
func Passed() StepResult {
	return StepResult{Success: true}
}

// Failed returns a failed result carrying err.
func Failed(err error) StepResult {
	return StepResult{Success: false, Error: err}
}

// Value returns a getter result.
func Value(v interface{}) StepResult {
	return StepResult{Value: v}
}

// ErrorString returns the error message, or "" when there is no error.
func (r StepResult) ErrorString() string {
	if r.Error == nil {
		return ""
	}
	if r.AdditionalError != nil {
		return fmt.Sprintf("%v (additionally: %v)", r.Error, r.AdditionalError)
	}
	return r.Error.Error()
}
