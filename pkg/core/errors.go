package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: unresolved_step_type, wait_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code.
// Copies made with WithCause/WithMessage still match their sentinel.
func (e *ExecutionError) Is(target error) bool {
	var t *ExecutionError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// CategoryOf returns the category of err, or ErrCategoryNone when err is
// not an ExecutionError.
func CategoryOf(err error) ErrorCategory {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryNone
}

// Predefined errors
var (
	// Load errors
	ErrLoad = &ExecutionError{
		Category: ErrCategoryLoad,
		Code:     "load_failed",
		Message:  "unable to load file",
	}
	ErrUnknownFileType = &ExecutionError{
		Category: ErrCategoryLoad,
		Code:     "unknown_file_type",
		Message:  "no type property set in JSON file",
	}
	ErrUnknownDataSource = &ExecutionError{
		Category: ErrCategoryLoad,
		Code:     "unknown_data_source",
		Message:  "no data source of that name available",
	}

	// Step errors
	ErrUnresolvedStepType = &ExecutionError{
		Category: ErrCategoryStep,
		Code:     "unresolved_step_type",
		Message:  "unable to load step type",
	}

	// Assertion errors
	ErrAssertionMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "assertion_mismatch",
		Message:  "assertion failed",
	}

	// Timeout errors
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait timed out",
	}

	// Session errors
	ErrSessionInit = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "session_init",
		Message:  "unable to start playback session",
	}
	ErrSessionTeardown = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "session_teardown",
		Message:  "unable to quit session",
	}
	ErrNoSession = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "no_session",
		Message:  "no driver running",
	}
	ErrCommandFailed = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "command_failed",
		Message:  "command failed",
	}

	// Parameter errors
	ErrMissingParameter = &ExecutionError{
		Category: ErrCategoryParameter,
		Code:     "missing_parameter",
		Message:  "missing parameter",
	}
	ErrInvalidParameter = &ExecutionError{
		Category: ErrCategoryParameter,
		Code:     "invalid_parameter",
		Message:  "invalid parameter",
	}
	ErrInvalidLocator = &ExecutionError{
		Category: ErrCategoryParameter,
		Code:     "invalid_locator",
		Message:  "invalid locator",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrPluginLoad = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "plugin_load",
		Message:  "unable to load module",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
