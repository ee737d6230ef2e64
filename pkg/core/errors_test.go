package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "test_error",
		Message:  "test message",
	}

	if got := err.Error(); got != "test message" {
		t.Errorf("Error() = %q, want %q", got, "test message")
	}
}

func TestExecutionError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Category: ErrCategorySession,
		Code:     "test_error",
		Message:  "test message",
		Cause:    cause,
	}

	got := err.Error()
	if !strings.Contains(got, "test message") {
		t.Errorf("Error() = %q, should contain 'test message'", got)
	}
	if !strings.Contains(got, "underlying error") {
		t.Errorf("Error() = %q, should contain 'underlying error'", got)
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Message: "wrapper",
		Cause:   cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
}

func TestExecutionError_WithCause(t *testing.T) {
	original := ErrSessionInit
	cause := errors.New("connection refused")

	newErr := original.WithCause(cause)

	if newErr.Cause != cause {
		t.Error("WithCause() did not set cause")
	}
	if newErr.Code != original.Code {
		t.Error("WithCause() changed code")
	}
	if original.Cause != nil {
		t.Error("WithCause() modified original error")
	}
}

func TestExecutionError_WithMessage(t *testing.T) {
	original := ErrWaitTimeout
	newErr := original.WithMessage("custom timeout message")

	if newErr.Message != "custom timeout message" {
		t.Errorf("Message = %q, want 'custom timeout message'", newErr.Message)
	}
	if newErr.Code != original.Code {
		t.Error("WithMessage() changed code")
	}
	if original.Message == "custom timeout message" {
		t.Error("WithMessage() modified original error")
	}
}

func TestExecutionError_WithDetails(t *testing.T) {
	original := ErrMissingParameter.WithDetails(map[string]interface{}{"step": 1})
	newErr := original.WithDetails(map[string]interface{}{"name": "text"})

	if newErr.Details["step"] != 1 || newErr.Details["name"] != "text" {
		t.Errorf("Details = %v, want merged step and name", newErr.Details)
	}
	if _, ok := original.Details["name"]; ok {
		t.Error("WithDetails() modified original error")
	}
}

func TestExecutionError_IsMatchesSentinelCopies(t *testing.T) {
	err := ErrUnresolvedStepType.WithMessage("unable to load step type meow")
	wrapped := fmt.Errorf("step 3: %w", err)

	if !errors.Is(wrapped, ErrUnresolvedStepType) {
		t.Error("errors.Is() should match sentinel by code")
	}
	if errors.Is(wrapped, ErrWaitTimeout) {
		t.Error("errors.Is() should not match a different code")
	}
	if errors.Is(err, errors.New("unable to load step type meow")) {
		t.Error("errors.Is() should not match plain errors")
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{ErrLoad, ErrCategoryLoad},
		{fmt.Errorf("wrap: %w", ErrAssertionMismatch), ErrCategoryAssertion},
		{errors.New("plain"), ErrCategoryNone},
		{nil, ErrCategoryNone},
	}

	for _, tt := range tests {
		if got := CategoryOf(tt.err); got != tt.want {
			t.Errorf("CategoryOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestPredefinedErrorCategories(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
	}{
		{ErrLoad, ErrCategoryLoad},
		{ErrUnknownFileType, ErrCategoryLoad},
		{ErrUnknownDataSource, ErrCategoryLoad},
		{ErrUnresolvedStepType, ErrCategoryStep},
		{ErrAssertionMismatch, ErrCategoryAssertion},
		{ErrWaitTimeout, ErrCategoryTimeout},
		{ErrSessionInit, ErrCategorySession},
		{ErrSessionTeardown, ErrCategorySession},
		{ErrNoSession, ErrCategorySession},
		{ErrCommandFailed, ErrCategorySession},
		{ErrMissingParameter, ErrCategoryParameter},
		{ErrInvalidLocator, ErrCategoryParameter},
		{ErrInvalidConfig, ErrCategoryConfig},
		{ErrPluginLoad, ErrCategoryConfig},
	}

	for _, tt := range tests {
		if tt.err.Category != tt.category {
			t.Errorf("%s.Category = %v, want %v", tt.err.Code, tt.err.Category, tt.category)
		}
	}
}

func TestNewExecutionError(t *testing.T) {
	err := NewExecutionError(ErrCategorySession, "custom_code", "custom message")

	if err.Category != ErrCategorySession {
		t.Errorf("Category = %v, want %v", err.Category, ErrCategorySession)
	}
	if err.Code != "custom_code" {
		t.Errorf("Code = %q, want %q", err.Code, "custom_code")
	}
	if err.Message != "custom message" {
		t.Errorf("Message = %q, want %q", err.Message, "custom message")
	}
}
