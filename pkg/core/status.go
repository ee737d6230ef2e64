package core

// RunState represents the lifecycle state of a TestRun.
type RunState int

const (
	StateNotStarted RunState = iota // Created, no session yet
	StateRunning                    // Session acquired, steps executing
	StateEnded                      // Session released or handed off
)

// String returns the string representation of RunState
func (s RunState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state is final
func (s RunState) IsTerminal() bool {
	return s == StateEnded
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone      ErrorCategory = iota // No error
	ErrCategoryLoad                           // Malformed/unreadable script, suite, config or data file
	ErrCategoryStep                           // Step type could not be resolved
	ErrCategoryAssertion                      // Compared value or getter condition did not hold
	ErrCategoryTimeout                        // waitFor budget exceeded
	ErrCategorySession                        // Session init/teardown/command failure
	ErrCategoryParameter                      // Missing or malformed step parameter
	ErrCategoryConfig                         // Invalid configuration or plugin module
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryLoad:
		return "load"
	case ErrCategoryStep:
		return "step"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategorySession:
		return "session"
	case ErrCategoryParameter:
		return "parameter"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// IsFatal returns true for categories that abort the whole program
// rather than a single run.
func (c ErrorCategory) IsFatal() bool {
	return c == ErrCategoryLoad || c == ErrCategoryConfig
}
