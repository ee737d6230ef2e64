package interpreter

import (
	"context"
	"time"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
	"github.com/devicelab-dev/se-interpreter/pkg/steps"
)

// Step type prefixes that turn a getter into a check.
const (
	PrefixAssert  = "assert"
	PrefixVerify  = "verify"
	PrefixStore   = "store"
	PrefixWaitFor = "waitFor"
)

var prefixes = []string{PrefixAssert, PrefixVerify, PrefixStore, PrefixWaitFor}

// SplitPrefix splits a step type into prefix and getter name. The longest
// matching prefix wins, and a type equal to a prefix is not prefixed.
func SplitPrefix(stepType string) (prefix, name string) {
	for _, p := range prefixes {
		if len(stepType) > len(p) && stepType[:len(p)] == p && len(p) > len(prefix) {
			prefix = p
		}
	}
	return prefix, stepType[len(prefix):]
}

func (t *TestRun) runPrefixed(ctx context.Context, prefix, name string, getter steps.Executor) core.StepResult {
	switch prefix {
	case PrefixAssert:
		return t.assert(ctx, name, getter)
	case PrefixVerify:
		return t.verify(ctx, getter)
	case PrefixStore:
		return t.store(ctx, getter)
	case PrefixWaitFor:
		return t.waitFor(ctx, getter)
	}
	return getter.Run(ctx, t)
}

// matches compares a getter value against the getter's comparison
// parameter, or tests it for truthiness, and applies the step's negation.
func (t *TestRun) matches(getter steps.Executor, value interface{}) (bool, error) {
	var match bool
	if cmp := steps.CmpOf(getter); cmp != "" {
		want, err := t.Param(cmp)
		if err != nil {
			return false, err
		}
		match = script.Stringify(value) == want
	} else {
		match = steps.Truthy(value)
	}
	return match != t.CurrentStep().Negated, nil
}

func (t *TestRun) assert(ctx context.Context, name string, getter steps.Executor) core.StepResult {
	res := getter.Run(ctx, t)
	if res.Error != nil {
		return core.Failed(res.Error)
	}
	ok, err := t.matches(getter, res.Value)
	if err != nil {
		return core.Failed(err)
	}
	if ok {
		return core.Passed()
	}

	negated := t.CurrentStep().Negated
	var msg string
	if cmp := steps.CmpOf(getter); cmp != "" {
		msg = cmp + " does not match"
		if negated {
			msg = cmp + " matches"
		}
	} else {
		msg = steps.NameOf(getter, name) + " is false"
		if negated {
			msg = steps.NameOf(getter, name) + " is true"
		}
	}
	return core.Failed(core.ErrAssertionMismatch.WithMessage(msg))
}

// verify reports a mismatch as a plain failure without an error.
func (t *TestRun) verify(ctx context.Context, getter steps.Executor) core.StepResult {
	res := getter.Run(ctx, t)
	if res.Error != nil {
		return core.Failed(res.Error)
	}
	ok, err := t.matches(getter, res.Value)
	if err != nil {
		return core.Failed(err)
	}
	return core.StepResult{Success: ok}
}

func (t *TestRun) store(ctx context.Context, getter steps.Executor) core.StepResult {
	res := getter.Run(ctx, t)
	if res.Error != nil {
		return core.Failed(res.Error)
	}
	variable, err := t.Param("variable")
	if err != nil {
		return core.Failed(err)
	}
	t.SetVar(variable, script.Stringify(res.Value))
	return core.Passed()
}

// waitFor polls the getter immediately and then every PollInterval until it
// matches or the wait budget is spent. Getter errors do not stop polling;
// the last one is kept as the cause of the timeout.
func (t *TestRun) waitFor(ctx context.Context, getter steps.Executor) core.StepResult {
	interval := t.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	budget := t.waitBudget()
	start := time.Now()

	var lastErr error
	for {
		res := getter.Run(ctx, t)
		if res.Error != nil {
			lastErr = res.Error
		} else {
			ok, err := t.matches(getter, res.Value)
			if err != nil {
				return core.Failed(err)
			}
			if ok {
				return core.Passed()
			}
		}

		if time.Since(start)+interval > budget {
			if lastErr != nil {
				return core.Failed(core.ErrWaitTimeout.WithCause(lastErr))
			}
			return core.Failed(core.ErrWaitTimeout)
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return core.Failed(core.ErrWaitTimeout.WithCause(ctx.Err()))
		}
	}
}
