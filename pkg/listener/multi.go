package listener

import (
	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

// Multi forwards every event to each listener in order.
type Multi []interpreter.Listener

// Combine returns a listener for the non-nil listeners, or nil when there
// are none.
func Combine(listeners ...interpreter.Listener) interpreter.Listener {
	var m Multi
	for _, l := range listeners {
		if l != nil {
			m = append(m, l)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

func (m Multi) StartTestRun(run *interpreter.TestRun, res core.StepResult) {
	for _, l := range m {
		l.StartTestRun(run, res)
	}
}

func (m Multi) EndTestRun(run *interpreter.TestRun, res core.StepResult) {
	for _, l := range m {
		l.EndTestRun(run, res)
	}
}

func (m Multi) StartStep(run *interpreter.TestRun, step *script.Step) {
	for _, l := range m {
		l.StartStep(run, step)
	}
}

func (m Multi) EndStep(run *interpreter.TestRun, step *script.Step, res core.StepResult) {
	for _, l := range m {
		l.EndStep(run, step, res)
	}
}

func (m Multi) EndAllRuns(total, successes int) {
	for _, l := range m {
		l.EndAllRuns(total, successes)
	}
}
