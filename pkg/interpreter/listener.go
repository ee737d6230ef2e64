package interpreter

import (
	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

// Listener observes test runs. A listener shared by several runs is called
// from several goroutines and must synchronize itself.
type Listener interface {
	StartTestRun(run *TestRun, res core.StepResult)
	EndTestRun(run *TestRun, res core.StepResult)
	StartStep(run *TestRun, step *script.Step)
	EndStep(run *TestRun, step *script.Step, res core.StepResult)
	EndAllRuns(total, successes int)
}

// NopListener implements Listener with no-ops. Embed it to implement only
// some of the callbacks.
type NopListener struct{}

func (NopListener) StartTestRun(*TestRun, core.StepResult) {}
func (NopListener) EndTestRun(*TestRun, core.StepResult) {}
func (NopListener) StartStep(*TestRun, *script.Step) {}
func (NopListener) EndStep(*TestRun, *script.Step, core.StepResult) {}
func (NopListener) EndAllRuns(total, successes int) {}
