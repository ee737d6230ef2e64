package jsengine

import (
	"errors"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
	"github.com/devicelab-dev/se-interpreter/pkg/logger"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

// Listener forwards run events to a module exporting
// getInterpreterListener(testRun, options). The function is called once per
// run; the returned object may define startTestRun, endTestRun, startStep
// and endStep. An exported endAllRuns(total, successes) is called once at
// the end of the batch.
type Listener struct {
	module  *Module
	factory goja.Callable
	options map[string]interface{}
	perRun  map[string]*goja.Object // guarded by the engine lock
}

// NewListener wraps a module as a run listener.
func NewListener(m *Module, options map[string]interface{}) (*Listener, error) {
	factory, ok := m.function(m.exports, "getInterpreterListener")
	if !ok {
		return nil, pluginError(m.path, errors.New("listener must export getInterpreterListener(testRun, options)"))
	}
	if options == nil {
		options = map[string]interface{}{}
	}
	return &Listener{module: m, factory: factory, options: options, perRun: map[string]*goja.Object{}}, nil
}

// runInfo is the JS view of a run passed to listener callbacks.
func runInfo(rt *goja.Runtime, run *interpreter.TestRun) *goja.Object {
	obj := rt.NewObject()
	obj.Set("id", run.ID)
	obj.Set("name", run.Name())
	obj.Set("browserOptions", run.BrowserOptions)
	obj.Set("stepIndex", run.StepIndex())
	obj.Set("success", run.Success())
	if run.Script != nil {
		obj.Set("path", run.Script.Path)
	}
	return obj
}

// forRun returns the run's listener object, creating it on first use.
func (l *Listener) forRun(rt *goja.Runtime, run *interpreter.TestRun, info *goja.Object) *goja.Object {
	if obj, ok := l.perRun[run.ID]; ok {
		return obj
	}
	v, err := l.factory(l.module.exports, info, rt.ToValue(l.options))
	var obj *goja.Object
	if err != nil {
		logger.Warn("listener %s: getInterpreterListener: %v", l.module.path, err)
	} else if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		obj = v.ToObject(rt)
	}
	l.perRun[run.ID] = obj
	return obj
}

// call invokes obj[method](args...) if it exists.
func (l *Listener) call(obj *goja.Object, method string, args ...goja.Value) {
	fn, ok := l.module.function(obj, method)
	if !ok {
		return
	}
	if _, err := fn(obj, args...); err != nil {
		logger.Warn("listener %s: %s: %v", l.module.path, method, err)
	}
}

func (l *Listener) StartTestRun(run *interpreter.TestRun, res core.StepResult) {
	e := l.module.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	info := runInfo(e.runtime, run)
	l.call(l.forRun(e.runtime, run, info), "startTestRun", info, resultToJS(e.runtime, res))
}

func (l *Listener) EndTestRun(run *interpreter.TestRun, res core.StepResult) {
	e := l.module.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	info := runInfo(e.runtime, run)
	l.call(l.forRun(e.runtime, run, info), "endTestRun", info, resultToJS(e.runtime, res))
	delete(l.perRun, run.ID)
}

func (l *Listener) StartStep(run *interpreter.TestRun, step *script.Step) {
	e := l.module.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	info := runInfo(e.runtime, run)
	l.call(l.forRun(e.runtime, run, info), "startStep", info, e.runtime.ToValue(step.Params))
}

func (l *Listener) EndStep(run *interpreter.TestRun, step *script.Step, res core.StepResult) {
	e := l.module.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	info := runInfo(e.runtime, run)
	l.call(l.forRun(e.runtime, run, info), "endStep", info, e.runtime.ToValue(step.Params), resultToJS(e.runtime, res))
}

func (l *Listener) EndAllRuns(total, successes int) {
	e := l.module.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	l.call(l.module.exports, "endAllRuns", e.runtime.ToValue(total), e.runtime.ToValue(successes))
}
