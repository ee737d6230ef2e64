package jsengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/steps"
)

// Factory is a step executor factory backed by a module exporting
// get(stepType). get returns an executor object with run(tr, cb) and
// optionally cmp and name, or null for unknown types.
type Factory struct {
	module *Module
	get    goja.Callable
}

// NewFactory wraps a module as an executor factory.
func NewFactory(m *Module) (*Factory, error) {
	get, ok := m.function(m.exports, "get")
	if !ok {
		return nil, pluginError(m.path, errors.New("executor factory must export get(stepType)"))
	}
	return &Factory{module: m, get: get}, nil
}

// Get implements steps.Factory.
func (f *Factory) Get(stepType string) steps.Executor {
	e := f.module.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := f.get(f.module.exports, e.runtime.ToValue(stepType))
	if err != nil || v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj := v.ToObject(e.runtime)
	run, ok := goja.AssertFunction(obj.Get("run"))
	if !ok {
		return nil
	}
	exec := &executor{module: f.module, obj: obj, run: run, name: stepType}
	if cmp := obj.Get("cmp"); cmp != nil && !goja.IsUndefined(cmp) && !goja.IsNull(cmp) {
		exec.cmp = cmp.String()
	}
	if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) && !goja.IsNull(name) {
		exec.name = name.String()
	}
	return exec
}

type executor struct {
	module *Module
	obj    *goja.Object
	run    goja.Callable
	cmp    string
	name   string
}

func (x *executor) Cmp() string  { return x.cmp }
func (x *executor) Name() string { return x.name }

// Run calls run(tr, cb) and waits for the first cb invocation, which may
// come later from a timer.
func (x *executor) Run(ctx context.Context, sc steps.Context) core.StepResult {
	e := x.module.engine
	done := make(chan core.StepResult, 1)
	cb := func(call goja.FunctionCall) goja.Value {
		select {
		case done <- resultFromJS(e.runtime, call.Argument(0)):
		default:
		}
		return goja.Undefined()
	}

	e.mu.Lock()
	tr := newTestRunProxy(ctx, e.runtime, sc)
	_, err := x.run(x.obj, tr, e.runtime.ToValue(cb))
	e.mu.Unlock()
	if err != nil {
		return core.Failed(fmt.Errorf("%s: %w", x.name, err))
	}

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return core.Failed(ctx.Err())
	}
}

// newTestRunProxy exposes the running test to a JS executor:
//
//	tr.name, tr.stepIndex
//	tr.p(name)                          substituted parameter, throws if missing
//	tr.setVar(name, value), tr.getVar(name)
//	tr.print(text)
//	tr.do(command, args, cb[, success]) run a driver command
//	tr.locate(name, cb, success)        find the element of a locator parameter
//
// do and locate call cb({success: false, error}) on failure. On success
// they call success(null, value), or cb({success: true}) when success is
// omitted.
func newTestRunProxy(ctx context.Context, rt *goja.Runtime, sc steps.Context) *goja.Object {
	tr := rt.NewObject()
	tr.Set("name", sc.Name())
	tr.Set("stepIndex", sc.StepIndex())
	tr.Set("p", func(name string) string {
		v, err := sc.Param(name)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return v
	})
	tr.Set("setVar", func(name string, value goja.Value) {
		sc.SetVar(name, value.String())
	})
	tr.Set("getVar", func(name string) goja.Value {
		if v, ok := sc.Var(name); ok {
			return rt.ToValue(v)
		}
		return goja.Undefined()
	})
	tr.Set("print", func(text string) { sc.Print(text) })

	complete := func(cb, success goja.Value, value interface{}, err error) {
		if err != nil {
			callJS(rt, cb, failureToJS(rt, err))
			return
		}
		if fn, ok := goja.AssertFunction(success); ok {
			if _, err := fn(goja.Undefined(), goja.Null(), rt.ToValue(value)); err != nil {
				panic(err)
			}
			return
		}
		res := rt.NewObject()
		res.Set("success", true)
		callJS(rt, cb, res)
	}

	tr.Set("do", func(call goja.FunctionCall) goja.Value {
		command := call.Argument(0).String()
		var args []interface{}
		if a, ok := call.Argument(1).Export().([]interface{}); ok {
			args = a
		}
		sess, err := sc.Session()
		var value interface{}
		if err == nil {
			value, err = sess.Do(ctx, command, args...)
		}
		complete(call.Argument(2), call.Argument(3), value, err)
		return goja.Undefined()
	})
	tr.Set("locate", func(call goja.FunctionCall) goja.Value {
		var id string
		loc, err := sc.Locator(call.Argument(0).String())
		if err == nil {
			var sess core.Session
			if sess, err = sc.Session(); err == nil {
				id, err = sess.FindElement(ctx, loc)
			}
		}
		complete(call.Argument(1), call.Argument(2), id, err)
		return goja.Undefined()
	})
	return tr
}

func callJS(rt *goja.Runtime, fnVal goja.Value, args ...goja.Value) {
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		panic(rt.NewTypeError("callback is not a function"))
	}
	if _, err := fn(goja.Undefined(), args...); err != nil {
		panic(err)
	}
}

func failureToJS(rt *goja.Runtime, err error) *goja.Object {
	res := rt.NewObject()
	res.Set("success", false)
	res.Set("error", rt.NewGoError(err))
	return res
}

// resultToJS converts a step result to {success, value, error}.
func resultToJS(rt *goja.Runtime, res core.StepResult) *goja.Object {
	obj := rt.NewObject()
	obj.Set("success", res.Success)
	if res.Value != nil {
		obj.Set("value", res.Value)
	}
	if res.Error != nil {
		obj.Set("error", rt.NewGoError(res.Error))
	}
	return obj
}

// resultFromJS converts {success, value, error} to a step result.
func resultFromJS(rt *goja.Runtime, v goja.Value) core.StepResult {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return core.Failed(errors.New("executor completed without a result"))
	}
	obj := v.ToObject(rt)
	var res core.StepResult
	if s := obj.Get("success"); s != nil {
		res.Success = s.ToBoolean()
	}
	if val := obj.Get("value"); val != nil && !goja.IsUndefined(val) {
		res.Value = val.Export()
	}
	if ev := obj.Get("error"); ev != nil && !goja.IsUndefined(ev) && !goja.IsNull(ev) {
		res.Error = errorFromJS(ev)
		res.Success = false
	}
	return res
}

// errorFromJS unwraps a Go error passed through JS, or builds one from an
// Error object's message or the value's text.
func errorFromJS(v goja.Value) error {
	if obj, ok := v.(*goja.Object); ok {
		if wrapped := obj.Get("value"); wrapped != nil {
			if err, ok := wrapped.Export().(error); ok {
				return err
			}
		}
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return errors.New(msg.String())
		}
	}
	return errors.New(v.String())
}
