// Package jsengine loads JavaScript plugin modules: step executor
// factories, run listeners and data sources.
//
// A module is a CommonJS-style file that assigns to exports or
// module.exports. Every call into a module's engine is serialized, so one
// module can serve runs on several lanes.
package jsengine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/logger"
)

// Engine wraps a goja runtime with console, timers, JSON and HTTP helpers.
type Engine struct {
	runtime *goja.Runtime
	out     io.Writer
	timers  *timerRegistry
	mu      sync.Mutex
}

// timerRegistry manages setTimeout timers
type timerRegistry struct {
	timers    map[int]*time.Timer
	nextID    int
	mu        sync.Mutex
	closeOnce sync.Once
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{
		timers: make(map[int]*time.Timer),
		nextID: 1,
	}
}

// New creates an engine whose console writes to out (os.Stdout when nil).
func New(out io.Writer) *Engine {
	if out == nil {
		out = os.Stdout
	}
	e := &Engine{
		runtime: goja.New(),
		out:     out,
		timers:  newTimerRegistry(),
	}
	e.setupBuiltins()
	return e
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()
	e.setupTimers()
	e.runtime.Set("json", e.jsonFunc())
}

// setupConsole adds console.log, console.error and console.warn.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(prefix string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, 0, len(call.Arguments)+1)
			if prefix != "" {
				args = append(args, prefix)
			}
			for _, arg := range call.Arguments {
				args = append(args, arg.String())
			}
			fmt.Fprintln(e.out, args...)
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(""))
	console.Set("info", makeConsoleFunc(""))
	console.Set("error", makeConsoleFunc("ERROR:"))
	console.Set("warn", makeConsoleFunc("WARN:"))
	e.runtime.Set("console", console)
}

// setupTimers adds setTimeout and clearTimeout. Callbacks run with the
// engine lock held.
func (e *Engine) setupTimers() {
	e.runtime.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		callback, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(e.runtime.NewTypeError("setTimeout: first argument must be a function"))
		}
		delay := call.Argument(1).ToInteger()
		extra := append([]goja.Value(nil), call.Arguments[min(2, len(call.Arguments)):]...)

		e.timers.mu.Lock()
		defer e.timers.mu.Unlock()
		id := e.timers.nextID
		e.timers.nextID++
		e.timers.timers[id] = time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
			e.timers.mu.Lock()
			_, live := e.timers.timers[id]
			delete(e.timers.timers, id)
			e.timers.mu.Unlock()
			if !live {
				return
			}

			e.mu.Lock()
			defer e.mu.Unlock()
			if _, err := callback(goja.Undefined(), extra...); err != nil {
				logger.Error("setTimeout callback: %v", err)
			}
		})
		return e.runtime.ToValue(id)
	})

	e.runtime.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		id := int(call.Argument(0).ToInteger())
		e.timers.mu.Lock()
		if timer, ok := e.timers.timers[id]; ok {
			timer.Stop()
			delete(e.timers.timers, id)
		}
		e.timers.mu.Unlock()
		return goja.Undefined()
	})
}

// jsonFunc returns the json() helper, which parses a JSON string.
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parse, _ := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
		v, err := parse(goja.Undefined(), call.Argument(0))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return v
	}
}

// Eval evaluates a JavaScript expression and returns the exported result.
func (e *Engine) Eval(src string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(src)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// LoadModule runs the module file at path and returns its exports.
func (e *Engine) LoadModule(path string) (*Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	src, err := os.ReadFile(abs) //#nosec G304 -- path is user-provided plugin module
	if err != nil {
		return nil, pluginError(abs, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wrapped := "(function(exports, module, require, __filename, __dirname) {\n" + string(src) + "\n})"
	fnVal, err := e.runtime.RunScript(abs, wrapped)
	if err != nil {
		return nil, pluginError(abs, err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, pluginError(abs, fmt.Errorf("module did not compile to a function"))
	}

	exports := e.runtime.NewObject()
	module := e.runtime.NewObject()
	module.Set("exports", exports)
	if _, err := fn(goja.Undefined(), exports, module, e.runtime.ToValue(e.require),
		e.runtime.ToValue(abs), e.runtime.ToValue(filepath.Dir(abs))); err != nil {
		return nil, pluginError(abs, err)
	}

	final := module.Get("exports")
	if final == nil || goja.IsUndefined(final) || goja.IsNull(final) {
		return nil, pluginError(abs, fmt.Errorf("module has no exports"))
	}
	return &Module{engine: e, path: abs, exports: final.ToObject(e.runtime)}, nil
}

// require resolves the built-in modules available to plugins.
func (e *Engine) require(call goja.FunctionCall) goja.Value {
	switch name := call.Argument(0).String(); name {
	case "http":
		return e.httpModule()
	default:
		panic(e.runtime.NewTypeError(fmt.Sprintf("cannot find module %q", name)))
	}
}

// Close stops pending timers. Safe to call multiple times.
func (e *Engine) Close() {
	e.timers.closeOnce.Do(func() {
		e.timers.mu.Lock()
		defer e.timers.mu.Unlock()
		for _, timer := range e.timers.timers {
			timer.Stop()
		}
		e.timers.timers = make(map[int]*time.Timer)
	})
}

func pluginError(path string, err error) error {
	return core.ErrPluginLoad.WithMessage(fmt.Sprintf("unable to load module from %q", path)).WithCause(err)
}

// Module is a loaded plugin module.
type Module struct {
	engine  *Engine
	path    string
	exports *goja.Object
}

// Path returns the module's absolute path.
func (m *Module) Path() string {
	return m.path
}

// function returns the exported function name, if any.
func (m *Module) function(obj *goja.Object, name string) (goja.Callable, bool) {
	if obj == nil {
		return nil, false
	}
	return goja.AssertFunction(obj.Get(name))
}
