// Package steps holds the step executor registry and the built-in actions
// and getters.
//
// An action performs a browser command and reports success. A getter fetches
// a value and leaves the pass/fail decision to the assert, verify, store and
// waitFor prefixes applied by the interpreter.
package steps

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
)

// Context is the view of a running test that executors work against.
type Context interface {
	// Param returns a step parameter after variable substitution.
	Param(name string) (string, error)
	// Raw returns a step parameter without substitution.
	Raw(name string) (interface{}, bool)
	// Locator decodes a locator parameter; its value is substituted.
	Locator(name string) (core.Locator, error)
	// Session returns the run's live session.
	Session() (core.Session, error)
	SetVar(name, value string)
	Var(name string) (string, bool)
	// Name is the run name.
	Name() string
	// StepIndex is the zero-based index of the current step.
	StepIndex() int
	// Print writes user output unless prints are silenced.
	Print(text string)
}

// Executor runs one step.
type Executor interface {
	Run(ctx context.Context, sc Context) core.StepResult
}

// Comparer is implemented by getters whose value is compared against a
// step parameter instead of being tested for truthiness.
type Comparer interface {
	Cmp() string
}

// Namer is implemented by getters that name themselves in failure messages.
type Namer interface {
	Name() string
}

// GetterFunc fetches a value.
type GetterFunc func(ctx context.Context, sc Context) (interface{}, error)

// ActionFunc performs a command.
type ActionFunc func(ctx context.Context, sc Context) error

type getter struct {
	name string
	cmp  string
	fn   GetterFunc
}

// Getter builds a getter executor. cmp names the parameter its value is
// compared against; an empty cmp means the value is tested for truthiness.
func Getter(name, cmp string, fn GetterFunc) Executor {
	return &getter{name: name, cmp: cmp, fn: fn}
}

func (g *getter) Run(ctx context.Context, sc Context) core.StepResult {
	v, err := g.fn(ctx, sc)
	if err != nil {
		return core.Failed(err)
	}
	return core.Value(v)
}

func (g *getter) Cmp() string  { return g.cmp }
func (g *getter) Name() string { return g.name }

type action ActionFunc

// Action builds an action executor.
func Action(fn ActionFunc) Executor {
	return action(fn)
}

func (a action) Run(ctx context.Context, sc Context) core.StepResult {
	if err := a(ctx, sc); err != nil {
		return core.Failed(err)
	}
	return core.Passed()
}

// CmpOf returns the comparison parameter an executor declares, if any.
func CmpOf(e Executor) string {
	if c, ok := e.(Comparer); ok {
		return c.Cmp()
	}
	return ""
}

// NameOf returns the name an executor declares, falling back to fallback.
func NameOf(e Executor, fallback string) string {
	if n, ok := e.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return fallback
}

// Factory resolves a step type name to an executor, returning nil when it
// does not know the type.
type Factory interface {
	Get(stepType string) Executor
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(stepType string) Executor

// Get calls f.
func (f FactoryFunc) Get(stepType string) Executor { return f(stepType) }

// Map is a static factory keyed by step type.
type Map map[string]Executor

// Get returns the executor registered for stepType.
func (m Map) Get(stepType string) Executor { return m[stepType] }

// Registry consults factories in order; the first non-nil executor wins.
type Registry struct {
	factories []Factory
}

// NewRegistry creates a registry that consults overrides first and the
// built-in step library last.
func NewRegistry(overrides ...Factory) *Registry {
	r := &Registry{}
	for _, f := range overrides {
		if f != nil {
			r.factories = append(r.factories, f)
		}
	}
	r.factories = append(r.factories, Builtins())
	return r
}

// Resolve returns the executor for stepType.
func (r *Registry) Resolve(stepType string) (Executor, error) {
	for _, f := range r.factories {
		if e := f.Get(stepType); e != nil {
			return e, nil
		}
	}
	return nil, core.ErrUnresolvedStepType.WithMessage(fmt.Sprintf("unable to load step type %s", stepType))
}

// Has reports whether stepType resolves.
func (r *Registry) Has(stepType string) bool {
	_, err := r.Resolve(stepType)
	return err == nil
}
