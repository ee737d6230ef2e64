// Package interpreter drives a script through its steps against a browser
// session.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/logger"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
	"github.com/devicelab-dev/se-interpreter/pkg/steps"
	"github.com/devicelab-dev/se-interpreter/pkg/vars"
)

// Defaults for waitFor polling.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultWaitTimeout  = 60 * time.Second
)

// VerifyPolicy decides whether a failed verify step ends the run.
type VerifyPolicy int

const (
	// VerifyContinue records the failure and keeps going.
	VerifyContinue VerifyPolicy = iota
	// VerifyAbort ends the run at the first failed step.
	VerifyAbort
)

// String returns the policy name.
func (p VerifyPolicy) String() string {
	if p == VerifyAbort {
		return "abort"
	}
	return "continue"
}

// ParseVerifyPolicy parses "continue" or "abort". Empty means continue.
func ParseVerifyPolicy(s string) (VerifyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue":
		return VerifyContinue, nil
	case "abort":
		return VerifyAbort, nil
	}
	return VerifyContinue, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown verify policy %q", s))
}

// DefaultBrowserOptions returns the capabilities used when none are given.
func DefaultBrowserOptions() map[string]interface{} {
	return map[string]interface{}{"browserName": "firefox"}
}

// TestRun executes one script with one set of initial variables.
type TestRun struct {
	ID     string
	Script *script.Script

	BrowserOptions map[string]interface{}
	DriverOptions  map[string]interface{}
	Driver         core.Driver
	Registry       *steps.Registry
	Listener       Listener

	// KeepSession leaves the session open at End for the next run in a
	// share-chain.
	KeepSession bool
	// InheritFrom is the run whose session and variables this run takes
	// over at Start.
	InheritFrom *TestRun

	SilencePrints bool
	Stdout        io.Writer

	PollInterval time.Duration
	WaitTimeout  time.Duration
	ImplicitWait time.Duration
	VerifyPolicy VerifyPolicy

	name        string
	initialVars map[string]string
	vars        *vars.Store
	stepIndex   int
	success     bool
	lastError   error
	state       core.RunState
	endResult   core.StepResult

	mu      sync.Mutex // guards session during hand-off
	session core.Session
}

// New creates a run of s. An empty name becomes "Untitled".
func New(s *script.Script, name string, initialVars map[string]string) *TestRun {
	if name == "" {
		name = "Untitled"
	}
	seed := make(map[string]string, len(initialVars))
	for k, v := range initialVars {
		seed[k] = v
	}
	return &TestRun{
		ID:             uuid.NewString(),
		Script:         s,
		BrowserOptions: DefaultBrowserOptions(),
		DriverOptions:  map[string]interface{}{},
		Registry:       steps.NewRegistry(),
		Stdout:         os.Stdout,
		PollInterval:   DefaultPollInterval,
		WaitTimeout:    DefaultWaitTimeout,
		name:           name,
		initialVars:    seed,
		vars:           vars.NewStore(seed),
		stepIndex:      -1,
		success:        true,
	}
}

// Name returns the run name.
func (t *TestRun) Name() string { return t.name }

// StepIndex returns the index of the current step, -1 before the first.
func (t *TestRun) StepIndex() int { return t.stepIndex }

// State returns the lifecycle state.
func (t *TestRun) State() core.RunState { return t.state }

// Success reports whether every step so far succeeded.
func (t *TestRun) Success() bool { return t.success }

// LastError returns the most recent step error.
func (t *TestRun) LastError() error { return t.lastError }

// Vars returns a copy of the run's variables.
func (t *TestRun) Vars() map[string]string { return t.vars.Snapshot() }

// SetVar sets a variable.
func (t *TestRun) SetVar(name, value string) { t.vars.Set(name, value) }

// Var returns a variable.
func (t *TestRun) Var(name string) (string, bool) { return t.vars.Get(name) }

// CurrentStep returns the step being executed, or nil outside the steps.
func (t *TestRun) CurrentStep() *script.Step {
	if t.Script == nil || t.stepIndex < 0 || t.stepIndex >= len(t.Script.Steps) {
		return nil
	}
	return t.Script.Steps[t.stepIndex]
}

// HasSession reports whether the run holds a live session.
func (t *TestRun) HasSession() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session != nil
}

// Session returns the live session.
func (t *TestRun) Session() (core.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, core.ErrNoSession
	}
	return t.session, nil
}

// Param returns a step parameter of the current step with variables and
// key codes substituted.
func (t *TestRun) Param(name string) (string, error) {
	step := t.CurrentStep()
	var raw interface{}
	ok := false
	if step != nil {
		raw, ok = step.Raw(name)
	}
	if !ok {
		return "", core.ErrMissingParameter.WithMessage(fmt.Sprintf("missing parameter %q in step #%d", name, t.stepIndex+1))
	}
	return t.vars.Expand(script.Stringify(raw)), nil
}

// Raw returns a parameter of the current step without substitution.
func (t *TestRun) Raw(name string) (interface{}, bool) {
	step := t.CurrentStep()
	if step == nil {
		return nil, false
	}
	return step.Raw(name)
}

// Locator decodes a locator parameter of the current step.
func (t *TestRun) Locator(name string) (core.Locator, error) {
	step := t.CurrentStep()
	if step == nil {
		return core.Locator{}, core.ErrMissingParameter.WithMessage(fmt.Sprintf("missing parameter %q", name))
	}
	loc, err := step.Locator(name)
	if err != nil {
		return core.Locator{}, err
	}
	loc.Value = t.vars.Expand(loc.Value)
	return loc, nil
}

// Print writes text to Stdout unless prints are silenced.
func (t *TestRun) Print(text string) {
	if t.SilencePrints || t.Stdout == nil {
		return
	}
	fmt.Fprintln(t.Stdout, text)
}

// HasNext reports whether another step remains.
func (t *TestRun) HasNext() bool {
	return t.Script != nil && t.stepIndex+1 < len(t.Script.Steps)
}

// Start opens a session, or takes over the predecessor's session when
// InheritFrom is set. On failure the run stays NotStarted.
func (t *TestRun) Start(ctx context.Context) core.StepResult {
	log := logger.WithRun(t.name, t.ID)
	if t.state != core.StateNotStarted {
		return core.Failed(fmt.Errorf("run %s already started", t.name))
	}

	sess, err := t.acquireSession(ctx)
	if err != nil {
		res := core.Failed(core.ErrSessionInit.WithCause(err))
		t.success = false
		t.lastError = res.Error
		log.Errorf("session start failed: %v", err)
		t.notify(func(l Listener) { l.StartTestRun(t, res) })
		return res
	}

	t.mu.Lock()
	t.session = sess
	t.mu.Unlock()

	if t.ImplicitWait > 0 {
		if err := sess.SetImplicitWait(ctx, t.ImplicitWait); err != nil {
			log.Warnf("implicit wait not applied: %v", err)
		}
	}

	t.state = core.StateRunning
	log.Infof("started with session %s", sess.ID())
	res := core.Passed()
	t.notify(func(l Listener) { l.StartTestRun(t, res) })
	return res
}

func (t *TestRun) acquireSession(ctx context.Context) (core.Session, error) {
	if prev := t.InheritFrom; prev != nil {
		sess := prev.handOff()
		if sess == nil {
			return nil, core.ErrNoSession.WithMessage(fmt.Sprintf("no session to inherit from %s", prev.name))
		}
		t.vars = prev.vars.Clone()
		for k, v := range t.initialVars {
			t.vars.Set(k, v)
		}
		return sess, nil
	}

	if t.Driver == nil {
		return nil, errors.New("no driver configured")
	}
	browser := make(map[string]interface{}, len(t.BrowserOptions)+1)
	for k, v := range t.BrowserOptions {
		browser[k] = v
	}
	if _, ok := browser[core.NameCapability]; !ok {
		browser[core.NameCapability] = t.name
	}
	return t.Driver.NewSession(ctx, core.SessionOptions{
		Name:    t.name,
		Browser: browser,
		Driver:  t.DriverOptions,
	})
}

// handOff transfers the retained session to the caller.
func (t *TestRun) handOff() core.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess := t.session
	t.session = nil
	return sess
}

// Next executes the next step.
func (t *TestRun) Next(ctx context.Context) core.StepResult {
	if !t.HasNext() {
		return core.Failed(fmt.Errorf("run %s has no more steps", t.name))
	}
	t.stepIndex++
	step := t.CurrentStep()
	t.notify(func(l Listener) { l.StartStep(t, step) })

	res := t.execute(ctx, step)

	t.success = t.success && res.Success
	if res.Error != nil {
		t.lastError = res.Error
	}
	logger.WithRun(t.name, t.ID).Debugf("step #%d %s: success=%v %s", t.stepIndex+1, step.Type, res.Success, res.ErrorString())
	t.notify(func(l Listener) { l.EndStep(t, step, res) })
	return res
}

// execute resolves and runs a step, converting panics into failures.
func (t *TestRun) execute(ctx context.Context, step *script.Step) (res core.StepResult) {
	defer func() {
		if r := recover(); r != nil {
			res = core.Failed(fmt.Errorf("step %s panicked: %v", step.Type, r))
		}
	}()

	p, name := SplitPrefix(step.Type)
	exec, err := t.registry().Resolve(name)
	if err != nil {
		return core.Failed(err)
	}
	if p == "" {
		return exec.Run(ctx, t)
	}
	return t.runPrefixed(ctx, p, name, exec)
}

func (t *TestRun) registry() *steps.Registry {
	if t.Registry == nil {
		t.Registry = steps.NewRegistry()
	}
	return t.Registry
}

// End tears the session down, unless KeepSession retains it for the next
// run, and reports the run outcome. A teardown failure is attached as
// AdditionalError when a step error is already present.
func (t *TestRun) End(ctx context.Context) core.StepResult {
	if t.state == core.StateEnded {
		return t.endResult
	}
	log := logger.WithRun(t.name, t.ID)
	started := t.state == core.StateRunning

	var teardownErr error
	if started && !t.KeepSession {
		if err := t.quit(context.WithoutCancel(ctx)); err != nil {
			teardownErr = core.ErrSessionTeardown.WithCause(err)
			log.Errorf("session teardown failed: %v", err)
		}
	}

	res := core.StepResult{Success: started && t.success && teardownErr == nil}
	switch {
	case t.lastError != nil:
		res.Error = t.lastError
		res.AdditionalError = teardownErr
	case teardownErr != nil:
		res.Error = teardownErr
	case !started:
		res.Error = core.ErrNoSession
	}

	t.state = core.StateEnded
	t.endResult = res
	log.Infof("ended: success=%v %s", res.Success, res.ErrorString())
	t.notify(func(l Listener) { l.EndTestRun(t, res) })
	return res
}

func (t *TestRun) quit(ctx context.Context) error {
	sess := t.handOff()
	if sess == nil {
		return nil
	}
	return sess.Quit(ctx)
}

// Release quits a session still retained by the run, such as one left for
// a successor that never started.
func (t *TestRun) Release(ctx context.Context) error {
	return t.quit(ctx)
}

// Run drives Start, every step and End. End is always attempted, also
// after a failed start or a panic. onStep, if set, sees every step result.
func (t *TestRun) Run(ctx context.Context, onStep func(core.StepResult)) (res core.StepResult) {
	defer func() {
		if r := recover(); r != nil {
			t.success = false
			t.lastError = fmt.Errorf("run %s panicked: %v", t.name, r)
			res = t.End(ctx)
		}
	}()

	if start := t.Start(ctx); !start.Success {
		return t.End(ctx)
	}

	for t.HasNext() {
		step := t.Next(ctx)
		if onStep != nil {
			onStep(step)
		}
		if step.Error != nil || (!step.Success && t.VerifyPolicy == VerifyAbort) {
			break
		}
		if err := ctx.Err(); err != nil {
			t.success = false
			t.lastError = err
			break
		}
	}
	return t.End(ctx)
}

// Reset quits any session and restores the initial variables so the run can
// be executed again.
func (t *TestRun) Reset(ctx context.Context) {
	if err := t.quit(ctx); err != nil {
		logger.WithRun(t.name, t.ID).Warnf("reset: session teardown failed: %v", err)
	}
	t.vars = vars.NewStore(t.initialVars)
	t.stepIndex = -1
	t.success = true
	t.lastError = nil
	t.state = core.StateNotStarted
	t.endResult = core.StepResult{}
}

func (t *TestRun) notify(fn func(Listener)) {
	if t.Listener != nil {
		fn(t.Listener)
	}
}

// waitBudget is the script's timeoutSeconds, else WaitTimeout.
func (t *TestRun) waitBudget() time.Duration {
	if t.Script != nil && t.Script.TimeoutSeconds > 0 {
		return time.Duration(t.Script.TimeoutSeconds) * time.Second
	}
	if t.WaitTimeout > 0 {
		return t.WaitTimeout
	}
	return DefaultWaitTimeout
}
