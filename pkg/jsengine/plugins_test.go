package jsengine

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/datasource"
	"github.com/devicelab-dev/se-interpreter/pkg/driver/mock"
	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
	"github.com/devicelab-dev/se-interpreter/pkg/steps"
)

const factorySource = `
exports.get = function(stepType) {
  switch (stepType) {
  case "meow":
    return {run: function(tr, cb) { tr.print("meow from " + tr.name); cb({success: true}); }};
  case "Shout":
    return {cmp: "word", run: function(tr, cb) { cb({value: tr.p("word").toUpperCase()}); }};
  case "PageTitle":
    return {cmp: "title", name: "page title", run: function(tr, cb) {
      tr.do("title", [], cb, function(err, title) { cb({value: title}); });
    }};
  case "later":
    return {run: function(tr, cb) { setTimeout(function() { tr.setVar("later", "done"); cb({success: true}); }, 10); }};
  case "clickIt":
    return {run: function(tr, cb) {
      tr.locate("locator", cb, function(err, el) { tr.do("click", [el], cb); });
    }};
  case "explode":
    return {run: function(tr, cb) { throw new Error("kaboom"); }};
  case "fail":
    return {run: function(tr, cb) { cb({success: false, error: "nope"}); }};
  }
  return null;
};`

var buttonLoc = core.Locator{Type: core.ByID, Value: "btn"}

func newPluginRun(t *testing.T, factory *Factory, stepList ...*script.Step) (*interpreter.TestRun, *mock.Driver, *bytes.Buffer) {
	t.Helper()
	drv := mock.New(mock.Config{Page: mock.Page{
		Title:    "Mock Page",
		Elements: map[core.Locator]*mock.Element{buttonLoc: {ID: "el-btn"}},
	}})
	var out bytes.Buffer
	run := interpreter.New(&script.Script{Name: "plugin", Steps: stepList}, "plugin", nil)
	run.Driver = drv
	run.Stdout = &out
	run.Registry = steps.NewRegistry(factory)
	return run, drv, &out
}

func loadFactory(t *testing.T, src string) (*Factory, *Engine) {
	t.Helper()
	engine := New(nil)
	t.Cleanup(engine.Close)
	m, err := engine.LoadModule(writeModule(t, src))
	if err != nil {
		t.Fatal(err)
	}
	f, err := NewFactory(m)
	if err != nil {
		t.Fatal(err)
	}
	return f, engine
}

func TestFactoryEndToEnd(t *testing.T) {
	factory, _ := loadFactory(t, factorySource)
	run, drv, out := newPluginRun(t, factory,
		script.NewStep("meow", nil),
		script.NewStep("assertShout", map[string]interface{}{"word": "HI", "text": "hi"}),
		script.NewStep("assertPageTitle", map[string]interface{}{"title": "Mock Page"}),
		script.NewStep("later", nil),
		script.NewStep("clickIt", map[string]interface{}{"locator": map[string]interface{}{"type": "id", "value": "btn"}}),
		script.NewStep("get", map[string]interface{}{"url": "http://builtin/"}),
	)

	var results []core.StepResult
	res := run.Run(context.Background(), func(r core.StepResult) { results = append(results, r) })
	if !res.Success {
		t.Fatalf("run failed: %v (steps %+v)", res.Error, results)
	}
	if got := out.String(); got != "meow from plugin\n" {
		t.Errorf("printed %q", got)
	}
	if v, _ := run.Var("later"); v != "done" {
		t.Errorf("later = %q, want the async executor to complete", v)
	}
	sess := drv.Sessions()[0]
	if clicks := sess.Page().Elements[buttonLoc].Clicks; clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
	if url := sess.Page().URL; url != "http://builtin/" {
		t.Errorf("url = %q, want builtin get to still resolve", url)
	}
}

func TestFactoryExecutorMetadata(t *testing.T) {
	factory, _ := loadFactory(t, factorySource)

	if factory.Get("unknown") != nil {
		t.Error("Get(unknown) should be nil")
	}
	title := factory.Get("PageTitle")
	if steps.CmpOf(title) != "title" || steps.NameOf(title, "") != "page title" {
		t.Errorf("cmp = %q, name = %q", steps.CmpOf(title), steps.NameOf(title, ""))
	}
	if got := steps.NameOf(factory.Get("meow"), ""); got != "meow" {
		t.Errorf("default name = %q, want the step type", got)
	}
}

func TestFactoryFailures(t *testing.T) {
	factory, _ := loadFactory(t, factorySource)
	tests := []struct {
		step string
		want string
	}{
		{"explode", "kaboom"},
		{"fail", "nope"},
		{"assertShout", `missing parameter "word"`},
		{"clickIt", `missing parameter "locator"`},
	}
	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			run, _, _ := newPluginRun(t, factory, script.NewStep(tt.step, map[string]interface{}{"text": "x"}))
			res := run.Run(context.Background(), nil)
			if res.Success || res.Error == nil || !bytes.Contains([]byte(res.Error.Error()), []byte(tt.want)) {
				t.Errorf("result = %+v, want failure containing %q", res, tt.want)
			}
		})
	}
}

func TestFactoryCommandErrorPassesGoError(t *testing.T) {
	factory, _ := loadFactory(t, factorySource)
	run, drv, _ := newPluginRun(t, factory, script.NewStep("assertPageTitle", map[string]interface{}{"title": "x"}))
	boom := errors.New("driver exploded")
	run.Listener = failFirst{drv: drv, err: boom}

	res := run.Run(context.Background(), nil)
	if !errors.Is(res.Error, boom) {
		t.Errorf("error = %v, want the driver error", res.Error)
	}
}

// failFirst injects a title failure once the session exists.
type failFirst struct {
	interpreter.NopListener
	drv *mock.Driver
	err error
}

func (f failFirst) StartStep(*interpreter.TestRun, *script.Step) {
	f.drv.Sessions()[0].Fail("title", f.err)
}

func TestFactoryExecutorHonoursContext(t *testing.T) {
	factory, _ := loadFactory(t, `exports.get = function() { return {run: function(tr, cb) {}}; };`)
	exec := factory.Get("hang")
	run, _, _ := newPluginRun(t, factory)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if res := exec.Run(ctx, run); !errors.Is(res.Error, context.Canceled) {
		t.Errorf("result = %+v, want context cancellation", res)
	}
}

func TestNewFactoryRequiresGet(t *testing.T) {
	engine := New(nil)
	defer engine.Close()
	m, err := engine.LoadModule(writeModule(t, `exports.other = 1;`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewFactory(m); !errors.Is(err, core.ErrPluginLoad) {
		t.Errorf("error = %v, want ErrPluginLoad", err)
	}
	if _, err := NewListener(m, nil); !errors.Is(err, core.ErrPluginLoad) {
		t.Errorf("listener error = %v, want ErrPluginLoad", err)
	}
	if _, err := NewDataSource(m); !errors.Is(err, core.ErrPluginLoad) {
		t.Errorf("data source error = %v, want ErrPluginLoad", err)
	}
}

func TestListener(t *testing.T) {
	engine := New(nil)
	defer engine.Close()
	m, err := engine.LoadModule(writeModule(t, `
globalThis.events = [];
exports.getInterpreterListener = function(tr, options) {
  events.push("create " + tr.name + " " + options.tag);
  return {
    startTestRun: function(tr, info) { events.push("start " + info.success + " " + tr.browserOptions.browserName); },
    endStep: function(tr, step, info) { events.push("step " + step.type + " " + info.success); },
    endTestRun: function(tr, info) { events.push("end " + info.success + (info.error ? " " + info.error.message : "")); }
  };
};
exports.endAllRuns = function(total, successes) { events.push("all " + successes + "/" + total); };`))
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewListener(m, map[string]interface{}{"tag": "ci"})
	if err != nil {
		t.Fatal(err)
	}

	run := interpreter.New(&script.Script{Name: "r", Steps: []*script.Step{
		script.NewStep("get", map[string]interface{}{"url": "http://x/"}),
		script.NewStep("assertTitle", map[string]interface{}{"title": "nope"}),
	}}, "r", nil)
	run.Driver = mock.New(mock.Config{})
	run.Listener = l
	run.Run(context.Background(), nil)
	l.EndAllRuns(1, 0)

	got, err := engine.Eval(`events.join("|")`)
	if err != nil {
		t.Fatal(err)
	}
	want := "create r ci|start true firefox|step get true|step assertTitle false|end false title does not match|all 0/1"
	if got != want {
		t.Errorf("events = %q\nwant     %q", got, want)
	}
}

func TestDataSource(t *testing.T) {
	engine := New(nil)
	defer engine.Close()
	m, err := engine.LoadModule(writeModule(t, `
exports.name = "gen";
exports.load = function(cfg, scriptPath) {
  var rows = [];
  for (var i = 0; i < cfg.count; i++) rows.push({n: i, from: scriptPath});
  return rows;
};`))
	if err != nil {
		t.Fatal(err)
	}
	ds, err := NewDataSource(m)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Name() != "gen" {
		t.Errorf("Name() = %q", ds.Name())
	}

	rows, err := datasource.NewRegistry(nil, ds).Load(&script.DataConfig{
		Source:  "gen",
		Configs: map[string]map[string]interface{}{"gen": {"count": 2}},
	}, "x.json")
	if err != nil {
		t.Fatal(err)
	}
	want := []datasource.Row{{"n": "0", "from": "x.json"}, {"n": "1", "from": "x.json"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDataSourceBadResult(t *testing.T) {
	engine := New(nil)
	defer engine.Close()
	m, err := engine.LoadModule(writeModule(t, `exports.name = "bad"; exports.load = function() { return [1]; };`))
	if err != nil {
		t.Fatal(err)
	}
	ds, err := NewDataSource(m)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ds.Load(nil, ""); err == nil {
		t.Error("expected error for non-object row")
	}
}
