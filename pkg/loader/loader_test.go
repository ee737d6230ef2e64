package loader

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/driver/mock"
	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
)

const simpleScript = `{
  "type": "script",
  "seleniumVersion": "2",
  "steps": [
    {"type": "get", "url": "http://example.com/"}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runNames(runs []*interpreter.TestRun) []string {
	names := make([]string, len(runs))
	for i, r := range runs {
		names[i] = r.Name()
	}
	return names
}

func TestLoadScriptSingleRow(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.json", simpleScript)

	runs, err := New(Options{}).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if diff := cmp.Diff([]string{"login"}, runNames(runs)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if runs[0].Script.Len() != 1 {
		t.Errorf("steps = %d, want 1", runs[0].Script.Len())
	}
	if diff := cmp.Diff(interpreter.DefaultBrowserOptions(), runs[0].BrowserOptions); diff != "" {
		t.Errorf("browser options mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadScriptDataRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.json", `[{"user": "alice"}, {"user": "bob"}, {"user": "carol"}]`)
	path := writeFile(t, dir, "login.json", `{
  "type": "script",
  "steps": [{"type": "print", "text": "${user}"}],
  "data": {"source": "json", "configs": {"json": {"path": "users.json"}}}
}`)

	runs, err := New(Options{}).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	want := []string{"login, row 1", "login, row 2", "login, row 3"}
	if diff := cmp.Diff(want, runNames(runs)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	for i, user := range []string{"alice", "bob", "carol"} {
		if got, _ := runs[i].Var("user"); got != user {
			t.Errorf("run %d user = %q, want %q", i, got, user)
		}
		if runs[i].Script != runs[0].Script {
			t.Errorf("run %d does not share the parsed script", i)
		}
	}
}

func TestLoadAppliesOptions(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.json", simpleScript)
	drv := mock.New(mock.Config{})
	var out bytes.Buffer
	browser := map[string]interface{}{"browserName": "chrome"}

	l := New(Options{
		BrowserOptions: browser,
		DriverOptions:  map[string]interface{}{"host": "grid"},
		Driver:         drv,
		Listener:       interpreter.NopListener{},
		SilencePrints:  true,
		Stdout:         &out,
		VerifyPolicy:   interpreter.VerifyAbort,
	})
	runs, err := l.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	run := runs[0]
	if run.Driver != drv || run.Registry != l.Registry() || run.Stdout != &out {
		t.Error("driver, registry or stdout not applied")
	}
	if !run.SilencePrints || run.VerifyPolicy != interpreter.VerifyAbort {
		t.Error("print or verify options not applied")
	}
	if run.BrowserOptions["browserName"] != "chrome" || run.DriverOptions["host"] != "grid" {
		t.Errorf("options = %v / %v", run.BrowserOptions, run.DriverOptions)
	}
	run.BrowserOptions["browserName"] = "edge"
	if browser["browserName"] != "chrome" {
		t.Error("run options alias the loader options")
	}
}

func TestLoadSubstitutesEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "env.json", `{
  "type": "script",
  "steps": [{"type": "get", "url": "${BASE_URL}/login"}, {"type": "get", "url": "${UNSET}"}]
}`)
	env := func(name string) (string, bool) {
		if name == "BASE_URL" {
			return "http://staging", true
		}
		return "", false
	}

	runs, err := New(Options{Env: env}).LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	steps := runs[0].Script.Steps
	if got, _ := steps[0].Text("url"); got != "http://staging/login" {
		t.Errorf("url = %q", got)
	}
	if got, _ := steps[1].Text("url"); got != "${UNSET}" {
		t.Errorf("unset variable = %q, want it left verbatim", got)
	}
}

func TestLoadDataRowsSubstituteEnvironment(t *testing.T) {
	env := func(name string) (string, bool) {
		if name == "SE_LOADER_ONLY_IN_CONFIG" {
			return "from-config", true
		}
		return "", false
	}
	tests := []struct {
		source string
		file   string
		data   string
	}{
		{"json", "users.json", `[{"user": "${SE_LOADER_ONLY_IN_CONFIG}"}]`},
		{"xml", "users.xml", `<testdata><test user="${SE_LOADER_ONLY_IN_CONFIG}"/></testdata>`},
		{"yaml", "users.yaml", "- user: ${SE_LOADER_ONLY_IN_CONFIG}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.data)
			path := writeFile(t, dir, "login.json", `{
  "type": "script",
  "steps": [{"type": "print", "text": "${user}"}],
  "data": {"source": "`+tt.source+`", "configs": {"`+tt.source+`": {"path": "`+tt.file+`"}}}
}`)

			runs, err := New(Options{Env: env}).LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if len(runs) != 1 {
				t.Fatalf("runs = %d, want 1", len(runs))
			}
			if got, _ := runs[0].Var("user"); got != "from-config" {
				t.Errorf("user = %q, want from-config", got)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"no type", `{"steps": []}`, core.ErrUnknownFileType},
		{"unknown type", `{"type": "recipe"}`, core.ErrUnknownFileType},
		{"not an object", `[1, 2]`, core.ErrUnknownFileType},
		{"bad json", `{"type": `, core.ErrLoad},
		{"step without type", `{"type": "script", "steps": [{"url": "x"}]}`, core.ErrLoad},
		{"suite without scripts", `{"type": "suite"}`, core.ErrLoad},
		{"unknown data source", `{"type": "script", "steps": [], "data": {"source": "csv"}}`, core.ErrUnknownDataSource},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, filepath.Join("case", string(rune('a'+i))+".json"), tt.content)
			_, err := New(Options{}).LoadFile(path)
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadFile() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := New(Options{}).LoadFile(filepath.Join(dir, "missing.json")); !errors.Is(err, core.ErrLoad) {
		t.Errorf("missing file error = %v, want ErrLoad", err)
	}
}

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scripts/login.json", simpleScript)
	writeFile(t, dir, "scripts/logout.json", simpleScript)
	path := writeFile(t, dir, "suite.json", `{
  "type": "suite",
  "scripts": [
    {"where": "local", "path": "scripts/login.json"},
    {"where": "remote", "path": "http://example.com/x.json"},
    {"where": "local", "path": "scripts/logout.json"}
  ]
}`)

	runs, err := New(Options{}).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if diff := cmp.Diff([]string{"login", "logout"}, runNames(runs)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	for _, r := range runs {
		if r.KeepSession || r.InheritFrom != nil {
			t.Errorf("%s is chained without shareState", r.Name())
		}
	}
}

func TestLoadSuiteShareState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", simpleScript)
	writeFile(t, dir, "b.json", simpleScript)
	writeFile(t, dir, "c.json", simpleScript)
	path := writeFile(t, dir, "suite.json", `{
  "type": "suite",
  "shareState": true,
  "scripts": [
    {"where": "local", "path": "a.json"},
    {"where": "local", "path": "b.json"},
    {"where": "local", "path": "c.json"}
  ]
}`)

	runs, err := New(Options{}).LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}
	for i, r := range runs {
		if wantKeep := i < 2; r.KeepSession != wantKeep {
			t.Errorf("run %d KeepSession = %v, want %v", i, r.KeepSession, wantKeep)
		}
		var wantFrom *interpreter.TestRun
		if i > 0 {
			wantFrom = runs[i-1]
		}
		if r.InheritFrom != wantFrom {
			t.Errorf("run %d inherits from the wrong run", i)
		}
	}
}

func TestLoadSuiteRejectsNestedSuite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inner.json", `{"type": "suite", "scripts": []}`)
	path := writeFile(t, dir, "outer.json", `{"type": "suite", "scripts": [{"where": "local", "path": "inner.json"}]}`)

	if _, err := New(Options{}).LoadFile(path); !errors.Is(err, core.ErrLoad) {
		t.Errorf("error = %v, want ErrLoad", err)
	}
}

func TestChainRunsSingle(t *testing.T) {
	run := interpreter.New(nil, "solo", nil)
	ChainRuns([]*interpreter.TestRun{run})
	if run.KeepSession || run.InheritFrom != nil {
		t.Error("a single run must not be chained")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tests/a.json", simpleScript)
	writeFile(t, dir, "tests/b.json", simpleScript)
	writeFile(t, dir, "tests/notes.txt", "not a script")
	pattern := filepath.ToSlash(filepath.Join(dir, "tests", "*"))
	path := writeFile(t, dir, "config.json", `{
  "type": "interpreter-config",
  "configurations": [
    {
      "settings": [
        {"browserOptions": {"browserName": "firefox"}},
        {"browserOptions": {"browserName": "chrome"}, "driverOptions": {"host": "grid"}}
      ],
      "scripts": ["`+pattern+`"]
    },
    {"scripts": ["`+filepath.ToSlash(filepath.Join(dir, "tests", "a.json"))+`"]}
  ]
}`)

	l := New(Options{BrowserOptions: map[string]interface{}{"browserName": "safari"}})
	runs, err := l.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	type summary struct {
		Name    string
		Browser interface{}
		Host    interface{}
	}
	got := make([]summary, len(runs))
	for i, r := range runs {
		got[i] = summary{r.Name(), r.BrowserOptions["browserName"], r.DriverOptions["host"]}
	}
	want := []summary{
		{"a", "firefox", nil},
		{"b", "firefox", nil},
		{"a", "chrome", "grid"},
		{"b", "chrome", "grid"},
		{"a", "safari", nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config runs mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x/one.json", simpleScript)
	writeFile(t, dir, "x/deep/two.json", simpleScript)

	runs, err := New(Options{}).LoadPaths([]string{
		filepath.ToSlash(filepath.Join(dir, "x", "**", "*.json")),
		filepath.ToSlash(filepath.Join(dir, "nothing", "*.json")),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %v, want two scripts", runNames(runs))
	}

	if _, err := New(Options{}).LoadPaths([]string{"[unclosed"}); !errors.Is(err, core.ErrLoad) {
		t.Errorf("bad pattern error = %v, want ErrLoad", err)
	}
}
