package jsengine

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
)

func writeModule(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.js")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEval(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"json helper", "json('{\"a\": [1, 2]}').a.length", int64(2)},
		{"arrow function", "[1, 2, 3].map(x => x * 2).join(',')", "2,4,6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestEvalError(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	if _, err := engine.Eval("undefinedFunction()"); err == nil {
		t.Error("expected error for undefined function")
	}
}

func TestConsoleLog(t *testing.T) {
	var out bytes.Buffer
	engine := New(&out)
	defer engine.Close()

	if _, err := engine.Eval(`console.log("hello", 42); console.warn("careful")`); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "hello 42\nWARN: careful\n"; got != want {
		t.Errorf("console output = %q, want %q", got, want)
	}
}

func TestSetTimeout(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	if _, err := engine.Eval(`var flag = false; setTimeout(function(v) { flag = v; }, 20, "fired");`); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	result, err := engine.Eval("flag")
	if err != nil {
		t.Fatal(err)
	}
	if result != "fired" {
		t.Errorf("expected flag to be set by setTimeout, got %v", result)
	}
}

func TestClearTimeout(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	if _, err := engine.Eval(`var flag = false; var id = setTimeout(function() { flag = true; }, 20); clearTimeout(id);`); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)

	if result, _ := engine.Eval("flag"); result != false {
		t.Errorf("expected cleared timeout not to fire, got %v", result)
	}
}

func TestLoadModule(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	tests := []struct {
		name string
		src  string
	}{
		{"exports", `exports.answer = 42;`},
		{"module.exports", `module.exports = {answer: 42};`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := engine.LoadModule(writeModule(t, tt.src))
			if err != nil {
				t.Fatalf("LoadModule() error = %v", err)
			}
			if got := m.exports.Get("answer").ToInteger(); got != 42 {
				t.Errorf("answer = %d, want 42", got)
			}
			if !filepath.IsAbs(m.Path()) {
				t.Errorf("Path() = %q, want absolute", m.Path())
			}
		})
	}
}

func TestLoadModuleErrors(t *testing.T) {
	engine := New(nil)
	defer engine.Close()

	tests := []struct {
		name string
		src  string
	}{
		{"syntax error", `exports.broken = function( {`},
		{"throws", `throw new Error("boom");`},
		{"null exports", `module.exports = null;`},
		{"unknown require", `var fs = require("fs");`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.LoadModule(writeModule(t, tt.src))
			if !errors.Is(err, core.ErrPluginLoad) {
				t.Errorf("error = %v, want ErrPluginLoad", err)
			}
		})
	}

	if _, err := engine.LoadModule(filepath.Join(t.TempDir(), "missing.js")); !errors.Is(err, core.ErrPluginLoad) {
		t.Errorf("missing file error = %v, want ErrPluginLoad", err)
	}
}

func TestRequireHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.Header().Set("X-Test", "yes")
		w.Write([]byte(`[{"user": "alice"}, {"user": "bob"}]`))
	}))
	defer srv.Close()

	engine := New(nil)
	defer engine.Close()
	m, err := engine.LoadModule(writeModule(t, `
var http = require("http");
exports.fetch = function(url) {
  var res = http.get(url, {headers: {"Accept": "application/json"}});
  var created = http.request("post", url, {body: {a: 1}});
  return [res.status, res.ok, res.headers["X-Test"], res.json.length, res.json[1].user, created.status].join(",");
};`))
	if err != nil {
		t.Fatal(err)
	}

	fetch, _ := m.function(m.exports, "fetch")
	engine.mu.Lock()
	v, err := fetch(m.exports, engine.runtime.ToValue(srv.URL))
	engine.mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v.String(), "200,true,yes,2,bob,201"; got != want {
		t.Errorf("fetch() = %q, want %q", got, want)
	}
}

func TestHTTPRequestFailureThrows(t *testing.T) {
	engine := New(nil)
	defer engine.Close()
	m, err := engine.LoadModule(writeModule(t, `
exports.fetch = function() {
  try {
    require("http").get("http://127.0.0.1:1/", {timeout: 200});
    return "no error";
  } catch (e) {
    return e.message.indexOf("HTTP request failed") >= 0 ? "thrown" : e.message;
  }
};`))
	if err != nil {
		t.Fatal(err)
	}
	fetch, _ := m.function(m.exports, "fetch")
	engine.mu.Lock()
	v, err := fetch(m.exports)
	engine.mu.Unlock()
	if err != nil || !strings.Contains(v.String(), "thrown") {
		t.Errorf("fetch() = %v, %v; want a catchable error", v, err)
	}
}
