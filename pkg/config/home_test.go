package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Setenv("SE_INTERPRETER_HOME", "/custom/path")

	got := GetHome()
	if got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_FallbackNotEmpty(t *testing.T) {
	ResetHome()
	t.Setenv("SE_INTERPRETER_HOME", "")

	if got := GetHome(); got == "" {
		t.Error("GetHome() returned empty string")
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Setenv("SE_INTERPRETER_HOME", "/first")

	first := GetHome()

	// Changing the env must not affect the cached value
	t.Setenv("SE_INTERPRETER_HOME", "/second")
	second := GetHome()

	if first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}

func TestGetPluginsDir(t *testing.T) {
	ResetHome()
	t.Setenv("SE_INTERPRETER_HOME", "/test/home")

	got := GetPluginsDir()
	want := filepath.Join("/test/home", "plugins")
	if got != want {
		t.Errorf("GetPluginsDir() = %q, want %q", got, want)
	}
}

func TestResolvePlugin(t *testing.T) {
	home := t.TempDir()
	ResetHome()
	t.Setenv("SE_INTERPRETER_HOME", home)
	t.Cleanup(ResetHome)

	pluginsDir := filepath.Join(home, "plugins")
	if err := os.MkdirAll(pluginsDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(pluginsDir, "junit.js"), "exports.getInterpreterListener = function () {};")

	local := filepath.Join(t.TempDir(), "local.js")
	writeFile(t, local, "")

	tests := []struct {
		in   string
		want string
	}{
		{local, local},
		{"junit.js", filepath.Join(pluginsDir, "junit.js")},
		{"missing.js", "missing.js"},
		{"/abs/missing.js", "/abs/missing.js"},
	}
	for _, tt := range tests {
		if got := ResolvePlugin(tt.in); got != tt.want {
			t.Errorf("ResolvePlugin(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
