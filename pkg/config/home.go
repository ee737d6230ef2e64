package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "SE_INTERPRETER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the se-interpreter home directory.
//
// Resolution order:
//  1. $SE_INTERPRETER_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetPluginsDir returns <home>/plugins, where listener, executor factory
// and data source modules given by bare file name are looked up.
func GetPluginsDir() string {
	return filepath.Join(GetHome(), "plugins")
}

// ResolvePlugin returns path unchanged when it exists, and otherwise the
// same name inside the plugins directory if that exists.
func ResolvePlugin(path string) string {
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path
	}
	candidate := filepath.Join(GetPluginsDir(), path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. Binary-relative: if binary is at <home>/bin/se-interpreter, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
