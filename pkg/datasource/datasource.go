// Package datasource loads the data rows that parameterize a script. Each
// row seeds the variables of one test run.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

// Row maps variable names to values.
type Row map[string]string

// Source produces rows from its settings block.
type Source interface {
	Name() string
	Load(cfg map[string]interface{}, scriptPath string) ([]Row, error)
}

// EnvFunc looks up an environment variable. A nil EnvFunc reads the process
// environment.
type EnvFunc func(string) (string, bool)

// Registry resolves sources by name, custom sources ahead of built-ins.
type Registry struct {
	sources []Source
}

// NewRegistry creates a registry consulting custom before the built-ins.
// The file sources substitute ${VAR} through env.
func NewRegistry(env EnvFunc, custom ...Source) *Registry {
	r := &Registry{}
	for _, s := range custom {
		if s != nil {
			r.sources = append(r.sources, s)
		}
	}
	r.sources = append(r.sources, None{}, Manual{}, JSON{Env: env}, XML{Env: env}, YAML{Env: env})
	return r
}

// Lookup returns the first source with the given name.
func (r *Registry) Lookup(name string) (Source, error) {
	for _, s := range r.sources {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, core.ErrUnknownDataSource.WithMessage(fmt.Sprintf("no data source of name %q available", name))
}

// Load returns the rows for a script's data config. A script without data
// config yields a single empty row.
func (r *Registry) Load(dc *script.DataConfig, scriptPath string) ([]Row, error) {
	if dc == nil {
		return []Row{{}}, nil
	}
	src, err := r.Lookup(dc.Source)
	if err != nil {
		return nil, err
	}
	rows, err := src.Load(dc.SourceConfig(), scriptPath)
	if err != nil {
		return nil, core.ErrLoad.WithMessage(fmt.Sprintf("data source %s", dc.Source)).WithCause(err)
	}
	return rows, nil
}

// None yields a single empty row.
type None struct{}

// Name returns "none".
func (None) Name() string { return "none" }

// Load returns one empty row.
func (None) Load(map[string]interface{}, string) ([]Row, error) {
	return []Row{{}}, nil
}

// Manual uses its settings block as the only row.
type Manual struct{}

// Name returns "manual".
func (Manual) Name() string { return "manual" }

// Load returns cfg as a row.
func (Manual) Load(cfg map[string]interface{}, _ string) ([]Row, error) {
	return []Row{toRow(cfg)}, nil
}

func toRow(m map[string]interface{}) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = script.Stringify(v)
	}
	return row
}

// ResolvePath resolves a data file path. A relative path is taken from the
// script's directory when the file exists there, else from the working
// directory.
func ResolvePath(path, scriptPath string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if scriptPath != "" {
		rel := filepath.Join(filepath.Dir(scriptPath), path)
		if _, err := os.Stat(rel); err == nil {
			return rel
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// readConfigFile reads the file named by the "path" setting.
func readConfigFile(cfg map[string]interface{}, scriptPath string) ([]byte, string, error) {
	p, ok := cfg["path"]
	if !ok || script.Stringify(p) == "" {
		return nil, "", fmt.Errorf("missing \"path\" setting")
	}
	path := ResolvePath(script.Stringify(p), scriptPath)
	data, err := os.ReadFile(path) //#nosec G304 -- data file named by the script
	if err != nil {
		return nil, path, fmt.Errorf("failed to read data file: %w", err)
	}
	return data, path, nil
}
