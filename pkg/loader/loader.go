// Package loader turns script, suite and configuration files into an
// ordered list of test runs.
package loader

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/datasource"
	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
	"github.com/devicelab-dev/se-interpreter/pkg/logger"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
	"github.com/devicelab-dev/se-interpreter/pkg/steps"
	"github.com/devicelab-dev/se-interpreter/pkg/vars"
)

// File types.
const (
	TypeScript = "script"
	TypeSuite  = "suite"
	TypeConfig = "interpreter-config"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var schemas = map[string]*jsonschema.Schema{
	TypeScript: mustCompile("schemas/script.schema.json"),
	TypeSuite:  mustCompile("schemas/suite.schema.json"),
	TypeConfig: mustCompile("schemas/config.schema.json"),
}

func mustCompile(path string) *jsonschema.Schema {
	src, err := schemaFS.ReadFile(path)
	if err != nil {
		panic(err)
	}
	return jsonschema.MustCompileString(path, string(src))
}

// Options are applied to every loaded run.
type Options struct {
	// BrowserOptions and DriverOptions are inherited by scripts not loaded
	// through a configuration file. Nil browser options mean the defaults.
	BrowserOptions map[string]interface{}
	DriverOptions  map[string]interface{}

	Driver            core.Driver
	Listener          interpreter.Listener
	ExecutorFactories []steps.Factory
	DataSources       *datasource.Registry

	SilencePrints bool
	Stdout        io.Writer

	PollInterval time.Duration
	WaitTimeout  time.Duration
	ImplicitWait time.Duration
	VerifyPolicy interpreter.VerifyPolicy

	// Env looks up environment variables for ${VAR} substitution in
	// loaded files. Nil uses the process environment.
	Env func(string) (string, bool)
}

// Settings pairs browser and driver options.
type Settings struct {
	BrowserOptions map[string]interface{} `json:"browserOptions"`
	DriverOptions  map[string]interface{} `json:"driverOptions"`
}

// Loader loads files into runs.
type Loader struct {
	opts     Options
	registry *steps.Registry
}

// New creates a loader.
func New(opts Options) *Loader {
	if opts.DataSources == nil {
		opts.DataSources = datasource.NewRegistry(opts.Env)
	}
	return &Loader{
		opts:     opts,
		registry: steps.NewRegistry(opts.ExecutorFactories...),
	}
}

// Registry returns the step registry shared by the loaded runs.
func (l *Loader) Registry() *steps.Registry {
	return l.registry
}

// LoadPaths expands each pattern and loads every matching .json file, in
// pattern order.
func (l *Loader) LoadPaths(patterns []string) ([]*interpreter.TestRun, error) {
	return l.loadPatterns(patterns, l.defaultSettings())
}

// LoadFile loads one script, suite or configuration file.
func (l *Loader) LoadFile(path string) ([]*interpreter.TestRun, error) {
	return l.loadFile(path, l.defaultSettings())
}

func (l *Loader) defaultSettings() Settings {
	return Settings{BrowserOptions: l.opts.BrowserOptions, DriverOptions: l.opts.DriverOptions}
}

func (l *Loader) loadPatterns(patterns []string, settings Settings) ([]*interpreter.TestRun, error) {
	var runs []*interpreter.TestRun
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, core.ErrLoad.WithMessage(fmt.Sprintf("invalid pattern %q", pattern)).WithCause(err)
		}
		if len(matches) == 0 {
			logger.Warn("pattern %q matched no files", pattern)
		}
		for _, path := range matches {
			if !strings.HasSuffix(path, ".json") {
				continue
			}
			loaded, err := l.loadFile(path, settings)
			if err != nil {
				return nil, err
			}
			runs = append(runs, loaded...)
		}
	}
	return runs, nil
}

// readJSON reads a file, substitutes environment variables and validates it
// against the schema of its type.
func (l *Loader) readJSON(path string) (string, []byte, error) {
	raw, err := os.ReadFile(path) //#nosec G304 -- path is user-provided script file
	if err != nil {
		return "", nil, core.ErrLoad.WithMessage(fmt.Sprintf("unable to load %s", path)).WithCause(err)
	}
	data := []byte(vars.SubstituteEnv(string(raw), l.opts.Env))

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return "", nil, core.ErrLoad.WithMessage(fmt.Sprintf("unable to load %s", path)).WithCause(err)
	}

	obj, _ := doc.(map[string]interface{})
	fileType, _ := obj["type"].(string)
	schema, ok := schemas[fileType]
	if !ok {
		return "", nil, core.ErrUnknownFileType.WithMessage(fmt.Sprintf("no type property set in JSON file %q", path))
	}
	if err := schema.Validate(doc); err != nil {
		return "", nil, core.ErrLoad.WithMessage(fmt.Sprintf("invalid %s file %s", fileType, path)).WithCause(err)
	}
	return fileType, data, nil
}

func (l *Loader) loadFile(path string, settings Settings) ([]*interpreter.TestRun, error) {
	fileType, data, err := l.readJSON(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("loading %s file %s", fileType, path)

	switch fileType {
	case TypeScript:
		return l.loadScript(path, data, settings)
	case TypeSuite:
		return l.loadSuite(path, data, settings)
	default:
		return l.loadConfig(path, data)
	}
}

// loadScript creates one run per data row. Runs are named after the file,
// with a ", row <n>" suffix when there is more than one row.
func (l *Loader) loadScript(path string, data []byte, settings Settings) ([]*interpreter.TestRun, error) {
	s, err := script.Parse(data, path)
	if err != nil {
		return nil, core.ErrLoad.WithMessage(fmt.Sprintf("unable to load %s", path)).WithCause(err)
	}
	rows, err := l.opts.DataSources.Load(s.Data, path)
	if err != nil {
		return nil, err
	}

	runs := make([]*interpreter.TestRun, 0, len(rows))
	for i, row := range rows {
		name := s.Name
		if len(rows) > 1 {
			name = fmt.Sprintf("%s, row %d", s.Name, i+1)
		}
		runs = append(runs, l.newRun(s, name, row, settings))
	}
	return runs, nil
}

func (l *Loader) newRun(s *script.Script, name string, row datasource.Row, settings Settings) *interpreter.TestRun {
	run := interpreter.New(s, name, row)
	if settings.BrowserOptions != nil {
		run.BrowserOptions = copyMap(settings.BrowserOptions)
	}
	if settings.DriverOptions != nil {
		run.DriverOptions = copyMap(settings.DriverOptions)
	}
	run.Driver = l.opts.Driver
	run.Listener = l.opts.Listener
	run.Registry = l.registry
	run.SilencePrints = l.opts.SilencePrints
	if l.opts.Stdout != nil {
		run.Stdout = l.opts.Stdout
	}
	if l.opts.PollInterval > 0 {
		run.PollInterval = l.opts.PollInterval
	}
	if l.opts.WaitTimeout > 0 {
		run.WaitTimeout = l.opts.WaitTimeout
	}
	run.ImplicitWait = l.opts.ImplicitWait
	run.VerifyPolicy = l.opts.VerifyPolicy
	return run
}

type suiteFile struct {
	ShareState bool `json:"shareState"`
	Scripts    []struct {
		Where string `json:"where"`
		Path  string `json:"path"`
	} `json:"scripts"`
}

// loadSuite loads the suite's local members in order. With shareState,
// each run but the last keeps its session and each run but the first
// inherits from its predecessor.
func (l *Loader) loadSuite(path string, data []byte, settings Settings) ([]*interpreter.TestRun, error) {
	var suite suiteFile
	if err := json.Unmarshal(data, &suite); err != nil {
		return nil, core.ErrLoad.WithMessage(fmt.Sprintf("unable to load %s", path)).WithCause(err)
	}

	var runs []*interpreter.TestRun
	for _, member := range suite.Scripts {
		if member.Where != "local" {
			logger.Warn("suite %s: members stored using %q are not supported", path, member.Where)
			continue
		}
		memberPath := filepath.Join(filepath.Dir(path), member.Path)
		if filepath.IsAbs(member.Path) {
			memberPath = member.Path
		} else if _, err := os.Stat(memberPath); err != nil {
			memberPath = member.Path
		}

		fileType, memberData, err := l.readJSON(memberPath)
		if err != nil {
			return nil, err
		}
		if fileType != TypeScript {
			return nil, core.ErrLoad.WithMessage(fmt.Sprintf("suite %s: member %s is a %s, not a script", path, memberPath, fileType))
		}
		loaded, err := l.loadScript(memberPath, memberData, settings)
		if err != nil {
			return nil, err
		}
		runs = append(runs, loaded...)
	}

	if suite.ShareState {
		ChainRuns(runs)
	}
	return runs, nil
}

// ChainRuns links runs into a share-chain.
func ChainRuns(runs []*interpreter.TestRun) {
	if len(runs) < 2 {
		return
	}
	for i, run := range runs {
		run.KeepSession = i < len(runs)-1
		if i > 0 {
			run.InheritFrom = runs[i-1]
		}
	}
}

type configFile struct {
	Configurations []struct {
		Settings []Settings `json:"settings"`
		Scripts  []string   `json:"scripts"`
	} `json:"configurations"`
}

// loadConfig loads each configuration's script patterns once per settings
// entry. A configuration without settings uses the inherited options.
func (l *Loader) loadConfig(path string, data []byte) ([]*interpreter.TestRun, error) {
	var cfg configFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, core.ErrLoad.WithMessage(fmt.Sprintf("unable to load %s", path)).WithCause(err)
	}

	var runs []*interpreter.TestRun
	for _, c := range cfg.Configurations {
		settingsList := c.Settings
		if len(settingsList) == 0 {
			settingsList = []Settings{l.defaultSettings()}
		}
		for _, settings := range settingsList {
			loaded, err := l.loadPatterns(c.Scripts, settings)
			if err != nil {
				return nil, err
			}
			runs = append(runs, loaded...)
		}
	}
	return runs, nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
