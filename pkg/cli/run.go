package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/se-interpreter/pkg/config"
	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/datasource"
	"github.com/devicelab-dev/se-interpreter/pkg/driver/mock"
	"github.com/devicelab-dev/se-interpreter/pkg/driver/webdriver"
	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
	"github.com/devicelab-dev/se-interpreter/pkg/jsengine"
	"github.com/devicelab-dev/se-interpreter/pkg/listener"
	"github.com/devicelab-dev/se-interpreter/pkg/loader"
	"github.com/devicelab-dev/se-interpreter/pkg/logger"
	"github.com/devicelab-dev/se-interpreter/pkg/report"
	"github.com/devicelab-dev/se-interpreter/pkg/scheduler"
	"github.com/devicelab-dev/se-interpreter/pkg/steps"
	"github.com/devicelab-dev/se-interpreter/pkg/validator"
)

// RunConfig is the resolved configuration of one invocation. Flags win
// over the workspace config file.
type RunConfig struct {
	Paths []string

	Quiet   bool
	NoPrint bool
	Silent  bool
	NoColor bool
	DryRun  bool

	Parallel     int
	Driver       string
	VerifyPolicy interpreter.VerifyPolicy

	ListenerModule  string
	ExecutorFactory string
	DataSources     []string

	BrowserOptionsList []map[string]interface{}
	DriverOptions      map[string]interface{}
	ListenerOptions    map[string]interface{}

	PollInterval time.Duration
	WaitTimeout  time.Duration
	ImplicitWait time.Duration

	ReportDir string
	LogFile   string
	Env       func(string) (string, bool)
}

func buildRunConfig(c *cli.Context, extra Passthrough) (*RunConfig, error) {
	var ws *config.Config
	var err error
	if path := c.String("config"); path != "" {
		ws, err = config.Load(path)
	} else {
		ws, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pick := func(flag, fromFile string) string {
		if c.IsSet(flag) || fromFile == "" {
			return c.String(flag)
		}
		return fromFile
	}

	parallel := c.Int("parallel")
	if !c.IsSet("parallel") && ws.Parallel > 0 {
		parallel = ws.Parallel
	}
	policy, err := interpreter.ParseVerifyPolicy(pick("verify-policy", ws.VerifyPolicy))
	if err != nil {
		return nil, err
	}

	browserBase := interpreter.DefaultBrowserOptions()
	for k, v := range ws.BrowserOptions {
		browserBase[k] = v
	}

	return &RunConfig{
		Paths:              c.Args().Slice(),
		Quiet:              c.Bool("quiet"),
		NoPrint:            c.Bool("noPrint"),
		Silent:             c.Bool("silent"),
		NoColor:            c.Bool("no-color") || color.NoColor,
		DryRun:             c.Bool("dry-run"),
		Parallel:           parallel,
		Driver:             pick("driver", ws.Driver),
		VerifyPolicy:       policy,
		ListenerModule:     c.String("listener"),
		ExecutorFactory:    c.String("executorFactory"),
		DataSources:        c.StringSlice("dataSource"),
		BrowserOptionsList: extra.BrowserOptionsList(browserBase),
		DriverOptions:      extra.DriverOptions(ws.DriverOptions),
		ListenerOptions:    extra.Listener,
		PollInterval:       ws.PollInterval(),
		WaitTimeout:        ws.WaitTimeout(),
		ImplicitWait:       ws.ImplicitWait(),
		ReportDir:          pick("report-dir", ws.ReportDir),
		LogFile:            pick("log-file", ws.LogFile),
		Env:                ws.LookupEnv,
	}, nil
}

func runScripts(c *cli.Context, extra Passthrough) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one script path is required")
	}
	cfg, err := buildRunConfig(c, extra)
	if err != nil {
		return cli.Exit(err.Error(), ExitPluginError)
	}
	out := c.App.Writer

	if cfg.LogFile != "" {
		if err := logger.Init(cfg.LogFile); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
		}
		defer logger.Close()
	}
	logger.Info("=== se-interpreter %s started ===", Version)
	logger.Info("Driver: %s, parallel: %d, paths: %s", cfg.Driver, cfg.Parallel, strings.Join(cfg.Paths, " "))

	if !cfg.Silent {
		fmt.Fprintf(out, "SE-Interpreter %s\n", Version)
	}

	drv, err := newDriver(cfg.Driver)
	if err != nil {
		return cli.Exit(err.Error(), ExitPluginError)
	}

	p, err := loadPlugins(cfg, out)
	if err != nil {
		return cli.Exit(err.Error(), ExitPluginError)
	}
	defer p.close()

	var lst []interpreter.Listener
	switch {
	case p.listener != nil:
		lst = append(lst, p.listener)
	case !cfg.Quiet && !cfg.Silent:
		lst = append(lst, listener.NewConsole(out, cfg.NoColor))
	}
	var rep *report.IndexWriter
	if cfg.ReportDir != "" && !cfg.DryRun {
		rep, err = report.NewIndexWriter(cfg.ReportDir, Version)
		if err != nil {
			return err
		}
		defer func() {
			if err := rep.Close(); err != nil {
				logger.Error("closing report: %v", err)
			}
		}()
		lst = append(lst, rep)
	}
	combined := listener.Combine(lst...)

	runs, err := loadRuns(cfg, drv, combined, p)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Unable to load scripts: %v", err), ExitLoadFailure)
	}

	if cfg.DryRun {
		return dryRun(cfg, runs, out)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := scheduler.New(scheduler.Config{Lanes: cfg.Parallel, Listener: combined}).Run(ctx, runs)
	logger.Info("=== %d/%d runs passed in %s on %d lanes ===", result.Successes, result.Total, result.Duration, result.Lanes)
	if rep != nil && !cfg.Silent && !cfg.Quiet {
		fmt.Fprintf(out, "Report: %s\n", rep.Path())
	}

	if !cfg.Silent {
		if result.Cancelled {
			fmt.Fprintln(out, "Interrupted, remaining runs skipped")
		}
		fmt.Fprintln(out, listener.Summary(result.Total, result.Successes, cfg.NoColor))
	}
	if !result.Passed() {
		return cli.Exit("", ExitTestFailure)
	}
	return nil
}

func newDriver(name string) (core.Driver, error) {
	switch strings.ToLower(name) {
	case "", "webdriver":
		return webdriver.New(), nil
	case "mock":
		return mock.New(mock.Config{}), nil
	}
	return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported driver: %s", name))
}

// loadRuns loads every path once per browser option set.
func loadRuns(cfg *RunConfig, drv core.Driver, lst interpreter.Listener, p *plugins) ([]*interpreter.TestRun, error) {
	var factories []steps.Factory
	if p.factory != nil {
		factories = append(factories, p.factory)
	}

	var runs []*interpreter.TestRun
	for _, bo := range cfg.BrowserOptionsList {
		l := loader.New(loader.Options{
			BrowserOptions:    bo,
			DriverOptions:     cfg.DriverOptions,
			Driver:            drv,
			Listener:          lst,
			ExecutorFactories: factories,
			DataSources:       datasource.NewRegistry(cfg.Env, p.sources...),
			SilencePrints:     cfg.NoPrint || cfg.Silent,
			Stdout:            p.out,
			PollInterval:      cfg.PollInterval,
			WaitTimeout:       cfg.WaitTimeout,
			ImplicitWait:      cfg.ImplicitWait,
			VerifyPolicy:      cfg.VerifyPolicy,
			Env:               cfg.Env,
		})
		loaded, err := l.LoadPaths(cfg.Paths)
		if err != nil {
			return nil, err
		}
		runs = append(runs, loaded...)
	}
	logger.Info("Loaded %d runs for %d browser option sets", len(runs), len(cfg.BrowserOptionsList))
	return runs, nil
}

func dryRun(cfg *RunConfig, runs []*interpreter.TestRun, out io.Writer) error {
	result := validator.New(nil).Validate(runs)
	if !result.IsValid() {
		msgs := make([]string, len(result.Errors))
		for i, err := range result.Errors {
			msgs[i] = err.Error()
		}
		return cli.Exit(strings.Join(msgs, "\n"), ExitLoadFailure)
	}
	if !cfg.Silent {
		fmt.Fprintf(out, "%d runs from %d scripts are valid\n", len(runs), len(result.Files))
	}
	return nil
}

// plugins are the JavaScript modules named on the command line. They share
// one engine.
type plugins struct {
	engine   *jsengine.Engine
	factory  steps.Factory
	listener interpreter.Listener
	sources  []datasource.Source
	out      io.Writer
}

func loadPlugins(cfg *RunConfig, out io.Writer) (*plugins, error) {
	p := &plugins{out: out}
	if cfg.ListenerModule == "" && cfg.ExecutorFactory == "" && len(cfg.DataSources) == 0 {
		return p, nil
	}
	p.engine = jsengine.New(out)

	load := func(kind, path string) (*jsengine.Module, error) {
		m, err := p.engine.LoadModule(config.ResolvePlugin(path))
		if err != nil {
			return nil, fmt.Errorf("unable to load %s module: %w", kind, err)
		}
		logger.Info("Loaded %s module %s", kind, m.Path())
		return m, nil
	}

	for _, path := range cfg.DataSources {
		m, err := load("data source", path)
		if err == nil {
			var ds *jsengine.DataSource
			if ds, err = jsengine.NewDataSource(m); err == nil {
				p.sources = append(p.sources, ds)
			}
		}
		if err != nil {
			p.close()
			return nil, err
		}
	}
	if cfg.ListenerModule != "" {
		m, err := load("listener", cfg.ListenerModule)
		var l *jsengine.Listener
		if err == nil {
			l, err = jsengine.NewListener(m, cfg.ListenerOptions)
		}
		if err != nil {
			p.close()
			return nil, err
		}
		p.listener = l
	}
	if cfg.ExecutorFactory != "" {
		m, err := load("executor factory", cfg.ExecutorFactory)
		var f *jsengine.Factory
		if err == nil {
			f, err = jsengine.NewFactory(m)
		}
		if err != nil {
			p.close()
			return nil, err
		}
		p.factory = f
	}
	return p, nil
}

func (p *plugins) close() {
	if p.engine != nil {
		p.engine.Close()
	}
}
