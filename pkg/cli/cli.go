// Package cli provides the command-line interface for se-interpreter.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// Exit codes.
const (
	ExitOK          = 0
	ExitTestFailure = 1
	ExitLoadFailure = 65 // EX_DATAERR: a script, suite or config could not be loaded
	ExitPluginError = 78 // EX_CONFIG: a listener, executor factory or data source module failed
)

// Flags are the declared options. Browser, driver and listener options are
// open-ended and collected separately (see splitPassthrough).
var Flags = []cli.Flag{
	// Output
	&cli.BoolFlag{
		Name:  "quiet",
		Usage: "No per-step output",
	},
	&cli.BoolFlag{
		Name:  "noPrint",
		Usage: "No print step output",
	},
	&cli.BoolFlag{
		Name:  "silent",
		Usage: "No non-error output",
	},
	&cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable ANSI colors",
	},

	// Execution
	&cli.IntFlag{
		Name:  "parallel",
		Usage: "Number of tests to run in parallel",
		Value: 1,
	},
	&cli.StringFlag{
		Name:    "driver",
		Usage:   "Browser driver (webdriver, mock)",
		Value:   "webdriver",
		EnvVars: []string{"SE_INTERPRETER_DRIVER"},
	},
	&cli.StringFlag{
		Name:  "verify-policy",
		Usage: "What a failed verify step does (continue, abort)",
	},
	&cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Load and validate scripts without running them",
	},

	// Plugins
	&cli.StringFlag{
		Name:  "listener",
		Usage: "Path to listener module",
	},
	&cli.StringFlag{
		Name:  "executorFactory",
		Usage: "Path to factory for extra step type executors",
	},
	&cli.StringSliceFlag{
		Name:  "dataSource",
		Usage: "Path to data source module (repeatable)",
	},

	// Configuration
	&cli.StringFlag{
		Name:  "config",
		Usage: "Path to workspace se-interpreter.yaml",
	},
	&cli.StringFlag{
		Name:  "report-dir",
		Usage: "Directory to write report.json to",
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Path to the debug log file",
		EnvVars: []string{"SE_INTERPRETER_LOG"},
	},
}

const usageText = `se-interpreter [--option value...] [script-path...]

Prefix browser options like browserName with "browser-", e.g. "--browser-browserName=firefox".
Repeat --browser-browserName to run every script once per browser.
Prefix driver options like host with "driver-", e.g. "--driver-host=webdriver.foo.com".
Prefix listener module options with "listener-".`

// NewApp builds the CLI application. Output goes to stdout and stderr.
func NewApp(stdout, stderr io.Writer, extra Passthrough) *cli.App {
	return &cli.App{
		Name:      "se-interpreter",
		Usage:     "Run Selenium Builder JSON scripts against WebDriver",
		UsageText: usageText,
		Version:   Version,
		Flags:     Flags,
		Writer:    stdout,
		ErrWriter: stderr,
		Action: func(c *cli.Context) error {
			return runScripts(c, extra)
		},
		// Exit codes are handled by Run.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// Run runs the CLI with args (including the program name) and returns the
// process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		args = []string{"se-interpreter"}
	}
	extra, rest := splitPassthrough(args[1:])
	app := NewApp(stdout, stderr, extra)
	return exitCode(app.Run(append([]string{args[0]}, rest...)), stderr)
}

// Execute runs the CLI with the process arguments and exits.
func Execute() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return ExitOK
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		if msg := ec.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return ec.ExitCode()
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitTestFailure
}
