// Package listener provides the built-in run listeners.
package listener

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

// Console prints run and step progress, one line per event, prefixed with
// the run name.
type Console struct {
	out io.Writer
	mu  sync.Mutex

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	grey   *color.Color
}

// NewConsole creates a console listener writing to out.
func NewConsole(out io.Writer, noColor bool) *Console {
	c := &Console{
		out:    out,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		grey:   color.New(color.FgHiBlack),
	}
	for _, col := range []*color.Color{c.green, c.red, c.yellow, c.grey} {
		if noColor {
			col.DisableColor()
		} else {
			col.EnableColor()
		}
	}
	return c
}

func (c *Console) printf(run *interpreter.TestRun, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s: "+format+"\n", append([]interface{}{run.Name()}, args...)...)
}

// StartTestRun prints the browser the run starts on, or why it could not.
func (c *Console) StartTestRun(run *interpreter.TestRun, res core.StepResult) {
	if res.Success {
		browser := script.Stringify(run.BrowserOptions["browserName"])
		c.printf(run, "%s%s%s", c.green.Sprint("Starting test "), c.yellow.Sprintf("(%s) ", browser), run.Name())
		return
	}
	c.printf(run, "%s%s: %s", c.red.Sprint("Unable to start test "), run.Name(), res.ErrorString())
}

// EndTestRun prints the run verdict.
func (c *Console) EndTestRun(run *interpreter.TestRun, res core.StepResult) {
	switch {
	case res.Success:
		c.printf(run, "%s", c.green.Sprint("Test passed"))
	case res.Error != nil:
		c.printf(run, "%s%s", c.red.Sprint("Test failed: "), res.ErrorString())
	default:
		c.printf(run, "%s", c.red.Sprint("Test failed"))
	}
}

func (c *Console) StartStep(*interpreter.TestRun, *script.Step) {}

// EndStep prints the step outcome with the step as JSON.
func (c *Console) EndStep(run *interpreter.TestRun, step *script.Step, res core.StepResult) {
	switch {
	case res.Success:
		c.printf(run, "%s%s", c.green.Sprint("Success "), c.grey.Sprint(step.Describe()))
	case res.Error != nil:
		c.printf(run, "%s%s %s", c.red.Sprint("Failed "), c.grey.Sprint(step.Describe()), res.ErrorString())
	default:
		c.printf(run, "%s%s", c.red.Sprint("Failed "), c.grey.Sprint(step.Describe()))
	}
}

func (c *Console) EndAllRuns(total, successes int) {}

// Summary formats the closing line of a batch.
func Summary(total, successes int, noColor bool) string {
	col := color.New(color.FgGreen)
	msg := fmt.Sprintf("%d/%d tests ran successfully. Exiting", successes, total)
	switch {
	case total == 0:
		col = color.New(color.FgYellow)
		msg = "No tests found. Exiting."
	case successes != total:
		col = color.New(color.FgRed)
	}
	if noColor {
		col.DisableColor()
	} else {
		col.EnableColor()
	}
	return col.Sprint(msg)
}
