// Package scheduler executes test runs across parallel lanes.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
	"github.com/devicelab-dev/se-interpreter/pkg/logger"
)

// Config configures the scheduler.
type Config struct {
	Lanes    int                  // Concurrent runs (values below 1 mean 1)
	Listener interpreter.Listener // Receives EndAllRuns once all lanes finish
}

// Result contains the outcome of a scheduled batch.
type Result struct {
	Total     int
	Successes int
	Lanes     int // Lanes actually used
	Duration  time.Duration
	Outcomes  []Outcome // In run order
	NoRuns    bool
	Cancelled bool // The context ended before every run was started
}

// Passed reports whether every run succeeded.
func (r *Result) Passed() bool {
	return r.Successes == r.Total
}

// Outcome is the result of one run.
type Outcome struct {
	Run      *interpreter.TestRun
	Result   core.StepResult
	Duration time.Duration
	Skipped  bool // Not started because the batch was cancelled
}

// Scheduler runs batches of test runs.
type Scheduler struct {
	config Config
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	return &Scheduler{config: cfg}
}

// Run executes runs on up to Lanes goroutines. Each lane claims the next
// unstarted run from a shared counter, so runs start in order. Runs that
// share a session force a single lane.
func (s *Scheduler) Run(ctx context.Context, runs []*interpreter.TestRun) *Result {
	start := time.Now()
	lanes := s.lanes(runs)
	result := &Result{
		Total:    len(runs),
		Lanes:    lanes,
		Outcomes: make([]Outcome, len(runs)),
		NoRuns:   len(runs) == 0,
	}
	logger.Info("scheduling %d runs on %d lanes", len(runs), lanes)

	var next atomic.Int64
	var g errgroup.Group
	for lane := 0; lane < lanes; lane++ {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= len(runs) {
					return ctx.Err()
				}
				result.Outcomes[i] = execute(ctx, runs[i])
			}
		})
	}
	if err := g.Wait(); err != nil {
		result.Cancelled = true
		logger.Warn("batch interrupted: %v", err)
	}

	teardownCtx := context.WithoutCancel(ctx)
	for _, run := range runs {
		if err := run.Release(teardownCtx); err != nil {
			logger.WithRun(run.Name(), run.ID).Warnf("releasing retained session: %v", err)
		}
	}

	for _, o := range result.Outcomes {
		if o.Result.Success {
			result.Successes++
		}
	}
	result.Duration = time.Since(start)
	logger.Info("%d/%d runs succeeded in %s", result.Successes, result.Total, result.Duration)

	if s.config.Listener != nil {
		s.config.Listener.EndAllRuns(result.Total, result.Successes)
	}
	return result
}

func (s *Scheduler) lanes(runs []*interpreter.TestRun) int {
	lanes := s.config.Lanes
	if lanes < 1 {
		lanes = 1
	}
	if lanes > 1 && HasShareChain(runs) {
		logger.Warn("runs share browser sessions, running on 1 lane instead of %d", lanes)
		lanes = 1
	}
	if lanes > len(runs) && len(runs) > 0 {
		lanes = len(runs)
	}
	return lanes
}

// HasShareChain reports whether any run keeps its session for, or inherits
// a session from, another run.
func HasShareChain(runs []*interpreter.TestRun) bool {
	for _, run := range runs {
		if run.KeepSession || run.InheritFrom != nil {
			return true
		}
	}
	return false
}

func execute(ctx context.Context, run *interpreter.TestRun) Outcome {
	log := logger.WithRun(run.Name(), run.ID)
	if err := ctx.Err(); err != nil {
		log.Info("skipped, batch cancelled")
		return Outcome{Run: run, Result: core.Failed(err), Skipped: true}
	}

	start := time.Now()
	log.Info("run started")
	res := run.Run(ctx, nil)
	elapsed := time.Since(start)
	if res.Success {
		log.Infof("run passed in %s", elapsed)
	} else {
		log.Infof("run failed in %s: %s", elapsed, res.ErrorString())
	}
	return Outcome{Run: run, Result: res, Duration: elapsed}
}
