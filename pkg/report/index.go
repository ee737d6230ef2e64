package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/interpreter"
	"github.com/devicelab-dev/se-interpreter/pkg/logger"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

// FileName is the report file name inside the output directory.
const FileName = "report.json"

// IndexWriter is a run listener that maintains report.json. It is safe for
// use by concurrent runs.
type IndexWriter struct {
	mu    sync.Mutex
	path  string
	index *Index

	runs       map[string]int       // run ID to index in Runs
	stepStarts map[string]time.Time // run ID to current step start

	// Debouncing for step progress
	timer    *time.Timer
	debounce time.Duration
	closed   bool
}

// NewIndexWriter creates a writer for outputDir/report.json.
func NewIndexWriter(outputDir, runnerVersion string) (*IndexWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	now := time.Now()
	w := &IndexWriter{
		path: filepath.Join(outputDir, FileName),
		index: &Index{
			Version:     Version,
			Status:      StatusRunning,
			StartTime:   now,
			LastUpdated: now,
			Runner:      RunnerInfo{Name: "se-interpreter", Version: runnerVersion},
			Runs:        []RunEntry{},
		},
		runs:       make(map[string]int),
		stepStarts: make(map[string]time.Time),
		debounce:   100 * time.Millisecond,
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w, w.flushLocked()
}

// Path returns the report file path.
func (w *IndexWriter) Path() string {
	return w.path
}

// StartTestRun adds the run to the report.
func (w *IndexWriter) StartTestRun(run *interpreter.TestRun, res core.StepResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.entryLocked(run)
	now := time.Now()
	e.StartTime = &now
	if res.Success {
		e.Status = StatusRunning
	} else {
		e.Status = StatusFailed
		e.Error = res.ErrorString()
	}
	w.logFlush(w.flushLocked())
}

// EndTestRun records the run outcome.
func (w *IndexWriter) EndTestRun(run *interpreter.TestRun, res core.StepResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.entryLocked(run)
	now := time.Now()
	e.EndTime = &now
	if e.StartTime != nil {
		d := now.Sub(*e.StartTime).Milliseconds()
		e.Duration = &d
	}
	e.Status = statusOf(res.Success)
	e.Error = res.ErrorString()
	delete(w.stepStarts, run.ID)
	w.logFlush(w.flushLocked())
}

// StartStep marks the start of a step.
func (w *IndexWriter) StartStep(run *interpreter.TestRun, _ *script.Step) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stepStarts[run.ID] = time.Now()
}

// EndStep appends the step result. Step updates are written debounced.
func (w *IndexWriter) EndStep(run *interpreter.TestRun, step *script.Step, res core.StepResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.entryLocked(run)
	var elapsed int64
	if start, ok := w.stepStarts[run.ID]; ok {
		elapsed = time.Since(start).Milliseconds()
	}
	e.Steps = append(e.Steps, StepEntry{
		Index:    run.StepIndex(),
		Type:     step.Type,
		Step:     step.Describe(),
		Status:   statusOf(res.Success),
		Duration: elapsed,
		Error:    res.ErrorString(),
	})

	if w.timer == nil && !w.closed {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	}
}

// EndAllRuns marks the batch complete.
func (w *IndexWriter) EndAllRuns(total, successes int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = w.computeRunStatus()
	w.logFlush(w.flushLocked())
}

// Close stops pending debounced writes and flushes the report.
func (w *IndexWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return w.flushLocked()
}

// GetIndex returns a copy of the current index.
func (w *IndexWriter) GetIndex() Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := *w.index
	idx.Runs = append([]RunEntry(nil), w.index.Runs...)
	return idx
}

func (w *IndexWriter) entryLocked(run *interpreter.TestRun) *RunEntry {
	if i, ok := w.runs[run.ID]; ok {
		return &w.index.Runs[i]
	}
	entry := RunEntry{
		ID:      run.ID,
		Name:    run.Name(),
		Browser: script.Stringify(run.BrowserOptions["browserName"]),
		Status:  StatusPending,
		Steps:   []StepEntry{},
	}
	if run.Script != nil {
		entry.Script = run.Script.Path
	}
	w.runs[run.ID] = len(w.index.Runs)
	w.index.Runs = append(w.index.Runs, entry)
	return &w.index.Runs[len(w.index.Runs)-1]
}

func (w *IndexWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logFlush(w.flushLocked())
}

func (w *IndexWriter) flushLocked() error {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.computeSummary()
	return atomicWriteJSON(w.path, w.index)
}

func (w *IndexWriter) logFlush(err error) {
	if err != nil {
		logger.Error("writing report %s: %v", w.path, err)
	}
}

// computeSummary counts runs by status.
func (w *IndexWriter) computeSummary() Summary {
	var s Summary
	for _, r := range w.index.Runs {
		s.Total++
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusRunning:
			s.Running++
		}
	}
	return s
}

// computeRunStatus determines overall status from the runs.
func (w *IndexWriter) computeRunStatus() Status {
	hasFailure := false
	for _, r := range w.index.Runs {
		if !r.Status.IsTerminal() {
			return StatusRunning
		}
		if r.Status == StatusFailed {
			hasFailure = true
		}
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}

// atomicWriteJSON writes v to a temporary file and renames it over path so
// readers never see a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
