// Package report writes a JSON report of test runs, rewritten atomically as
// runs progress so that it can be polled while a batch executes.
//
// Layout: <dir>/report.json holds the batch status, a summary and one entry
// per run with its step results.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed
}

func statusOf(success bool) Status {
	if success {
		return StatusPassed
	}
	return StatusFailed
}

// Index is the report file.
type Index struct {
	Version     string     `json:"version"`
	UpdateSeq   uint64     `json:"updateSeq"`
	Status      Status     `json:"status"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated"`
	Runner      RunnerInfo `json:"runner"`
	Summary     Summary    `json:"summary"`
	Runs        []RunEntry `json:"runs"`
}

// RunnerInfo identifies the program that produced the report.
type RunnerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Summary counts runs by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Running int `json:"running"`
}

// RunEntry is one test run.
type RunEntry struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Script    string      `json:"script,omitempty"`
	Browser   string      `json:"browser,omitempty"`
	Status    Status      `json:"status"`
	StartTime *time.Time  `json:"startTime,omitempty"`
	EndTime   *time.Time  `json:"endTime,omitempty"`
	Duration  *int64      `json:"duration,omitempty"` // milliseconds
	Error     string      `json:"error,omitempty"`
	Steps     []StepEntry `json:"steps"`
}

// StepEntry is one executed step.
type StepEntry struct {
	Index    int    `json:"index"`
	Type     string `json:"type"`
	Step     string `json:"step"` // step as JSON
	Status   Status `json:"status"`
	Duration int64  `json:"duration"` // milliseconds
	Error    string `json:"error,omitempty"`
}
