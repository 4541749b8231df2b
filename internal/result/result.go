package result

import (
	"sort"
	"time"
)

// Status is the terminal outcome of one tool invocation.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
	StatusTimeout     Status = "timeout"
	StatusUnavailable Status = "unavailable"
)

// BatchTarget marks a result that covers the whole file batch rather than a
// single path.
const BatchTarget = "<batch>"

// Result is the outcome of one tool on one file or file batch. Workers create
// it when an invocation starts and finalize it before releasing their DAG
// slot; the aggregator receives it exactly once.
type Result struct {
	Tool       string        `json:"tool"`
	Target     string        `json:"target"`
	Status     Status        `json:"status"`
	Errors     int           `json:"errors"`
	Warnings   int           `json:"warnings"`
	Duration   time.Duration `json:"duration_ns"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Fixed      bool          `json:"fixed,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Terminal reports whether a status ends a tool's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped, StatusTimeout, StatusUnavailable:
		return true
	}
	return false
}

// Blocking reports whether a dependency in this status prevents dependents
// from running. Unavailability is not an error, so dependents proceed.
func (s Status) Blocking() bool {
	return s == StatusFailed || s == StatusTimeout
}

// Summary aggregates run-level counts.
type Summary struct {
	Total       int           `json:"total"`
	Success     int           `json:"success"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Timeout     int           `json:"timeout"`
	Unavailable int           `json:"unavailable"`
	Errors      int           `json:"errors"`
	Warnings    int           `json:"warnings"`
	Duration    time.Duration `json:"duration_ns"`
	WallClock   time.Duration `json:"wall_clock_ns"`
}

// Run is one orchestrator invocation and its persisted outcome.
type Run struct {
	ID            string     `json:"run_id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Mode          string     `json:"mode"`
	Targets       []string   `json:"targets"`
	ToolsSelected []string   `json:"tools_selected"`
	Results       []Result   `json:"results"`
	Summary       Summary    `json:"summary"`
	Success       bool       `json:"success"`
}

// Complete reports whether the run reached finalization. Incomplete persisted
// runs mean a child was killed mid-run.
func (r *Run) Complete() bool {
	return r != nil && r.FinishedAt != nil
}

// sortStable orders results failed-first, then by tool name, then target,
// giving serialized output a stable order independent of completion order.
func sortStable(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		ab, bb := a.Status.Blocking(), b.Status.Blocking()
		if ab != bb {
			return ab
		}
		if a.Tool != b.Tool {
			return a.Tool < b.Tool
		}
		return a.Target < b.Target
	})
}
