package result

import (
	"sync"
	"time"

	"huskycat/internal/hcerrors"
)

// Aggregator collects Results for one run. Add is safe for concurrent use
// from executor workers; the mutex is held only across the commit of a
// single result.
type Aggregator struct {
	mu   sync.Mutex
	run  *Run
	seen map[[2]string]bool
}

// NewAggregator starts a run-scoped collection.
func NewAggregator(runID, runMode string, targets, toolsSelected []string) *Aggregator {
	return &Aggregator{
		run: &Run{
			ID:            runID,
			StartedAt:     time.Now(),
			Mode:          runMode,
			Targets:       targets,
			ToolsSelected: toolsSelected,
			Results:       []Result{},
		},
		seen: make(map[[2]string]bool),
	}
}

// Add commits one result. No two results within a run may share
// (tool, target).
func (a *Aggregator) Add(res Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := [2]string{res.Tool, res.Target}
	if a.seen[key] {
		return hcerrors.New(hcerrors.KindConfiguration,
			"duplicate result for tool %q target %q", res.Tool, res.Target)
	}
	a.seen[key] = true
	a.run.Results = append(a.run.Results, res)
	return nil
}

// Snapshot returns a copy of the run in its current, possibly unfinalized
// state. Used for mid-run persistence so a killed child leaves evidence.
func (a *Aggregator) Snapshot() *Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyRunLocked()
}

// Finalize computes the summary, the success verdict, and the stable result
// order, then stamps the finish time. A run fails iff any result is failed
// or timed out; unavailability never causes overall failure.
func (a *Aggregator) Finalize() *Run {
	a.mu.Lock()
	defer a.mu.Unlock()

	sortStable(a.run.Results)

	var s Summary
	for _, res := range a.run.Results {
		s.Total++
		switch res.Status {
		case StatusSuccess:
			s.Success++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusTimeout:
			s.Timeout++
		case StatusUnavailable:
			s.Unavailable++
		}
		s.Errors += res.Errors
		s.Warnings += res.Warnings
		s.Duration += res.Duration
	}
	now := time.Now()
	s.WallClock = now.Sub(a.run.StartedAt)

	a.run.Summary = s
	a.run.Success = s.Failed == 0 && s.Timeout == 0
	a.run.FinishedAt = &now
	return a.copyRunLocked()
}

func (a *Aggregator) copyRunLocked() *Run {
	cp := *a.run
	cp.Results = append([]Result(nil), a.run.Results...)
	cp.Targets = append([]string(nil), a.run.Targets...)
	cp.ToolsSelected = append([]string(nil), a.run.ToolsSelected...)
	if a.run.FinishedAt != nil {
		t := *a.run.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
