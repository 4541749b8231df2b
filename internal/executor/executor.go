package executor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"huskycat/internal/async"
	"huskycat/internal/logging"
	"huskycat/internal/progress"
	"huskycat/internal/registry"
	"huskycat/internal/result"
	"huskycat/internal/router"
)

// Options configures one scheduling run.
type Options struct {
	Workers  int
	Timeout  time.Duration
	FailFast bool
	Fix      bool
	Env      []string
}

// Executor schedules a selected tool set over the dependency DAG with a
// bounded worker pool. It owns Results until they are committed to the
// aggregator.
type Executor struct {
	reg    *registry.Registry
	router *router.Router
	sink   progress.Sink
	logger logging.Logger
	invoke InvokeFunc
}

// New builds an Executor. sink may be nil for silent runs.
func New(reg *registry.Registry, rt *router.Router, sink progress.Sink, logger logging.Logger) *Executor {
	if sink == nil {
		sink = progress.Nop()
	}
	return &Executor{
		reg:    reg,
		router: rt,
		sink:   sink,
		logger: logging.OrNop(logger),
		invoke: Invoke,
	}
}

// SetInvoker overrides subprocess invocation, for tests.
func (e *Executor) SetInvoker(fn InvokeFunc) {
	e.invoke = fn
}

// Run executes every tool in filesByTool, honoring dependency edges,
// per-tool deadlines, and fail-fast. All per-tool failures are recovered
// into Results; only aggregator misuse propagates as an error.
func (e *Executor) Run(ctx context.Context, filesByTool map[string][]string, agg *result.Aggregator, opts Options) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sem := semaphore.NewWeighted(int64(workers))

	selected := make(map[string]registry.Tool, len(filesByTool))
	for name := range filesByTool {
		tool, ok := e.reg.Lookup(name)
		if !ok {
			continue
		}
		selected[name] = tool
	}

	pending := make(map[string]bool, len(selected))
	terminal := make(map[string]result.Status, len(selected))
	running := make(map[string]bool, len(selected))
	order := e.schedulingOrder(selected)

	e.sink.Begin(order)
	defer e.sink.End()

	for name := range selected {
		pending[name] = true
	}

	// Buffered so an early return never strands a finishing worker.
	completedCh := make(chan result.Result, len(selected))
	failFastTripped := false

	commit := func(res result.Result) error {
		terminal[res.Tool] = res.Status
		delete(pending, res.Tool)
		delete(running, res.Tool)
		e.sink.Update(progress.Event{
			Tool:     res.Tool,
			State:    string(res.Status),
			Errors:   res.Errors,
			Warnings: res.Warnings,
		})
		return agg.Add(res)
	}

	// depsTerminal treats dependencies outside the selected set as satisfied:
	// a tool the filter excluded can never block one it admitted.
	depsTerminal := func(tool registry.Tool) (bool, string) {
		for _, dep := range tool.DependsOn {
			if _, inRun := selected[dep]; !inRun {
				continue
			}
			status, done := terminal[dep]
			if !done {
				return false, ""
			}
			if status.Blocking() {
				return true, dep
			}
		}
		return true, ""
	}

	start := func(name string, tool registry.Tool, plan router.Plan) {
		running[name] = true
		files := filesByTool[name]
		async.Go(e.logger, "tool-"+name, func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				// Cancelled while queued: the tool never started.
				completedCh <- skippedResult(tool, files, "cancelled before start")
				return
			}
			defer sem.Release(1)
			e.sink.Update(progress.Event{Tool: name, State: progress.StateRunning})
			completedCh <- e.invoke(ctx, plan, tool, files, InvokeOptions{
				Fix:     opts.Fix,
				Timeout: opts.Timeout,
				Env:     opts.Env,
			})
		})
	}

	// schedule sweeps the pending set until no immediate transition applies,
	// launching eligible tools and terminally marking the rest.
	schedule := func() error {
		for changed := true; changed; {
			changed = false
			for _, name := range order {
				if !pending[name] || running[name] {
					continue
				}
				tool := selected[name]
				ready, blockedBy := depsTerminal(tool)
				if !ready {
					continue
				}
				files := filesByTool[name]

				switch {
				case blockedBy != "":
					reason := fmt.Sprintf("dependency %s %s", blockedBy, terminal[blockedBy])
					if err := commit(skippedResult(tool, files, reason)); err != nil {
						return err
					}
				case ctx.Err() != nil:
					if err := commit(skippedResult(tool, files, "cancelled")); err != nil {
						return err
					}
				case failFastTripped:
					if err := commit(skippedResult(tool, files, "fail-fast: earlier tool failed")); err != nil {
						return err
					}
				default:
					plan := e.router.Resolve(ctx, tool)
					if plan.Verdict == router.VerdictUnavailable {
						if err := commit(unavailableResult(tool, files, plan.Reason)); err != nil {
							return err
						}
					} else {
						start(name, tool, plan)
						continue
					}
				}
				changed = true
			}
		}
		return nil
	}

	if err := schedule(); err != nil {
		return err
	}
	for len(pending) > 0 {
		res := <-completedCh
		if err := commit(res); err != nil {
			return err
		}
		if opts.FailFast && res.Status.Blocking() {
			failFastTripped = true
		}
		if err := schedule(); err != nil {
			return err
		}
	}
	return nil
}

// schedulingOrder flattens the registry levels to the selected set, keeping
// the cost-descending, then alphabetic tie-break inside each level.
func (e *Executor) schedulingOrder(selected map[string]registry.Tool) []string {
	var order []string
	for _, level := range e.reg.Levels() {
		for _, name := range level {
			if _, ok := selected[name]; ok {
				order = append(order, name)
			}
		}
	}
	return order
}

func skippedResult(tool registry.Tool, files []string, reason string) result.Result {
	now := time.Now()
	return result.Result{
		Tool:       tool.Name,
		Target:     targetOf(files),
		Status:     result.StatusSkipped,
		SkipReason: reason,
		StartedAt:  now,
		FinishedAt: now,
	}
}

func unavailableResult(tool registry.Tool, files []string, reason string) result.Result {
	now := time.Now()
	return result.Result{
		Tool:       tool.Name,
		Target:     targetOf(files),
		Status:     result.StatusUnavailable,
		SkipReason: reason,
		StartedAt:  now,
		FinishedAt: now,
	}
}
