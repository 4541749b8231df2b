package engine

import (
	"context"
	"os"
	"sort"
	"time"

	"huskycat/internal/config"
	"huskycat/internal/executor"
	"huskycat/internal/extract"
	"huskycat/internal/gitutil"
	"huskycat/internal/hcerrors"
	"huskycat/internal/logging"
	"huskycat/internal/mode"
	"huskycat/internal/registry"
	"huskycat/internal/result"
	"huskycat/internal/runstore"
	"huskycat/internal/utils/id"
)

// Engine ties the registry, router, executor, and run store into one
// validation pipeline. A single Engine serves every invocation shape: hook,
// ci, cli, pipeline, and agent calls all funnel through Execute.
type Engine struct {
	cfg       *config.Config
	reg       *registry.Registry
	exec      *executor.Executor
	store     *runstore.Store
	extractor *extract.Extractor
	repoRoot  string
	logger    logging.Logger
}

// Request describes one validation run.
type Request struct {
	Adapter  mode.Adapter
	Targets  []string
	Staged   bool
	Fix      bool
	OnlyTool string
	// RunID is set by detached children resuming the id their parent minted.
	RunID string
}

// New assembles an Engine. repoRoot may be empty outside a git repository;
// the run store then lives under the current working directory.
func New(cfg *config.Config, reg *registry.Registry, exec *executor.Executor, store *runstore.Store, extractor *extract.Extractor, repoRoot string, logger logging.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		reg:       reg,
		exec:      exec,
		store:     store,
		extractor: extractor,
		repoRoot:  repoRoot,
		logger:    logging.OrNop(logger),
	}
}

// Store exposes the run store for status and supervisor wiring.
func (e *Engine) Store() *runstore.Store { return e.store }

// Execute runs the full pipeline: retention GC, file collection, tool
// selection, scheduling, and persistence. Per-tool failures land in the run;
// the returned error covers only environment faults (store IO, registry
// misuse).
func (e *Engine) Execute(ctx context.Context, req Request) (*result.Run, error) {
	e.store.GC(time.Duration(e.cfg.RetentionDays) * 24 * time.Hour)
	if err := e.store.EnsureDirs(); err != nil {
		return nil, err
	}
	if err := e.extractor.Run(); err != nil {
		// A broken cache degrades to PATH and sandbox resolution.
		e.logger.Warn("bundle extraction failed: %v", err)
	}

	files, err := e.collectFiles(ctx, req)
	if err != nil {
		return nil, err
	}
	filesByTool := e.selectTools(files, req)

	runID := req.RunID
	if runID == "" {
		runID = id.NewRunID()
	}
	toolNames := make([]string, 0, len(filesByTool))
	for name := range filesByTool {
		toolNames = append(toolNames, name)
	}
	sort.Strings(toolNames)

	agg := result.NewAggregator(runID, string(req.Adapter.Mode), files, toolNames)
	if len(filesByTool) == 0 {
		run := agg.Finalize()
		if err := e.persist(run); err != nil {
			return nil, err
		}
		return run, nil
	}

	// An unfinalized snapshot on disk is the evidence a killed child leaves.
	if err := e.store.WriteRun(agg.Snapshot()); err != nil {
		return nil, err
	}

	timeout := req.Adapter.ToolTimeout
	if e.cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(e.cfg.TimeoutSeconds) * time.Second
	}
	err = e.exec.Run(ctx, filesByTool, agg, executor.Options{
		Workers:  e.cfg.Workers,
		Timeout:  timeout,
		FailFast: req.Adapter.FailFast,
		Fix:      req.Fix,
		Env:      e.extractor.PrependPath(os.Environ()),
	})
	run := agg.Finalize()
	if err != nil {
		return run, err
	}

	for _, res := range run.Results {
		if res.Stdout == "" && res.Stderr == "" {
			continue
		}
		if logErr := e.store.AppendLog(runID, res.Tool, res.Stdout+res.Stderr); logErr != nil {
			e.logger.Warn("run log append failed: %v", logErr)
		}
	}
	if err := e.persist(run); err != nil {
		return run, err
	}
	return run, nil
}

// Validate satisfies the agent dispatcher contract: full tool set over one
// path (or the staged set).
func (e *Engine) Validate(ctx context.Context, path string, staged, fix bool) (*result.Run, error) {
	req := Request{
		Adapter: mode.ForMode(mode.AgentRPC),
		Staged:  staged,
		Fix:     fix,
	}
	if path != "" {
		req.Targets = []string{path}
	}
	return e.Execute(ctx, req)
}

// ValidateTool runs a single registered tool over one path.
func (e *Engine) ValidateTool(ctx context.Context, tool, path string, fix bool) (*result.Run, error) {
	if _, ok := e.reg.Lookup(tool); !ok {
		return nil, hcerrors.New(hcerrors.KindConfiguration, "unknown tool %q", tool)
	}
	req := Request{
		Adapter:  mode.ForMode(mode.AgentRPC),
		OnlyTool: tool,
		Fix:      fix,
	}
	if path != "" {
		req.Targets = []string{path}
	}
	return e.Execute(ctx, req)
}

// ToolNames lists the registered tools.
func (e *Engine) ToolNames() []string { return e.reg.Names() }

func (e *Engine) collectFiles(ctx context.Context, req Request) ([]string, error) {
	if req.Staged {
		if e.repoRoot == "" {
			return nil, hcerrors.New(hcerrors.KindConfiguration, "staged validation requires a git repository")
		}
		files, err := gitutil.StagedFiles(ctx, e.repoRoot)
		if err != nil {
			return nil, hcerrors.Wrap(hcerrors.KindIO, err, "list staged files")
		}
		return files, nil
	}
	targets := req.Targets
	if len(targets) == 0 {
		targets = []string{"."}
	}
	return Walk(targets)
}

// selectTools maps each collected file onto the matching registry entries,
// then applies the adapter's tool filter.
func (e *Engine) selectTools(files []string, req Request) map[string][]string {
	filesByTool := make(map[string][]string)
	for _, file := range files {
		for _, tool := range e.reg.Matching(file) {
			if !e.admit(tool, req) {
				continue
			}
			filesByTool[tool.Name] = append(filesByTool[tool.Name], file)
		}
	}
	return filesByTool
}

func (e *Engine) admit(tool registry.Tool, req Request) bool {
	if req.OnlyTool != "" {
		return tool.Name == req.OnlyTool
	}
	if req.Adapter.Filter == mode.FilterFast {
		return tool.Cost <= registry.FastCostMax
	}
	// Disabled tools never reach the registry, so configured and all admit
	// everything that matched.
	return true
}

func (e *Engine) persist(run *result.Run) error {
	if err := e.store.WriteRun(run); err != nil {
		return err
	}
	return e.store.WriteLastRun(run)
}

// ExitCode maps a finalized run to the process exit contract: 0 on success,
// 2 when every selected tool was unavailable, 1 on validation failure.
func ExitCode(run *result.Run) int {
	if run == nil {
		return hcerrors.ExitValidation
	}
	s := run.Summary
	if s.Total > 0 && s.Unavailable == s.Total {
		return hcerrors.ExitConfig
	}
	if run.Success {
		return hcerrors.ExitOK
	}
	return hcerrors.ExitValidation
}
