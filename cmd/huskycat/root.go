package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"huskycat/internal/config"
	"huskycat/internal/executor"
	"huskycat/internal/extract"
	"huskycat/internal/gitutil"
	"huskycat/internal/hcerrors"
	"huskycat/internal/logging"
	"huskycat/internal/mode"
	"huskycat/internal/progress"
	"huskycat/internal/registry"
	"huskycat/internal/router"
	"huskycat/internal/runstore"
	"huskycat/internal/version"
)

// exitError carries an explicit process exit code through cobra's RunE chain.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

// app is the assembled dependency container shared by every subcommand.
type app struct {
	cfg       *config.Config
	reg       *registry.Registry
	router    *router.Router
	store     *runstore.Store
	extractor *extract.Extractor
	repoRoot  string
	baseDir   string
	logger    logging.Logger

	modeFlag string
}

// checkModeFlag rejects an explicit --mode value naming no known mode.
func checkModeFlag(flag string) error {
	if flag == "" || mode.Valid(flag) {
		return nil
	}
	return hcerrors.New(hcerrors.KindConfiguration, "unrecognized mode %q", flag)
}

// buildApp loads configuration and wires the long-lived components. Called
// lazily from each subcommand so `huskycat --help` never touches the store.
func buildApp(ctx context.Context, modeFlag string) (*app, error) {
	if err := checkModeFlag(modeFlag); err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger("cli")

	cwd, err := os.Getwd()
	if err != nil {
		return nil, hcerrors.Wrap(hcerrors.KindIO, err, "resolve working directory")
	}
	repoRoot := gitutil.RepoRoot(ctx, cwd)
	baseDir := repoRoot
	if baseDir == "" {
		baseDir = cwd
	}

	cfg, err := config.Load(repoRoot)
	if err != nil {
		return nil, err
	}

	tools := registry.Merge(registry.DefaultCatalog(), cfg.Tools, cfg.DisabledTools)
	reg, err := registry.Build(tools)
	if err != nil {
		return nil, err
	}

	cacheDir := extract.DefaultCacheDir()
	rt := router.New(router.HostState{
		CacheDir:  cacheDir,
		WorkTree:  baseDir,
		InSandbox: router.InSandbox(),
	}, logger)

	return &app{
		cfg:       cfg,
		reg:       reg,
		router:    rt,
		store:     runstore.New(baseDir, logger),
		extractor: extract.New(extract.EmptyBundle{}, cacheDir, logger),
		repoRoot:  repoRoot,
		baseDir:   baseDir,
		logger:    logger,
		modeFlag:  modeFlag,
	}, nil
}

// detectMode resolves the invocation mode from the flag, environment, and
// repository settings.
func (a *app) detectMode(ctx context.Context, subcommand string) mode.Mode {
	nonblocking := a.cfg.Nonblocking
	if !nonblocking && a.repoRoot != "" {
		nonblocking = gitutil.ConfigBool(ctx, a.repoRoot, "huskycat.nonblocking")
	}
	return mode.Detect(mode.Input{
		Flag:            a.modeFlag,
		Subcommand:      subcommand,
		StdoutIsTTY:     term.IsTerminal(int(os.Stdout.Fd())),
		RepoNonblocking: nonblocking,
		Env:             os.Getenv,
	})
}

// sinkFor picks the progress sink for an adapter: the live TTY table when the
// policy asks for progress and stdout is a terminal, silence otherwise.
func (a *app) sinkFor(adapter mode.Adapter, detachable bool, onInterrupt func()) progress.Sink {
	if adapter.EmitProgress && term.IsTerminal(int(os.Stdout.Fd())) {
		return progress.NewRenderer(os.Stdout, detachable, onInterrupt, a.logger)
	}
	return progress.Nop()
}

func (a *app) newExecutor(sink progress.Sink) *executor.Executor {
	return executor.New(a.reg, a.router, sink, a.logger)
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string) (int, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(ctx)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code, ee.err
		}
		return hcerrors.ExitCode(err), err
	}
	if ctx.Err() != nil {
		return hcerrors.ExitInterrupted, nil
	}
	return hcerrors.ExitOK, nil
}

func newRootCommand(ctx context.Context) *cobra.Command {
	var modeFlag string

	rootCmd := &cobra.Command{
		Use:           "huskycat",
		Short:         "License-aware validation orchestrator for polyglot repositories",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "force an invocation mode (git-hooks-blocking, git-hooks-nonblocking, ci, cli, pipeline, agent-rpc)")

	rootCmd.AddCommand(
		newValidateCommand(ctx, &modeFlag),
		newCIValidateCommand(ctx, &modeFlag),
		newMCPServerCommand(ctx, &modeFlag),
		newSetupHooksCommand(ctx),
		newInstallCommand(ctx, &modeFlag),
		newStatusCommand(ctx, &modeFlag),
		newCleanCommand(ctx, &modeFlag),
		newConfigCommand(ctx, &modeFlag),
	)
	return rootCmd
}
