package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"huskycat/internal/engine"
	"huskycat/internal/hcerrors"
	"huskycat/internal/mode"
	"huskycat/internal/result"
	"huskycat/internal/supervisor"
	"huskycat/internal/utils/id"
)

func newValidateCommand(ctx context.Context, modeFlag *string) *cobra.Command {
	var (
		staged  bool
		all     bool
		fix     bool
		jsonOut bool
		only    string
	)

	cmd := &cobra.Command{
		Use:   "validate [targets...]",
		Short: "Run the validation pipeline over targets, staged files, or the whole tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(ctx, *modeFlag)
			if err != nil {
				return err
			}
			m := a.detectMode(ctx, "validate")
			adapter := mode.ForMode(m)
			if jsonOut {
				adapter.Format = mode.FormatJSON
			}
			if all {
				adapter.Filter = mode.FilterAll
			}

			if m == mode.GitHooksNonblocking && !supervisor.IsChild() {
				return a.runNonblockingParent(args, staged, all, fix)
			}

			req := engine.Request{
				Adapter:  adapter,
				Targets:  args,
				Staged:   staged,
				Fix:      fix,
				OnlyTool: only,
				RunID:    os.Getenv("HUSKYCAT_RUN_ID"),
			}
			return a.runValidation(ctx, adapter, req)
		},
	}
	cmd.Flags().BoolVar(&staged, "staged", false, "validate files staged for the next commit")
	cmd.Flags().BoolVar(&all, "all", false, "run every registered tool, not just the mode's filter")
	cmd.Flags().BoolVar(&fix, "fix", false, "let fix-capable tools rewrite their findings")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the run as JSON regardless of mode")
	cmd.Flags().StringVar(&only, "tool", "", "restrict the run to a single registered tool")
	return cmd
}

// priorGate reports a prior failed or incomplete run before any tool starts.
// In interactive contexts the user is asked whether to continue; declining
// aborts with the validation exit code and records no new run. Everywhere
// else the prior outcome is reported and the schedule proceeds.
func priorGate(prior supervisor.Prior, interactive bool, confirm func(supervisor.Prior) (bool, error)) error {
	switch prior.State {
	case supervisor.PriorFailed, supervisor.PriorIncomplete:
	default:
		return nil
	}
	fmt.Fprintln(os.Stderr, prior.Describe())
	if !interactive {
		return nil
	}
	proceed, err := confirm(prior)
	if err != nil {
		return err
	}
	if !proceed {
		return &exitError{code: hcerrors.ExitValidation}
	}
	return nil
}

// runValidation executes one run and renders it per the adapter's format.
// Validation failure surfaces as the exit code, never as an error message.
func (a *app) runValidation(parent context.Context, adapter mode.Adapter, req engine.Request) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sup := supervisor.New(a.store, a.logger)
	if supervisor.IsChild() {
		// The parent already ran the prior-run gate before forking.
		defer sup.ChildCleanup()
	} else {
		interactive := adapter.Interactivity != mode.InteractNone && term.IsTerminal(int(os.Stdin.Fd()))
		if err := priorGate(sup.CheckPrior(), interactive, sup.PromptContinue); err != nil {
			return err
		}
	}

	sink := a.sinkFor(adapter, false, cancel)
	eng := engine.New(a.cfg, a.reg, a.newExecutor(sink), a.store, a.extractor, a.repoRoot, a.logger)

	run, err := eng.Execute(ctx, req)
	if err != nil {
		return err
	}
	if parent.Err() != nil {
		return &exitError{code: hcerrors.ExitInterrupted}
	}

	if out := renderRun(run, adapter.Format); out != "" {
		fmt.Fprint(os.Stdout, out)
	}
	if code := engine.ExitCode(run); code != hcerrors.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// runNonblockingParent implements the hook-side half of the non-blocking
// contract: inspect the prior run, optionally confirm, spawn the detached
// child, and return immediately with exit 0.
func (a *app) runNonblockingParent(targets []string, staged, all, fix bool) error {
	if err := a.store.EnsureDirs(); err != nil {
		return err
	}
	sup := supervisor.New(a.store, a.logger)

	prior := sup.CheckPrior()
	if prior.State == supervisor.PriorStillRunning {
		fmt.Fprintln(os.Stderr, prior.Describe())
		return nil
	}
	if err := priorGate(prior, term.IsTerminal(int(os.Stdin.Fd())), sup.PromptContinue); err != nil {
		return err
	}

	runID := id.NewRunID()
	childArgs := []string{"validate", "--mode", string(mode.GitHooksNonblocking)}
	if staged {
		childArgs = append(childArgs, "--staged")
	}
	if all {
		childArgs = append(childArgs, "--all")
	}
	if fix {
		childArgs = append(childArgs, "--fix")
	}
	childArgs = append(childArgs, targets...)

	pid, err := sup.SpawnDetached(runID, string(mode.GitHooksNonblocking), childArgs)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "validation running in background (run %s, pid %d)\n", runID, pid)
	return nil
}

// renderRun serializes a finalized run for the given output format.
func renderRun(run *result.Run, format mode.OutputFormat) string {
	switch format {
	case mode.FormatMinimal:
		return result.SerializeMinimal(run)
	case mode.FormatJUnit:
		out, err := result.SerializeJUnit(run)
		if err != nil {
			return fmt.Sprintf("junit serialization failed: %v\n", err)
		}
		return string(out)
	case mode.FormatJSON, mode.FormatJSONRPC:
		out, err := result.SerializeJSON(run)
		if err != nil {
			return fmt.Sprintf("json serialization failed: %v\n", err)
		}
		return string(out) + "\n"
	default:
		return result.SerializeHuman(run)
	}
}
