package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"huskycat/internal/registry"
	"huskycat/internal/result"
	"huskycat/internal/router"
	"huskycat/internal/runstore"
)

func newStatusCommand(ctx context.Context, modeFlag *string) *cobra.Command {
	var showRun bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show detected mode, tool availability, and store locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(ctx, *modeFlag)
			if err != nil {
				return err
			}

			m := a.detectMode(ctx, "status")
			fmt.Fprintf(os.Stdout, "mode: %s\n", m)
			fmt.Fprintf(os.Stdout, "tool cache: %s\n", a.extractor.CacheDir())
			fmt.Fprintf(os.Stdout, "run store: %s\n", a.store.Root())

			fmt.Fprintln(os.Stdout, "tools:")
			for _, line := range toolVerdictLines(ctx, a.reg, a.router.Resolve) {
				fmt.Fprintln(os.Stdout, line)
			}

			live := 0
			for _, pf := range a.store.ReadPidFiles() {
				if runstore.PidAlive(pf.PID) {
					fmt.Fprintf(os.Stdout, "running: run %s (pid %d, %s, started %s)\n",
						pf.RunID, pf.PID, pf.Mode, pf.StartedAt.Format(time.RFC3339))
					live++
				}
			}
			if live == 0 {
				fmt.Fprintln(os.Stdout, "no validation running")
			}

			last, err := a.store.ReadLastRun()
			if err != nil {
				return err
			}
			if last == nil {
				fmt.Fprintln(os.Stdout, "no completed runs")
				return nil
			}
			verdict := "failed"
			if last.Success {
				verdict = "passed"
			}
			fmt.Fprintf(os.Stdout, "last run: %s %s at %s\n",
				last.RunID, verdict, last.FinishedAt.Format(time.RFC3339))

			if showRun {
				run, err := a.store.ReadRun(last.RunID)
				if err != nil {
					return err
				}
				fmt.Fprint(os.Stdout, result.SerializeHuman(run))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showRun, "full", false, "print the full report of the last run")
	return cmd
}

// toolVerdictLines renders one availability line per registered tool, in
// dependency-level order.
func toolVerdictLines(ctx context.Context, reg *registry.Registry, resolve func(context.Context, registry.Tool) router.Plan) []string {
	var lines []string
	for _, level := range reg.Levels() {
		for _, name := range level {
			tool, ok := reg.Lookup(name)
			if !ok {
				continue
			}
			plan := resolve(ctx, tool)
			line := fmt.Sprintf("  %-12s %s", tool.Name, plan.Verdict)
			if plan.Verdict == router.VerdictUnavailable && plan.Reason != "" {
				line += " (" + plan.Reason + ")"
			}
			lines = append(lines, line)
		}
	}
	return lines
}
