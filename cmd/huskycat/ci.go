package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"huskycat/internal/engine"
	"huskycat/internal/hcerrors"
	"huskycat/internal/mode"
	"huskycat/internal/result"
)

func newCIValidateCommand(ctx context.Context, modeFlag *string) *cobra.Command {
	var (
		fix    bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "ci-validate [targets...]",
		Short: "Run the full tool set and emit a JUnit XML report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(ctx, *modeFlag)
			if err != nil {
				return err
			}
			adapter := mode.ForMode(mode.CI)

			eng := engine.New(a.cfg, a.reg, a.newExecutor(nil), a.store, a.extractor, a.repoRoot, a.logger)
			run, err := eng.Execute(ctx, engine.Request{
				Adapter: adapter,
				Targets: args,
				Fix:     fix,
			})
			if err != nil {
				return err
			}

			report, err := result.SerializeJUnit(run)
			if err != nil {
				return err
			}
			if output != "" {
				if err := os.WriteFile(output, report, 0o644); err != nil {
					return hcerrors.Wrap(hcerrors.KindIO, err, "write report %s", output)
				}
				fmt.Fprintf(os.Stderr, "wrote %s\n", output)
			} else {
				fmt.Fprint(os.Stdout, string(report))
			}

			if code := engine.ExitCode(run); code != hcerrors.ExitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "let fix-capable tools rewrite their findings")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the JUnit report to a file instead of stdout")
	return cmd
}
