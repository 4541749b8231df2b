package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newCleanCommand(ctx context.Context, modeFlag *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Garbage-collect old run records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(ctx, *modeFlag)
			if err != nil {
				return err
			}
			if all {
				if err := a.store.Clear(); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "cleared run store at %s\n", a.store.Root())
				return nil
			}
			a.store.GC(time.Duration(a.cfg.RetentionDays) * 24 * time.Hour)
			fmt.Fprintf(os.Stdout, "removed runs older than %d days\n", a.cfg.RetentionDays)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "wipe the run store entirely")
	return cmd
}
