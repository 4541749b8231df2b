package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"huskycat/internal/hcerrors"
)

func newConfigCommand(ctx context.Context, modeFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(ctx, *modeFlag)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return hcerrors.Wrap(hcerrors.KindIO, err, "render configuration")
			}
			fmt.Fprint(os.Stdout, string(data))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "tools",
		Short: "List the registered tools and their dependency levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(ctx, *modeFlag)
			if err != nil {
				return err
			}
			for i, level := range a.reg.Levels() {
				for _, name := range level {
					tool, _ := a.reg.Lookup(name)
					fmt.Fprintf(os.Stdout, "level %d: %-12s license=%-12s cost=%d\n",
						i, tool.Name, tool.License, tool.Cost)
				}
			}
			return nil
		},
	})
	return cmd
}
