package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"huskycat/internal/engine"
	"huskycat/internal/rpc"
	"huskycat/internal/version"
)

func newMCPServerCommand(ctx context.Context, modeFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve validation over JSON-RPC on stdin/stdout for agent hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(ctx, *modeFlag)
			if err != nil {
				return err
			}
			// The agent owns the terminal; validation runs silently and
			// results travel back inside responses.
			eng := engine.New(a.cfg, a.reg, a.newExecutor(nil), a.store, a.extractor, a.repoRoot, a.logger)
			server := rpc.NewServer(eng, version.Version, a.logger)
			return server.Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}
