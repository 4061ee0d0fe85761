package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/mcptools"
)

func newMCPCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve drift analysis tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(gf)
			if err != nil {
				return err
			}
			a.logger.Info("serving MCP over stdio")
			return server.ServeStdio(mcptools.NewServer(a.svc, version))
		},
	}
}
