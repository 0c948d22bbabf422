package cmd

import (
	"github.com/huangsam/skysched/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the skysched MCP server",
	Long:  `Launch an MCP server that lets AI agents upload schedules and query their analytics via standard tools.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Logs go to stderr; stdout carries the protocol.
		return sharedSetup(rootCtx, cmd, args)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, mcp.Deps{
			Store:     app.store,
			Queries:   app.queries,
			Populator: app.populator,
			Uploader:  app.uploader,
			Bridge:    app.bridge,
		})
	},
}
