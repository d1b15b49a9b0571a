package cmd

import (
	"os/signal"

	"github.com/spf13/cobra"

	issuesmcp "github.com/joescharf/issuetracker/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client create, list, update and delete issues through
the same store the REST API uses. Configure the client with:

  {
    "mcpServers": {
      "issues": { "command": "issues", "args": ["mcp"] }
    }
  }

Available tools: issues_create, issues_list, issues_update, issues_delete`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	t, err := getTracker()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
	defer stop()

	return issuesmcp.NewServer(t, buildVersion).ServeStdio(ctx)
}
