package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/openclaw/eventmind/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing event search, similarity, processing, decisions and clusters as tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "eventmind MCP server started on stdio (database=%s)\n", a.db.Path())

		srv := mcpserver.NewServer(mcpserver.Deps{
			Semantic:     a.semantic,
			Orchestrator: a.orch,
			Decisions:    a.decisions.Decisions(),
			Clusters:     a.clusters.Store(),
		})
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
