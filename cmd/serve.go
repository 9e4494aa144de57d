package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/textbook-qa/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing ask_textbook and search_textbook tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(context.Background(), cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "bookqa MCP server started on stdio (index=%s, entries=%d)\n", cfg.VectorDBPath, a.index.Count())

		srv := mcpserver.NewServer(a.service)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
