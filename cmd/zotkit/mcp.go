package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zotkit/zotkit/pkg/config"
	"github.com/zotkit/zotkit/pkg/mcp"
)

var mcpVerbose bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the zotkit MCP server (stdio)",
	Long: `Start a Model Context Protocol (MCP) server that exposes Zotero search,
item, note, annotation, collection, and import functionality as MCP tools
via STDIO.

Configuration comes from the environment (or a .env file):

  ZOTERO_LOCAL=true         talk to a running Zotero desktop app
  ZOTERO_API_KEY=...        web API key for hosted access and writes
  ZOTERO_LIBRARY_ID=...     numeric library ID
  ZOTERO_LIBRARY_TYPE=user  'user' or 'group'

Example:

  zotkit mcp 2> server.log`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(mcpVerbose)

		env := config.Read()
		mode := "web API"
		if env.Local {
			mode = "local Zotero"
		}
		// Log to stderr so we don't contaminate the JSON-RPC stream on stdout.
		fmt.Fprintf(os.Stderr, "zotkit MCP server started (%s mode, %s/%s)\n", mode, env.LibraryType, env.LibraryID)
		fmt.Fprintln(os.Stderr, "Listening for MCP JSON-RPC on STDIN/STDOUT ... (Ctrl+C to quit)")

		srv := mcp.NewZotkitMCPServer(log)
		return srv.Start()
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpVerbose, "verbose", false, "Enable debug logging on stderr")
}
