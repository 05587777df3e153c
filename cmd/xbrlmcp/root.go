package main

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/xbrlmcp/internal/app"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xbrlmcp",
		Short:         "MCP server for the XBRL US financial data API",
		Long:          "xbrlmcp exposes XBRL US data as MCP tools. Each MCP session authenticates with the credentials in its endpoint URL and reuses the issued token until it expires.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       app.Version,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}
