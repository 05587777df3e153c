package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/xbrlmcp/internal/app"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "xbrlmcp %s (%s)\n", app.Version, runtime.Version())
		},
	}
}
