// Command xbrlmcp serves XBRL US data to MCP clients over streamable HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xbrlmcp:", err)
		os.Exit(1)
	}
}
