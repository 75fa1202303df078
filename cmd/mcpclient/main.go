// Command mcpclient connects to an MCP server and runs the interactive chat,
// where the model may call the tools exposed by the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\nError occurred: %s\n", err.Error())
		os.Exit(1)
	}
}
