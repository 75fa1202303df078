package main

import (
	"fmt"
	"os"

	"github.com/effective-security/mcpclient/mcp"
	"github.com/effective-security/mcpclient/tools"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools <server>",
		Short: "List the tools exposed by the MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := mcp.Connect(ctx, args[0], mcp.WithStderr(os.Stderr))
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			list, err := client.ListTools(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tools.GetDescriptions(list...))
			return nil
		},
	}
}
