package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/ssefeed/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ssewatch",
		Short:        "Watch a data: event stream",
		Long:         "ssewatch connects to an SSE or WebSocket stream, prints every state change as a JSON line and can archive each message.",
		SilenceUsage: true,
	}

	root.AddCommand(
		watchCmd(),
		versionCmd(),
	)
	return root
}

// --- ssewatch version ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ssewatch", version.String())
		},
	}
}
