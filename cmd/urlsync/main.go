package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "urlsync",
		Short: "Bidirectional filter-state and URL synchronization",
		Long: `urlsync keeps screen filter state and URL query parameters in
lockstep, in both directions.

Filter edits are projected to the URL, URL changes (deep links,
back/forward) are reconciled into filter state, and each settled
state triggers a debounced, cancellable data fetch. The serve
command runs a WebSocket bridge that hosts one sync session per
connected client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
