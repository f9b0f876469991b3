// Package cmd provides Cobra CLI commands for screenflow.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/screenflow/screenflow/internal/cli"
	"github.com/screenflow/screenflow/internal/logging"
)

var (
	app       *cli.App
	buildInfo cli.BuildInfo
	rootCmd   = &cobra.Command{
		Use:   "screenflow",
		Short: "Server-driven UI client engine",
		Long: `Screenflow resolves server-defined screens and their data through a
layered client-side cache.

The engine fetches screen definitions from a screen-config backend,
caches them with conditional revalidation, normalizes and caches the
data each screen binds, and keeps scrolling smooth with speculative
next-page prefetches.

Use the subcommands to inspect what the engine resolves:
  screenflow screen get <key>     # resolve a screen definition
  screenflow data get <endpoint>  # fetch a data endpoint through the cache
  screenflow config show          # print the effective configuration`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip initialization for commands that don't need app context
			switch cmd.Name() {
			case "help", "completion":
				return nil
			}

			var err error
			app, err = cli.NewApp()
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			app.BuildInfo = buildInfo
			// Make the configured logger reachable from every ctx-aware
			// component the commands call into.
			cmd.SetContext(logging.WithContext(cmd.Context(), app.Log))
			return nil
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GetApp returns the initialized app (for use by subcommands).
func GetApp() *cli.App {
	return app
}

// SetBuildInfo sets the build information (called from main.go before Execute).
func SetBuildInfo(info cli.BuildInfo) {
	buildInfo = info
}
