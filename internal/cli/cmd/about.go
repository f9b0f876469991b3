package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var aboutCmd = &cobra.Command{
	Use:   "about",
	Short: "Show version and build information",
	RunE:  runAbout,
}

func init() {
	rootCmd.AddCommand(aboutCmd)
}

func runAbout(_ *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	info := app.BuildInfo
	fmt.Printf("screenflow %s\n", info.Version)
	if info.Commit != "" {
		fmt.Printf("  commit: %s\n", info.Commit)
	}
	if info.Date != "" {
		fmt.Printf("  built:  %s\n", info.Date)
	}
	fmt.Printf("  backend: %s\n", app.Config.API.BaseURL)
	return nil
}
