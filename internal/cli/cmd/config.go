package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/screenflow/screenflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the merged configuration after defaults, file and environment overrides.`,
	RunE:  runConfigShow,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate the JSON schema for the config file",
	RunE: func(_ *cobra.Command, _ []string) error {
		return config.GenerateSchemaFile()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Show the config file location, creating a default file if missing",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSchemaCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	if file := app.Manager.GetConfigFile(); file != "" {
		fmt.Fprintf(os.Stderr, "Config file: %s\n", file)
	}
	return printJSON(app.Config)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	// NewApp already created the default file when none existed.
	configFile, err := config.GetConfigFile()
	if err != nil {
		return err
	}
	fmt.Println(configFile)
	return nil
}
