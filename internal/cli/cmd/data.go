package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

var dataParams []string

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Inspect data endpoints",
}

var dataGetCmd = &cobra.Command{
	Use:   "get <endpoint>",
	Short: "Fetch a data endpoint through the cache",
	Long: `Fetch an endpoint through the data cache and print the normalized
payload. Parameters are passed with repeated --param flags:

  screenflow data get /api/tasks --param offset=0 --param limit=20`,
	Args: cobra.ExactArgs(1),
	RunE: runDataGet,
}

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataGetCmd)
	dataGetCmd.Flags().StringArrayVar(&dataParams, "param", nil, "query parameter as key=value")
}

func runDataGet(cmd *cobra.Command, args []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	params := url.Values{}
	for _, p := range dataParams {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("invalid --param %q, expected key=value", p)
		}
		params.Add(key, value)
	}

	payload, err := app.Engine.LoadData(cmd.Context(), args[0], params)
	if err != nil {
		return fmt.Errorf("load data %q: %w", args[0], err)
	}
	return printJSON(payload)
}
