package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Inspect screen definitions",
}

var screenGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Resolve a screen definition and its first data page",
	Long: `Resolve a screen key through the cache stack and print the parsed
definition. When the screen binds a data endpoint, the first data page is
loaded too and included in the output.`,
	Args: cobra.ExactArgs(1),
	RunE: runScreenGet,
}

var screenVersionCmd = &cobra.Command{
	Use:   "version <key>",
	Short: "Check whether the cached definition is still current",
	Args:  cobra.ExactArgs(1),
	RunE:  runScreenVersion,
}

func init() {
	rootCmd.AddCommand(screenCmd)
	screenCmd.AddCommand(screenGetCmd)
	screenCmd.AddCommand(screenVersionCmd)
}

func runScreenGet(cmd *cobra.Command, args []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	key := args[0]

	def, page, err := app.Engine.ResolveScreen(cmd.Context(), key)
	if err != nil {
		if def == nil {
			return fmt.Errorf("resolve screen %q: %w", key, err)
		}
		// The layout resolved; only the data fetch failed.
		fmt.Fprintf(os.Stderr, "Warning: data load failed: %v\n", err)
	}

	out := map[string]any{
		"key":          def.Key,
		"name":         def.Name,
		"pattern":      def.Pattern,
		"majorVersion": def.MajorVersion,
		"zones":        len(def.Template.Zones),
	}
	if def.DataEndpoint != "" {
		out["dataEndpoint"] = def.DataEndpoint
	}
	if page != nil {
		out["items"] = len(page.Items)
		out["hasNextPage"] = page.HasNextPage
	}

	return printJSON(out)
}

func runScreenVersion(cmd *cobra.Command, args []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	key := args[0]

	if invalidated := app.Engine.Screens.CheckVersion(cmd.Context(), key); invalidated {
		fmt.Printf("Screen %q changed major version; cached definition dropped\n", key)
		return nil
	}
	fmt.Printf("Screen %q is current\n", key)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
