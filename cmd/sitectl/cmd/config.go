package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		source := viper.ConfigFileUsed()
		if source == "" {
			source = "(none)"
		}
		key := "(not set)"
		if GetAPIKey() != "" {
			key = maskKey(GetAPIKey())
		}

		out := cmd.OutOrStdout()
		if IsJSONOutput() {
			return printJSON(out, map[string]string{
				"url":         GetSiteURL(),
				"api_key":     key,
				"config_file": source,
				"output":      outputFormat,
			})
		}
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  URL:         %s\n", GetSiteURL())
		fmt.Fprintf(out, "  API key:     %s\n", key)
		fmt.Fprintf(out, "  Config file: %s\n", source)
		fmt.Fprintf(out, "  Output:      %s\n", outputFormat)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

// maskKey keeps the last four characters of a key
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
