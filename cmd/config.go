package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		shown := *cfg
		if shown.Anthropic.Key != "" {
			shown.Anthropic.Key = "[redacted]"
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return eris.Wrap(enc.Encode(shown), "config show")
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
