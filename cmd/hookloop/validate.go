package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfield/hookloop/config"
)

// validateCmd validates a config file without running any pollers.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a hookloop configuration file without running any pollers.

This command parses the YAML, expands environment variables, and
validates all fields. Useful for CI/CD pipelines or pre-deployment
checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  hookloop validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	continuous := 0
	for _, p := range cfg.Pollers {
		if p.Mode == "continuous" {
			continuous++
		}
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Pollers:       %d (%d continuous)\n", len(cfg.Pollers), continuous)

	return nil
}
