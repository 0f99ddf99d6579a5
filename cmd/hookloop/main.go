// Package main is the entry point for the hookloop CLI.
//
// The polling engine can be used as a library (SDK) or driven from a YAML
// config with this binary.
//
// Usage:
//
//	hookloop run -c config.yaml       # Run the configured pollers
//	hookloop validate -c config.yaml  # Validate configuration
//	hookloop version                  # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "hookloop",
	Short: "Run retrying HTTP pollers from a config file",
	Long: `hookloop runs a set of HTTP pollers defined in a YAML file.

Each poller invokes its URL on a schedule (fixed interval or continuous),
retries failures with a configurable delay and budget, and logs every
outcome. With --listen, results are also streamed to websocket
subscribers.

Example config:
  poll_interval: 10s
  pollers:
    - name: GitHub API
      url: https://api.github.com
      max_retries: 3
      retry_delay: 2s`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this hookloop binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hookloop %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
