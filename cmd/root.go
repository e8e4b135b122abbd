// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Data Portal - zero-copy cross-process data transport",
	Long: `Data Portal moves structured data between processes on the same machine
through shared-memory ring buffers, falling back to network transports when
peers live elsewhere.

Features:
  - Shared-memory regions under /dev/shm with lock-free SPSC rings
  - Checksummed binary framing shared across language bindings
  - Automatic transport selection driven by observed performance
  - Prometheus metrics for sends, receives, and retries`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (optional)")

	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(regionsCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
