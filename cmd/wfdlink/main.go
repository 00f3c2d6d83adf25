// Wfdlink establishes Wi-Fi Direct links from a Linux group owner and
// resolves the IP addresses of connected clients.
//
// It drives wpa_supplicant through wpa_cli for connection setup and group
// queries, then resolves each client's address through the OS ARP cache with
// a batch-parallel subnet scan as the last resort.
//
// Usage:
//
//	wfdlink [command] [flags]
//
// See 'wfdlink --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wfdtools/wfdlink/internal/logging"
	"github.com/wfdtools/wfdlink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wfdlink",
	Short: "Wi-Fi Direct link establishment and client IP resolution",
	Long: `Wfdlink establishes Wi-Fi Direct links from a Linux group owner.

It connects to peers via wpa_cli, waits for group formation, and resolves
the client's IP address through the ARP cache or a subnet scan.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wfdlink %s\n", version.Full())
	},
}

// setupLogging initializes the logger, preferring the environment variable,
// then the --log-level flag, then the registry preference.
func setupLogging() error {
	if os.Getenv(logging.LogLevelEnvVar) != "" {
		return logging.InitializeFromEnv()
	}
	level := logLevel
	if level == "" {
		if prefs := loadPreferences(); prefs != nil {
			level = prefs.LogLevel
		}
	}
	return logging.Initialize(level)
}
