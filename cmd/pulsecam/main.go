// Package main is the entry point for the pulsecam CLI.
//
// PulseCam can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	pulsecam serve -c config.yaml    # Relay the camera to a web dashboard
//	pulsecam watch -c config.yaml    # Show the camera status in the terminal
//	pulsecam validate -c config.yaml # Validate configuration
//	pulsecam version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "pulsecam",
	Short: "A self-healing status relay for small HTTP cameras",
	Long: `PulseCam keeps a status table and the latest snapshot of a small
HTTP camera fresh without hammering it.

The status table is polled every 2s and backs off exponentially while the
device is failing. The snapshot is refreshed every 2s and slows down by 1.7x
per failure. Status polling pauses while nobody is watching.

Quick start:
  1. Create a config file (pulsecam.yaml)
  2. Run: pulsecam serve -c pulsecam.yaml
  3. Open http://localhost:8080 in your browser

Every setting can also come from a flag or a PULSECAM_* environment
variable, for example PULSECAM_DEVICE_URL=http://192.168.4.1.

Example config:
  port: 8080
  device_url: http://192.168.4.1
  mode: json
  decoder: fields:battery,wifi.rssi`,
	// No Run/RunE means this just shows help when called without subcommands
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
	Long:  `Print the version, commit hash, and build date of this pulsecam binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pulsecam %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
