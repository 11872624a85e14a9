package main

import (
	"fmt"

	"github.com/jpalmerr/pulsecam/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the relay.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a PulseCam configuration without contacting the device.

This command parses the YAML, applies environment variables and flags,
expands ${VAR} references, and validates all fields. It's useful for
CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pulsecam validate -c config.yaml
  pulsecam validate --device-url http://192.168.4.1`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addSettingsFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	device, err := config.BuildDevice(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	decoder := cfg.Decoder.Type
	if decoder == "" {
		decoder = "default"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Device:        %s\n", device.Name())
	fmt.Printf("  Status URL:    %s\n", device.StatusURL())
	fmt.Printf("  Image URL:     %s\n", device.ImageURL())
	fmt.Printf("  Decoder:       %s\n", decoder)
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Pause idle:    %t\n", cfg.Pausing())

	return nil
}
