package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pulsecam"
	"github.com/jpalmerr/pulsecam/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the PulseCam relay and dashboard.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Relay the camera to a web dashboard",
	Long: `Start the PulseCam relay.

The relay will:
  - Load configuration from the config file, environment, and flags
  - Refresh the camera snapshot, slowing down while it fails
  - Poll the status table while at least one dashboard is open
  - Serve the dashboard UI on the configured port

The relay runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  pulsecam serve -c config.yaml
  pulsecam serve --device-url http://192.168.4.1 --mode json
  PULSECAM_DEVICE_URL=http://192.168.4.1 pulsecam serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addSettingsFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadSettings(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	device, err := config.BuildDevice(cfg)
	if err != nil {
		return fmt.Errorf("failed to build device: %w", err)
	}

	logger.Info("config loaded",
		"device", device.Name(),
		"status_url", device.StatusURL(),
		"image_url", device.ImageURL(),
	)
	logger.Info("starting relay",
		"port", cfg.Port,
		"pause_when_idle", cfg.Pausing(),
	)

	relay, err := pulsecam.New(device, config.BuildOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- relay.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("relay error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("relay error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
