package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jpalmerr/pulsecam"
	"github.com/jpalmerr/pulsecam/config"
	"github.com/spf13/cobra"
)

// watchCmd shows the device in the terminal instead of a browser.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the camera status in the terminal",
	Long: `Show the live status table and snapshot details of the camera in the
terminal.

Status polling runs while the terminal window has focus and pauses when
it loses focus, the way the web dashboard pauses in a hidden tab. Press p
to hold polling manually.

Example:
  pulsecam watch -c config.yaml
  pulsecam watch --device-url http://192.168.4.1 --log-file pulsecam.log`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addSettingsFlags(watchCmd)
	watchCmd.Flags().String("log-file", "", "write JSON logs to this file (logs are discarded otherwise)")
}

// watchLogger returns a logger that does not draw over the terminal UI.
func watchLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = f.Close() }, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	device, err := config.BuildDevice(cfg)
	if err != nil {
		return fmt.Errorf("failed to build device: %w", err)
	}

	logPath, _ := cmd.Flags().GetString("log-file")
	logger, closeLog, err := watchLogger(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	// callbacks run under the status loop's lock, so they hand results to
	// the program from their own goroutines
	var program *tea.Program
	mon, err := pulsecam.NewMonitor(device,
		pulsecam.WithLogger(logger),
		pulsecam.WithSnapshotCallback(func(s pulsecam.Snapshot) {
			go program.Send(snapshotMsg{snap: s})
		}),
		pulsecam.WithFrameCallback(func(f pulsecam.Frame) {
			go program.Send(frameMsg{frame: f})
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	program = tea.NewProgram(newWatchModel(mon, device),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- mon.Run(ctx)
	}()

	_, runErr := program.Run()
	cancel()
	if err := <-done; err != nil {
		logger.Error("monitor stopped with error", "error", err)
	}

	if runErr != nil {
		if strings.Contains(runErr.Error(), "TTY") || strings.Contains(runErr.Error(), "/dev/tty") {
			return fmt.Errorf("watch requires a real terminal")
		}
		return fmt.Errorf("error running terminal UI: %w", runErr)
	}
	return nil
}
