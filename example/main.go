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
)

func main() {
	// start mock camera (see mock_server.go)
	go StartMockCamera(":9999")
	time.Sleep(100 * time.Millisecond)

	device, err := pulsecam.NewDevice("http://localhost:9999",
		pulsecam.WithName("Mock Camera"),
		pulsecam.WithMode(pulsecam.ModeJSON),
		pulsecam.WithDecoder(pulsecam.JSONFieldsDecoder("uptime", "heapFree", "wifiRSSI", "framesServed")),
	)
	if err != nil {
		slog.Error("failed to create device", "error", err)
		os.Exit(1)
	}

	relay, err := pulsecam.New(device,
		pulsecam.WithPort(8080),
		pulsecam.WithTitle("PulseCam Demo"),
		pulsecam.WithSnapshotCallback(func(s pulsecam.Snapshot) {
			slog.Info("status", "generation", s.Generation, "rows", len(s.Fields), "latency", s.Latency)
		}),
	)
	if err != nil {
		slog.Error("failed to create relay", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   PulseCam Demo                                       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   The mock camera drops offline every minute or so.   ║")
	fmt.Println("  ║   Status polling pauses when the tab is hidden.       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := relay.Start(ctx); err != nil {
		slog.Error("pulsecam error", "error", err)
		os.Exit(1)
	}
}
