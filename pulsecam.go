package pulsecam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/pulsecam/dashboard"
	"github.com/jpalmerr/pulsecam/internal/server"
	"github.com/jpalmerr/pulsecam/internal/store"
	"github.com/jpalmerr/pulsecam/internal/visibility"
)

const defaultPort = 8080

// Relay keeps one device's status and image fresh and serves them to
// dashboards.
//
// Relay coordinates the status and image loops, stores the latest results,
// and serves a live dashboard plus device-compatible routes via HTTP. It is
// created using [New] with functional options and started with
// [Relay.Start].
//
// The typical lifecycle is:
//
//	dev, err := pulsecam.NewDevice("http://192.168.4.1")
//	if err != nil {
//	    slog.Error("invalid device", "error", err)
//	    os.Exit(1)
//	}
//	relay, err := pulsecam.New(dev)
//	if err != nil {
//	    slog.Error("failed to create relay", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	relay.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type Relay struct {
	device        Device
	title         string
	port          int
	pauseWhenIdle bool
	logger        *slog.Logger
	cfg           *pcConfig
}

// New creates a new [Relay] for device with the given options.
//
// Options have sensible defaults:
//   - Port: 8080
//   - Status loop: 2s base, 15s max
//   - Image loop: 2s min, 15s max, growth 1.7
//   - Pause when idle: true
//
// Returns an error if the device is the zero value or if any option is
// invalid.
//
// Example:
//
//	relay, err := pulsecam.New(dev,
//	    pulsecam.WithPort(9090),
//	    pulsecam.WithTitle("Garden Cam"),
//	)
func New(device Device, opts ...Option) (*Relay, error) {
	cfg, err := buildConfig(device, opts)
	if err != nil {
		return nil, err
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		device:        device,
		title:         cfg.title,
		port:          cfg.port,
		pauseWhenIdle: cfg.pauseWhenIdle,
		logger:        logger,
		cfg:           cfg,
	}, nil
}

// buildConfig applies opts over the defaults.
func buildConfig(device Device, opts []Option) (*pcConfig, error) {
	if device.baseURL == "" {
		return nil, errors.New("device is required (use NewDevice)")
	}

	cfg := &pcConfig{
		port:          defaultPort,
		pauseWhenIdle: true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Start begins polling the device and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The image is fetched immediately, then on its own backoff schedule
//   - The status table is fetched while a dashboard is watching (or always,
//     with WithPauseWhenIdle(false))
//   - The HTTP server starts on the configured port
//   - The dashboard is available at http://localhost:<port>
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start or stops unexpectedly.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("pulsecam starting",
		"device", r.device.Name(),
		"url", r.device.URL(),
		"mode", r.device.Mode().String(),
	)
	r.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", r.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	statusStore := store.NewMemoryStore()

	initial := visibility.Visible
	if r.pauseWhenIdle {
		initial = visibility.Hidden
	}
	mon := newMonitor(r.device, r.cfg, statusStore, initial)

	// an open dashboard event stream is a visible page
	if r.pauseWhenIdle {
		statusStore.WatchSubscribers(func(n int) {
			mon.gate.Set(visibility.FromViewers(n))
		})
	}

	httpServer := server.NewServer(statusStore, r.port, dashboard.Assets, r.title, r.logger)
	if err := httpServer.Start(ctx); err != nil {
		mon.shutdown()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(gctx)
	})
	g.Go(func() error {
		if err := httpServer.Wait(); err != nil {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	})

	err := g.Wait()
	r.logger.Info("pulsecam stopped")
	return err
}

// Device returns the relayed device.
func (r *Relay) Device() Device {
	return r.device
}

// Port returns the configured HTTP port for the dashboard server.
func (r *Relay) Port() int {
	return r.port
}

// PauseWhenIdle reports whether the status loop only runs while a dashboard
// is watching.
func (r *Relay) PauseWhenIdle() bool {
	return r.pauseWhenIdle
}
