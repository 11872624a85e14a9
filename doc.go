// Package pulsecam keeps the status table and latest image of a networked
// camera fresh, and relays them to live dashboards.
//
// PulseCam is designed as an SDK-first library. The core is a pair of
// self-healing polling loops: a status loop that fetches the device's status
// table, and an image loop that reloads the device's latest picture. Each
// loop has at most one request in flight and one timer pending, backs off
// while the device is unreachable, and recovers on the first success.
//
// # Quick Start
//
// Describe the device and start the relay with graceful shutdown:
//
//	dev, _ := pulsecam.NewDevice("http://192.168.4.1")
//	relay, _ := pulsecam.New(dev)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	relay.Start(ctx) // blocks until context is cancelled
//
// To run the loops without a server, use a [Monitor] and report visibility
// with [Monitor.SetVisible].
//
// # Configuration
//
// PulseCam uses the functional options pattern for configuration:
//
//	relay, err := pulsecam.New(dev,
//	    pulsecam.WithPort(9090),
//	    pulsecam.WithTitle("Garden Cam"),
//	    pulsecam.WithStatusBackoff(2*time.Second, 15*time.Second),
//	    pulsecam.WithSnapshotCallback(func(s pulsecam.Snapshot) { ... }),
//	)
//
// Devices can also be configured with options:
//
//	dev, err := pulsecam.NewDevice("https://cams.example.com/garden",
//	    pulsecam.WithName("Garden"),
//	    pulsecam.WithMode(pulsecam.ModeJSON),
//	    pulsecam.WithHeaders("Authorization", "Bearer token"),
//	)
//
// # Status Loop
//
// Every tick starts a new generation. A result is applied only if its
// generation is still the live one when it completes; anything superseded,
// timed out, or cancelled because the display was hidden is dropped and
// never counts as a failure. Failures double the delay from the base
// interval up to the maximum; a success resets it.
//
// # Image Loop
//
// The image is fetched with a cache-busting query parameter. A failed load
// multiplies the interval by 1.7 up to the maximum; a successful one resets
// it to the minimum. Each probe completes exactly once, whether the response
// or the probe deadline gets there first.
//
// # Decoders
//
// Decoders turn a status body into table rows:
//
//   - [TableDecoder]: Reads the rows of a <tbody> fragment
//   - [JSONDecoder]: Reads a flat JSON object in document order
//   - [JSONFieldsDecoder]: Picks fields out of nested JSON using dot notation
//   - [RegexDecoder]: Reads named capture groups from any text body
//   - [FirstMatch]: Tries multiple decoders in order
//
// # Architecture
//
// PulseCam consists of several internal packages (under internal/):
//
//   - internal/poller: The status and image loops, backoff and HTTP client
//   - internal/visibility: Maps visible/hidden signals to pause/resume
//   - internal/render: Pure conversions between table markup and rows
//   - internal/store: In-memory storage with pub/sub for real-time updates
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package pulsecam
