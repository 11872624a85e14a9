// Package server provides the relay's HTTP server: dashboard and API.
//
// This package handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: JSON endpoint at "/api/status" for the current snapshot
//   - Server-Sent Events: Real-time updates at "/api/sse"
//   - Device mirror: "/status.html" and "/i/latest.jpg" as the camera serves them
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the pulsecam library should not need to interact with this
// package directly. The server is started by [pulsecam.Relay.Start].
package server
