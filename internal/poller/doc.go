// Package poller implements the two self-healing polling loops that keep a
// camera display fresh.
//
// The main components are:
//
//   - [StatusPoller]: fetches the status table on a self-rescheduling timer,
//     stamping each tick with a generation so that only the newest result is
//     ever rendered, and backing off exponentially on failure
//   - [ImageRefresher]: reloads the device image with a cache-busting query
//     and a multiplicative backoff
//   - [BackoffPolicy]: the status loop's delay function
//   - [Client]: the HTTP [Fetcher] both loops use
//
// At most one timer and one request are outstanding per loop. Cancellation
// is cooperative: a cancelled request may still complete, and the loops
// discard such results instead of relying on the transport.
//
// Users of the pulsecam library should not need to interact with this
// package directly. Configuration is done through the main pulsecam package.
package poller
