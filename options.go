package pulsecam

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// pcConfig holds mutable state during Relay and Monitor construction.
type pcConfig struct {
	title             string
	port              int
	logger            *slog.Logger
	pauseWhenIdle     bool
	httpClient        *http.Client
	statusBase        time.Duration
	statusMax         time.Duration
	imageMin          time.Duration
	imageMax          time.Duration
	imageGrowth       float64
	snapshotCallbacks []func(Snapshot)
	frameCallbacks    []func(Frame)
}

// Option is a function that configures a [Relay] or [Monitor] during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] and [NewMonitor] in a type-safe,
// extensible way. Options return an error if validation fails. Options that
// only concern the relay (port, title, idle pausing) are accepted and ignored
// by [NewMonitor].
type Option func(*pcConfig) error

// WithPort sets the HTTP port for the relay server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *pcConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "PulseCam".
func WithTitle(title string) Option {
	return func(cfg *pcConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger].
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pcConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithPauseWhenIdle controls whether the relay's status loop runs only while
// at least one dashboard is watching.
//
// A dashboard keeps an event stream open while its page is visible and closes
// it when the page is hidden. With pausing enabled (the default), the status
// loop is paused when the last stream closes and resumes with an immediate
// fetch when one opens. Disable it when other clients read /status.html or
// /api/status directly. The image loop is not affected.
func WithPauseWhenIdle(pause bool) Option {
	return func(cfg *pcConfig) error {
		cfg.pauseWhenIdle = pause
		return nil
	}
}

// WithHTTPClient sets the [http.Client] used to reach the device, for example
// one configured for a custom CA.
//
// The client's own Timeout should be zero or larger than the maximum backoff
// interval: the loops bound every request themselves.
//
// Returns an error if the client is nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *pcConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// WithStatusBackoff sets the status loop timing.
//
// While the device answers, a fetch starts every base interval (the request
// time is subtracted). After n consecutive failures the delay is
// base × 2ⁿ, capped at maxInterval. A fetch that takes longer than
// maxInterval is abandoned. Defaults to 2s and 15s.
//
// Returns an error if base is not positive or maxInterval is less than base.
func WithStatusBackoff(base, maxInterval time.Duration) Option {
	return func(cfg *pcConfig) error {
		if base <= 0 {
			return errors.New("status base interval must be positive")
		}
		if maxInterval < base {
			return errors.New("status max interval must not be less than the base interval")
		}
		cfg.statusBase = base
		cfg.statusMax = maxInterval
		return nil
	}
}

// WithImageBackoff sets the image loop timing.
//
// After a successful load the next probe starts minInterval later. Each
// failure multiplies the interval by growth, up to maxInterval, which also
// bounds a single probe. Defaults to 2s, 15s and 1.7.
//
// Returns an error if the intervals are out of order or growth is not greater
// than 1.
func WithImageBackoff(minInterval, maxInterval time.Duration, growth float64) Option {
	return func(cfg *pcConfig) error {
		if minInterval <= 0 {
			return errors.New("image min interval must be positive")
		}
		if maxInterval < minInterval {
			return errors.New("image max interval must not be less than the min interval")
		}
		if growth <= 1 {
			return errors.New("image growth factor must be greater than 1")
		}
		cfg.imageMin = minInterval
		cfg.imageMax = maxInterval
		cfg.imageGrowth = growth
		return nil
	}
}

// WithSnapshotCallback registers a function to be called with every applied
// status [Snapshot].
//
// Multiple callbacks may be registered; they execute in registration order.
// Stale, cancelled and failed fetches never reach a callback.
//
// IMPORTANT: Callbacks must be non-blocking and must not call back into the
// [Monitor]. They run while the status loop holds its lock, which is what
// guarantees that a snapshot is never delivered after a newer generation has
// started. Dispatch long-running work to a separate goroutine.
//
// Panics within callbacks are recovered and logged; they do not stop the
// loop.
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *pcConfig) error {
		if cb == nil {
			return nil
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}

// WithFrameCallback registers a function to be called with every image
// [Frame] that loads successfully.
//
// The same rules as [WithSnapshotCallback] apply: callbacks run in
// registration order, must be non-blocking, and panics are recovered.
//
// Nil callbacks are silently ignored.
func WithFrameCallback(cb func(Frame)) Option {
	return func(cfg *pcConfig) error {
		if cb == nil {
			return nil
		}
		cfg.frameCallbacks = append(cfg.frameCallbacks, cb)
		return nil
	}
}
