package pulsecam

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jpalmerr/pulsecam/internal/poller"
	"github.com/jpalmerr/pulsecam/internal/store"
	"github.com/jpalmerr/pulsecam/internal/visibility"
)

// Monitor runs the status and image loops for one [Device] without serving
// anything.
//
// Monitor is the SDK entry point for embedding the loops in another program,
// such as a terminal display. Results are delivered through the callbacks
// registered with [WithSnapshotCallback] and [WithFrameCallback].
//
// The status loop follows the visibility reported with [Monitor.SetVisible]:
// it pauses while hidden and fetches immediately when shown again. A new
// Monitor starts visible. The image loop runs regardless of visibility.
//
//	mon, err := pulsecam.NewMonitor(dev,
//	    pulsecam.WithSnapshotCallback(func(s pulsecam.Snapshot) {
//	        fmt.Println(s.Generation, len(s.Fields))
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	return mon.Run(ctx) // blocks until ctx is cancelled
type Monitor struct {
	device Device
	logger *slog.Logger
	client *poller.Client
	status *poller.StatusPoller
	image  *poller.ImageRefresher
	gate   *visibility.Gate

	mu  sync.Mutex
	ran bool
}

// NewMonitor creates a [Monitor] for device.
//
// Relay-only options ([WithPort], [WithTitle], [WithPauseWhenIdle]) are
// accepted and ignored.
//
// Returns an error if the device is the zero value or any option is invalid.
func NewMonitor(device Device, opts ...Option) (*Monitor, error) {
	cfg, err := buildConfig(device, opts)
	if err != nil {
		return nil, err
	}
	return newMonitor(device, cfg, nil, visibility.Visible), nil
}

// newMonitor wires the loops. When st is not nil every applied snapshot and
// frame is also written to it, before the callbacks run.
func newMonitor(device Device, cfg *pcConfig, st store.Store, initial visibility.State) *Monitor {
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("device", device.Name())

	client := poller.NewClient()
	if cfg.httpClient != nil {
		client = poller.NewClientWith(cfg.httpClient)
	}

	sink := &monitorSink{
		store:             st,
		snapshotCallbacks: cfg.snapshotCallbacks,
		frameCallbacks:    cfg.frameCallbacks,
		logger:            logger,
	}

	status := poller.NewStatusPoller(client, sink, poller.StatusConfig{
		Request: poller.Request{
			URL:     device.StatusURL(),
			Headers: device.Headers(),
		},
		Decoder: statusDecoder(device.Mode(), device.Decoder()),
		Policy:  poller.BackoffPolicy{Base: cfg.statusBase, Max: cfg.statusMax},
		Logger:  logger,
	})

	image := poller.NewImageRefresher(client, sink, poller.ImageConfig{
		Request: poller.Request{
			URL:     device.ImageURL(),
			Headers: device.Headers(),
		},
		MinInterval: cfg.imageMin,
		MaxInterval: cfg.imageMax,
		Growth:      cfg.imageGrowth,
		Logger:      logger,
	})

	return &Monitor{
		device: device,
		logger: logger,
		client: client,
		status: status,
		image:  image,
		gate:   visibility.NewGate(status, initial, logger),
	}
}

// Run starts both loops and blocks until ctx is cancelled, then stops them
// and waits for outstanding requests to return.
//
// Returns nil on shutdown. A Monitor can only be run once; later calls
// return an error.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.ran {
		m.mu.Unlock()
		return errors.New("monitor can only be run once")
	}
	m.ran = true
	m.mu.Unlock()

	if ctx.Err() != nil {
		m.shutdown()
		return nil
	}

	m.logger.Info("monitor starting",
		"status_url", m.device.StatusURL(),
		"image_url", m.device.ImageURL(),
		"visible", m.gate.State() == visibility.Visible,
	)

	m.gate.Bind()
	m.image.Start(ctx)

	<-ctx.Done()
	m.shutdown()
	m.logger.Info("monitor stopped")
	return nil
}

// shutdown stops both loops for good and releases idle connections.
func (m *Monitor) shutdown() {
	m.status.Close()
	m.image.Stop()
	m.client.Close()
}

// SetVisible reports the visibility of whatever displays the status.
//
// A hidden→visible transition starts a fresh generation with an immediate
// fetch; visible→hidden cancels the pending timer and the in-flight fetch.
// Repeating the current state does nothing. Reports whether the call was a
// transition.
//
// SetVisible may be called before [Monitor.Run]; the last state wins.
func (m *Monitor) SetVisible(visible bool) bool {
	return m.gate.SetVisible(visible)
}

// Stats returns a point-in-time view of both loops.
func (m *Monitor) Stats() Stats {
	return Stats{
		Generation:    m.status.Generation(),
		Failures:      m.status.Failures(),
		NextDelay:     m.status.NextDelay(),
		Polling:       m.status.Active(),
		InFlight:      m.status.InFlight(),
		Visible:       m.gate.State() == visibility.Visible,
		ImageInterval: m.image.Interval(),
		ImageProbes:   m.image.Probes(),
	}
}

// Device returns the monitored device.
func (m *Monitor) Device() Device {
	return m.device
}

// monitorSink fans applied results out to the store and the callbacks.
type monitorSink struct {
	store             store.Store
	snapshotCallbacks []func(Snapshot)
	frameCallbacks    []func(Frame)
	logger            *slog.Logger
}

func (s *monitorSink) Render(snap poller.Snapshot) {
	// store update first (callbacks fire after data is persisted)
	if s.store != nil {
		s.store.UpdateStatus(storeStatus(snap))
	}

	if len(s.snapshotCallbacks) > 0 {
		public := snapshotFromPoller(snap)
		for _, cb := range s.snapshotCallbacks {
			invokeCallbackSafe(cb, public, s.logger, "snapshot")
		}
	}

	s.logger.Debug("status applied",
		"generation", snap.Generation,
		"fields", len(snap.Fields),
		"latency_ms", snap.Latency.Milliseconds(),
	)
}

func (s *monitorSink) RenderFrame(f poller.Frame) {
	if s.store != nil {
		s.store.UpdateFrame(storeFrame(f))
	}

	if len(s.frameCallbacks) > 0 {
		public := frameFromPoller(f)
		for _, cb := range s.frameCallbacks {
			invokeCallbackSafe(cb, public, s.logger, "frame")
		}
	}

	s.logger.Debug("frame applied",
		"format", f.Format,
		"width", f.Width,
		"height", f.Height,
		"latency_ms", f.Latency.Milliseconds(),
	)
}

// invokeCallbackSafe calls a callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe[T any](cb func(T), v T, logger *slog.Logger, kind string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked",
				"panic", r,
				"kind", kind,
			)
		}
	}()
	cb(v)
}
