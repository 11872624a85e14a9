package poller

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "golang.org/x/image/webp" // register WebP decoder
)

const defaultMaxImageSize = 8 << 20 // 8MB

// Frame is one successfully loaded image.
type Frame struct {
	// Body is the encoded image.
	Body []byte

	// ContentType is the Content-Type reported by the device.
	ContentType string

	// Format is the decoder that accepted the body ("jpeg", "png", ...).
	Format string

	// Width and Height are the decoded dimensions.
	Width  int
	Height int

	// URL is the cache-busted URL the frame was loaded from.
	URL string

	// FetchedAt is when the frame was applied.
	FetchedAt time.Time

	// Latency is the duration of the HTTP request.
	Latency time.Duration
}

// FrameSink receives loaded frames. Like [Sink], RenderFrame is called under
// the refresher's lock and must not block.
type FrameSink interface {
	RenderFrame(Frame)
}

// ImageConfig configures an [ImageRefresher]. Zero fields take defaults.
type ImageConfig struct {
	// Request is the image request. Its URL gets a "_" cache-busting
	// parameter on every probe.
	Request Request

	// MinInterval is the delay after a successful load and the floor of the
	// backoff. Defaults to 2s.
	MinInterval time.Duration

	// MaxInterval caps the backoff and bounds a single probe. Defaults to 15s.
	MaxInterval time.Duration

	// Growth multiplies the interval after each failure. Defaults to 1.7.
	Growth float64

	Clock  Clock
	Logger *slog.Logger
}

// ImageRefresher reloads the device image on a self-rescheduling timer.
//
// Each probe completes exactly once, through whichever of the HTTP result
// and the probe watchdog gets there first. A failed probe grows the interval
// by Growth up to MaxInterval; a successful one renders the frame and resets
// the interval to MinInterval.
//
// The refresher has no generation counter: only one probe is ever started per
// completion, so there is nothing to supersede.
type ImageRefresher struct {
	fetcher  Fetcher
	request  Request
	sink     FrameSink
	maxProbe time.Duration
	clock    Clock
	logger   *slog.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	ctx      context.Context
	cancel   context.CancelCauseFunc
	interval *growthBackoff
	timer    Timer
	timerSeq uint64
	probes   uint64
	wg       sync.WaitGroup

	// settled is called after each probe completion. Tests only.
	settled func()
}

// NewImageRefresher creates a refresher that fetches with f and renders into
// sink.
func NewImageRefresher(f Fetcher, sink FrameSink, cfg ImageConfig) *ImageRefresher {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultImageMinInterval
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = max(DefaultImageMaxInterval, cfg.MinInterval)
	}
	if cfg.Growth <= 1 {
		cfg.Growth = DefaultImageGrowth
	}
	if cfg.Request.MaxBytes <= 0 {
		cfg.Request.MaxBytes = defaultMaxImageSize
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ImageRefresher{
		fetcher:  f,
		request:  cfg.Request,
		sink:     sink,
		maxProbe: cfg.MaxInterval,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		interval: newGrowthBackoff(cfg.MinInterval, cfg.MaxInterval, cfg.Growth),
	}
}

// Start issues the first probe immediately and keeps refreshing until Stop
// is called or ctx is cancelled.
//
// Start is non-blocking and idempotent. If Stop was called before Start,
// Start is a no-op.
func (r *ImageRefresher) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.stopped {
		return
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancelCause(ctx)

	context.AfterFunc(r.ctx, func() {
		r.mu.Lock()
		r.clearTimerLocked()
		r.mu.Unlock()
	})

	r.refreshLocked()
}

// Stop cancels the pending timer and the outstanding probe, then waits for
// the probe goroutine to return. Stop is idempotent.
func (r *ImageRefresher) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		r.clearTimerLocked()
		if r.cancel != nil {
			r.cancel(ErrStopped)
		}
	}
	r.mu.Unlock()

	r.wg.Wait()
}

// Run is Start followed by Stop once ctx is done.
func (r *ImageRefresher) Run(ctx context.Context) {
	r.Start(ctx)
	<-ctx.Done()
	r.Stop()
}

// Interval returns the delay the refresher is currently using.
func (r *ImageRefresher) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval.Current()
}

// Probes returns how many probes have been started.
func (r *ImageRefresher) Probes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.probes
}

func (r *ImageRefresher) runningLocked() bool {
	return r.started && !r.stopped && r.ctx.Err() == nil
}

func (r *ImageRefresher) scheduleLocked(d time.Duration) {
	r.clearTimerLocked()
	seq := r.timerSeq
	r.timer = r.clock.AfterFunc(d, func() { r.fire(seq) })
}

func (r *ImageRefresher) clearTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerSeq++
}

func (r *ImageRefresher) fire(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq != r.timerSeq || !r.runningLocked() {
		return
	}
	r.timer = nil
	r.refreshLocked()
}

// refreshLocked starts one probe.
func (r *ImageRefresher) refreshLocked() {
	target, err := cacheBust(r.request.URL, r.clock.Now())
	if err != nil {
		r.failLocked(target, err)
		return
	}
	r.probes++

	req := r.request
	req.URL = target
	ctx, cancel := context.WithCancelCause(r.ctx)

	var done atomic.Bool
	watchdog := r.clock.AfterFunc(r.maxProbe, func() {
		if !done.CompareAndSwap(false, true) {
			return
		}
		cancel(ErrTimeout)
		r.onError(target, fmt.Errorf("image probe: %w", ErrTimeout))
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel(nil)

		resp := r.fetcher.Fetch(ctx, req)
		if !done.CompareAndSwap(false, true) {
			return
		}
		watchdog.Stop()

		frame, err := probeFrame(resp)
		if err != nil {
			r.onError(target, err)
			return
		}
		frame.URL = target
		r.onLoad(frame)
	}()
}

func (r *ImageRefresher) onLoad(frame Frame) {
	r.mu.Lock()
	defer r.afterSettle()

	if !r.runningLocked() {
		return
	}
	frame.FetchedAt = r.clock.Now()
	r.renderSafe(frame)
	r.scheduleLocked(r.interval.Reset())
}

func (r *ImageRefresher) onError(target string, err error) {
	r.mu.Lock()
	defer r.afterSettle()

	if !r.runningLocked() {
		r.logger.Debug("image probe abandoned", "url", target, "error", err.Error())
		return
	}
	r.failLocked(target, err)
}

func (r *ImageRefresher) failLocked(target string, err error) {
	next := r.interval.Grow()
	r.logger.Warn("image refresh error",
		"url", target,
		"next", next,
		"error", err.Error(),
	)
	r.scheduleLocked(next)
}

// afterSettle releases the lock, then runs the test hook.
func (r *ImageRefresher) afterSettle() {
	settled := r.settled
	r.mu.Unlock()
	if settled != nil {
		settled()
	}
}

func (r *ImageRefresher) renderSafe(frame Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("frame sink panicked",
				"panic", fmt.Sprintf("%v", rec),
				"url", frame.URL,
			)
		}
	}()
	r.sink.RenderFrame(frame)
}

// cacheBust sets the "_" query parameter to now in unix milliseconds.
func cacheBust(base string, now time.Time) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return base, fmt.Errorf("invalid image url: %w", err)
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// probeFrame accepts a response the way an <img> element would: 2xx and a
// body that decodes as a known image format.
func probeFrame(resp Response) (Frame, error) {
	if resp.Error != nil {
		return Frame{}, resp.Error
	}
	if err := checkStatus(resp); err != nil {
		return Frame{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(resp.Body))
	if err != nil {
		return Frame{}, &FetchError{Stage: StageDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return Frame{
		Body:        resp.Body,
		ContentType: resp.ContentType,
		Format:      format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Latency:     resp.Latency,
	}, nil
}
