package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives decoded status snapshots.
//
// Render is called synchronously while the poller holds its lock, so that
// the staleness check and the apply are one step. Implementations must not
// block and must not call back into the poller.
type Sink interface {
	Render(Snapshot)
}

// StatusConfig configures a [StatusPoller]. Zero fields take defaults.
type StatusConfig struct {
	// Request is the status request. NoCache is always set.
	Request Request

	// Decoder parses the body. Defaults to [ModeHTML]'s decoder.
	Decoder Decoder

	// Policy computes the delay between ticks.
	// Defaults to 2s base, 15s max.
	Policy BackoffPolicy

	// RequestTimeout bounds one fetch. Defaults to Policy.Max.
	RequestTimeout time.Duration

	// Clock defaults to [SystemClock].
	Clock Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// StatusPoller keeps a status snapshot fresh by fetching it on a
// self-rescheduling timer.
//
// At any instant there is at most one pending timer and one in-flight fetch.
// Each tick advances a generation counter; a completion is applied to the
// sink, and may arm the next timer, only while its generation is still the
// live one. Cancellation of superseded, timed-out or paused fetches is
// best-effort, the generation check is what keeps stale results out.
//
// The lifecycle is NewStatusPoller → Start → (tick)* → Stop, and Start/Stop
// may alternate any number of times. Close stops and waits for in-flight
// fetches. All methods are safe for concurrent use.
type StatusPoller struct {
	fetcher        Fetcher
	request        Request
	decoder        Decoder
	sink           Sink
	policy         BackoffPolicy
	requestTimeout time.Duration
	clock          Clock
	logger         *slog.Logger

	mu         sync.Mutex
	active     bool
	closed     bool
	generation uint64
	failures   int
	nextDelay  time.Duration

	timer    Timer
	timerSeq uint64

	inFlight    context.CancelCauseFunc
	inFlightGen uint64

	wg sync.WaitGroup

	hooks statusHooks
}

// statusHooks are observation points for tests.
type statusHooks struct {
	settled func(gen uint64)
}

// NewStatusPoller creates a poller that fetches with f and renders into sink.
func NewStatusPoller(f Fetcher, sink Sink, cfg StatusConfig) *StatusPoller {
	if cfg.Decoder == nil {
		cfg.Decoder = ModeHTML.Decoder()
	}
	if cfg.Policy.Base <= 0 {
		cfg.Policy.Base = DefaultBaseInterval
	}
	if cfg.Policy.Max < cfg.Policy.Base {
		cfg.Policy.Max = max(DefaultMaxInterval, cfg.Policy.Base)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = cfg.Policy.Max
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Request.NoCache = true

	return &StatusPoller{
		fetcher:        f,
		request:        cfg.Request,
		decoder:        cfg.Decoder,
		sink:           sink,
		policy:         cfg.Policy,
		requestTimeout: cfg.RequestTimeout,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
	}
}

// Start cancels any pending timer and schedules the first tick after
// initialDelay. Start after Close is a no-op.
func (p *StatusPoller) Start(initialDelay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.active = true
	p.scheduleLocked(max(0, initialDelay))
}

// Stop cancels the pending timer and the in-flight fetch. Nothing is
// scheduled again until [StatusPoller.Start].
func (p *StatusPoller) Stop() {
	p.halt(ErrStopped)
}

// Pause is Stop with the "page hidden" cause.
func (p *StatusPoller) Pause() {
	p.halt(ErrHidden)
}

// Resume starts a fresh generation immediately, superseding whatever was
// pending.
func (p *StatusPoller) Resume() {
	p.Start(0)
}

// Close stops the poller for good and waits for in-flight fetches to return.
func (p *StatusPoller) Close() {
	p.halt(ErrStopped)

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}

// halt deactivates the loop. The generation advances so that a fetch that
// completes despite the cancellation is neither applied nor rescheduled.
func (p *StatusPoller) halt(cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = false
	p.generation++
	p.clearTimerLocked()
	if p.inFlight != nil {
		p.inFlight(cause)
		p.inFlight = nil
	}
}

// Generation returns the live generation.
func (p *StatusPoller) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Failures returns the consecutive-failure count.
func (p *StatusPoller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// NextDelay returns the delay used for the most recently armed timer.
func (p *StatusPoller) NextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextDelay
}

// Active reports whether the loop is started.
func (p *StatusPoller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Pending reports whether a timer is armed.
func (p *StatusPoller) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// InFlight reports whether a fetch is outstanding.
func (p *StatusPoller) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight != nil
}

// scheduleLocked replaces the pending timer with one firing after d.
func (p *StatusPoller) scheduleLocked(d time.Duration) {
	p.clearTimerLocked()
	seq := p.timerSeq
	p.nextDelay = d
	p.timer = p.clock.AfterFunc(d, func() { p.fire(seq) })
}

// clearTimerLocked stops the pending timer. Bumping the sequence also voids
// a callback that already fired and is waiting for the lock.
func (p *StatusPoller) clearTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.timerSeq++
}

func (p *StatusPoller) fire(seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq != p.timerSeq || !p.active {
		return
	}
	p.timer = nil
	p.tickLocked()
}

func (p *StatusPoller) tickLocked() {
	p.generation++
	myGen := p.generation

	if p.inFlight != nil {
		p.inFlight(ErrSuperseded)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	p.inFlight = cancel
	p.inFlightGen = myGen

	start := p.clock.Now()
	hardTimeout := p.clock.AfterFunc(p.requestTimeout, func() { cancel(ErrTimeout) })

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		resp := p.fetcher.Fetch(ctx, p.request)
		p.complete(ctx, cancel, myGen, start, hardTimeout, resp)
	}()
}

func (p *StatusPoller) complete(ctx context.Context, cancel context.CancelCauseFunc, myGen uint64, start time.Time, hardTimeout Timer, resp Response) {
	p.mu.Lock()
	defer func() {
		settled := p.hooks.settled
		p.mu.Unlock()
		if settled != nil {
			settled(myGen)
		}
	}()

	hardTimeout.Stop()
	if p.inFlightGen == myGen {
		p.inFlight = nil
	}

	err := resp.Error
	if err == nil {
		err = checkStatus(resp)
	}
	var snap Snapshot
	if err == nil {
		snap, err = p.safeDecode(resp.Body)
	}

	switch {
	case err != nil && ctx.Err() != nil:
		p.logger.Debug("status fetch canceled",
			"generation", myGen,
			"reason", context.Cause(ctx).Error(),
		)
	case err != nil:
		p.failures++
		p.logger.Warn("status poll error",
			"url", p.request.URL,
			"generation", myGen,
			"failures", p.failures,
			"error", err.Error(),
		)
	case myGen != p.generation:
		p.logger.Debug("discarding stale status result",
			"generation", myGen,
			"current", p.generation,
		)
	default:
		snap.Generation = myGen
		snap.FetchedAt = p.clock.Now()
		snap.Latency = resp.Latency
		p.renderSafe(snap)
		p.failures = 0
	}
	cancel(nil)

	if myGen == p.generation && p.active {
		elapsed := p.clock.Now().Sub(start)
		p.scheduleLocked(p.policy.Next(p.failures, elapsed))
	}
}

// safeDecode calls the decoder with panic recovery; a panic is a decode
// failure.
func (p *StatusPoller) safeDecode(body []byte) (snap Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("decoder panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = &FetchError{Stage: StageDecode, Err: fmt.Errorf("decoder panic (correlation_id: %s)", correlationID)}
		}
	}()
	snap, err = p.decoder.Decode(body)
	var fe *FetchError
	if err != nil && !errors.As(err, &fe) {
		err = &FetchError{Stage: StageDecode, Err: err}
	}
	return snap, err
}

// renderSafe calls the sink with panic recovery.
func (p *StatusPoller) renderSafe(snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("status sink panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"generation", snap.Generation,
			)
		}
	}()
	p.sink.Render(snap)
}
