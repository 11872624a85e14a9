package poller

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"
)

// testLogger returns a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// manualClock is a Clock whose time only moves on Advance. Due callbacks run
// synchronously inside Advance, in deadline order.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	done    bool
	created int
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f, created: len(c.timers)}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward by d, firing every timer that falls due.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*manualTimer
		for _, t := range c.timers {
			if !t.done && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].created < due[j].created
			}
			return due[i].at.Before(due[j].at)
		})
		next := due[0]
		next.done = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.f()
	}
}

// Armed returns how many timers are waiting to fire.
func (c *manualClock) Armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// fetchCall is one outstanding Fetch on a scriptedFetcher.
type fetchCall struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

func (c *fetchCall) respond(r Response) {
	c.reply <- r
}

// scriptedFetcher hands every Fetch to the test, which answers it through
// the call's reply channel.
type scriptedFetcher struct {
	calls chan *fetchCall

	// ignoreCancel makes Fetch wait for a reply even after ctx is done, like
	// a transport that does not observe cancellation.
	ignoreCancel bool
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{calls: make(chan *fetchCall, 16)}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, req Request) Response {
	call := &fetchCall{ctx: ctx, req: req, reply: make(chan Response, 1)}
	f.calls <- call

	if f.ignoreCancel {
		return <-call.reply
	}
	select {
	case r := <-call.reply:
		return r
	case <-ctx.Done():
		return Response{Error: &FetchError{Stage: StageRequest, Err: context.Cause(ctx)}}
	}
}

func (f *scriptedFetcher) next(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func (f *scriptedFetcher) expectIdle(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected fetch of %s", c.req.URL)
	case <-time.After(20 * time.Millisecond):
	}
}

// waitFor receives from ch or fails the test.
func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

// recordingSink stores everything rendered into it.
type recordingSink struct {
	mu        sync.Mutex
	snapshots []Snapshot
	frames    []Frame
}

func (s *recordingSink) Render(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
}

func (s *recordingSink) RenderFrame(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *recordingSink) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snapshots...)
}

func (s *recordingSink) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

const okFragment = "<tbody><tr><td>Battery</td><td>87%</td></tr></tbody>"

func okResponse() Response {
	return Response{StatusCode: 200, Body: []byte(okFragment), ContentType: "text/html"}
}

func failResponse() Response {
	return Response{StatusCode: 503, Body: []byte("busy")}
}
