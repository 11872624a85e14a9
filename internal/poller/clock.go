package poller

import "time"

// Clock is the time source used by the polling loops.
//
// Production code uses [SystemClock]. Tests substitute a manual clock so that
// timer-driven behaviour (ticks, hard timeouts, backoff) can be stepped
// deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback created by [Clock.AfterFunc].
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback has already fired or been stopped.
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock is the [Clock] backed by the time package.
var SystemClock Clock = systemClock{}
