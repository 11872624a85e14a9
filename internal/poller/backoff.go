package poller

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Status loop timing.
const (
	DefaultBaseInterval = 2 * time.Second
	DefaultMaxInterval  = 15 * time.Second
)

// Image loop timing.
const (
	DefaultImageMinInterval = 2 * time.Second
	DefaultImageMaxInterval = 15 * time.Second
	DefaultImageGrowth      = 1.7
)

// BackoffPolicy maps the consecutive-failure count of the status loop to the
// delay before its next tick.
//
// With no failures the loop keeps a steady cadence: the time already spent on
// the request is subtracted from Base. After failures the delay doubles from
// Base up to Max and ignores elapsed time.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Next returns the delay before the next tick.
func (p BackoffPolicy) Next(failures int, elapsed time.Duration) time.Duration {
	if failures <= 0 {
		return max(0, p.Base-elapsed)
	}
	return p.Interval(failures)
}

// Interval returns min(Max, Base * 2^(failures-1)) for failures >= 1, and
// Base otherwise. A Max below Base is treated as Base.
func (p BackoffPolicy) Interval(failures int) time.Duration {
	ceiling := max(p.Max, p.Base)
	d := p.Base
	for i := 1; i < failures; i++ {
		if d >= ceiling/2 {
			return ceiling
		}
		d *= 2
	}
	return min(d, ceiling)
}

// growthBackoff is the image loop's interval: it starts at the floor, grows
// by a fixed factor on each failure up to the ceiling, and resets to the
// floor on success.
type growthBackoff struct {
	b       *backoff.ExponentialBackOff
	current time.Duration
}

func newGrowthBackoff(floor, ceiling time.Duration, factor float64) *growthBackoff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = floor
	b.MaxInterval = ceiling
	b.Multiplier = factor
	b.RandomizationFactor = 0

	g := &growthBackoff{b: b}
	g.Reset()
	return g
}

// Reset returns the interval to the floor.
func (g *growthBackoff) Reset() time.Duration {
	g.b.Reset()
	// NextBackOff hands out the current interval and then grows it, so the
	// floor is consumed here and the first failure sees floor*factor.
	g.current = g.b.NextBackOff().Round(time.Millisecond)
	return g.current
}

// Grow advances the interval by one failure.
func (g *growthBackoff) Grow() time.Duration {
	g.current = min(g.b.NextBackOff().Round(time.Millisecond), g.b.MaxInterval)
	return g.current
}

// Current returns the interval without changing it.
func (g *growthBackoff) Current() time.Duration {
	return g.current
}
