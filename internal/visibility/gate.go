package visibility

import (
	"log/slog"
	"sync"
)

// State is the visibility of the display.
type State int

const (
	Hidden State = iota
	Visible
)

// String returns "hidden" or "visible".
func (s State) String() string {
	if s == Visible {
		return "visible"
	}
	return "hidden"
}

// FromBool maps true to Visible.
func FromBool(visible bool) State {
	if visible {
		return Visible
	}
	return Hidden
}

// FromViewers is Visible while at least one viewer is connected.
func FromViewers(n int) State {
	return FromBool(n > 0)
}

// Target is the loop a Gate drives.
type Target interface {
	Pause()
	Resume()
}

// Gate forwards visibility transitions to a [Target].
//
// Hidden→Visible calls Resume, Visible→Hidden calls Pause. Repeated signals
// for the current state are ignored. The target is called with the gate's
// lock held, so transitions reach it in order.
type Gate struct {
	target Target
	logger *slog.Logger

	mu    sync.Mutex
	state State
	bound bool
}

// NewGate creates a gate in the initial state. Nothing is forwarded until
// [Gate.Bind].
func NewGate(target Target, initial State, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{target: target, state: initial, logger: logger}
}

// Bind applies the initial state to the target once: Resume when visible,
// Pause when hidden. Later calls are no-ops.
func (g *Gate) Bind() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.bound {
		return
	}
	g.bound = true
	g.apply(g.state)
}

// Set records a visibility signal and reports whether it was a transition.
// Before Bind only the state is recorded.
func (g *Gate) Set(s State) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s == g.state {
		return false
	}
	g.state = s
	if g.bound {
		g.logger.Debug("visibility changed", "state", s.String())
		g.apply(s)
	}
	return true
}

// SetVisible is Set(FromBool(visible)).
func (g *Gate) SetVisible(visible bool) bool {
	return g.Set(FromBool(visible))
}

// State returns the last recorded state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) apply(s State) {
	if s == Visible {
		g.target.Resume()
	} else {
		g.target.Pause()
	}
}
