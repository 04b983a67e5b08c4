// Package transition implements the time-driven, frame-pulled cross-fade
// state machine.
package transition

import (
	"time"

	"github.com/tuxx/wallpaperd/internal/texture"
)

// Kind selects the transition effect. Only "fade" performs any blending;
// "none" disables transitions entirely.
type Kind int

const (
	None Kind = iota
	Fade
)

func (k Kind) String() string {
	if k == Fade {
		return "fade"
	}
	return "none"
}

// MinDuration and MaxDuration bound the configurable fade duration to
// (0, 5] seconds.
const (
	MinDuration = 0.0
	MaxDuration = 5.0
)

// Engine drives a single active-or-not cross-fade. It has no internal
// locking: the transition and texture cache are single-owner (the
// MainLoop/render thread), so no mutex is needed.
type Engine struct {
	kind     Kind
	enabled  bool
	duration float64 // seconds

	active   bool
	outgoing texture.Texture
	incoming texture.Texture
	start    time.Time
	now      func() time.Time

	elapsed  float64
	progress float64
	alphaOld float64
	alphaNew float64
}

// NewEngine builds an idle Engine with the given initial kind/enabled
// state and duration.
func NewEngine(kind Kind, enabled bool, duration float64) *Engine {
	return &Engine{kind: kind, enabled: enabled, duration: duration, now: time.Now, alphaOld: 1}
}

// SetClock overrides the monotonic clock source; used by tests to drive
// tick() deterministically.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Kind, Enabled, Duration report the current configuration (for
// get-transition).
func (e *Engine) Kind() Kind         { return e.kind }
func (e *Engine) Enabled() bool      { return e.enabled }
func (e *Engine) Duration() float64  { return e.duration }
func (e *Engine) Active() bool       { return e.active }
func (e *Engine) AlphaNew() float64  { return e.alphaNew }
func (e *Engine) AlphaOld() float64  { return e.alphaOld }
func (e *Engine) Progress() float64  { return e.progress }
func (e *Engine) Outgoing() texture.Texture { return e.outgoing }

// SetKind enables/disables the fade effect for future Start calls. It
// does not cancel a transition that is already active.
func (e *Engine) SetKind(k Kind) {
	e.kind = k
	if k == None {
		e.enabled = false
	} else {
		e.enabled = true
	}
}

// SetDuration validates and applies a new duration within the (0, 5]
// bound. It does not touch an already-active transition's start time, but
// Tick divides by the current duration, so a change made mid-fade also
// rescales that fade's remaining progress.
func (e *Engine) SetDuration(seconds float64) error {
	if seconds <= MinDuration || seconds > MaxDuration {
		return ErrInvalidDuration
	}
	e.duration = seconds
	return nil
}

// ErrInvalidDuration is returned by SetDuration for out-of-range values.
var ErrInvalidDuration = durationError{}

type durationError struct{}

func (durationError) Error() string { return "invalid duration (must be 0.0-5.0)" }

// Start begins a fade from outgoing to a texture the caller will shortly
// upload into a freshly-detached cache slot. It is a no-op (returns false)
// unless transitions are enabled, kind is Fade, no transition is already
// active, and outgoing is a valid (initialised) texture. The image/image
// precondition check is the caller's responsibility, since Engine
// doesn't know media kinds.
func (e *Engine) Start(outgoing texture.Texture) bool {
	if !e.enabled || e.kind != Fade || e.active || !outgoing.Initialized {
		return false
	}
	e.active = true
	e.outgoing = outgoing
	e.incoming = texture.Texture{}
	e.alphaOld = 1
	e.alphaNew = 0
	e.elapsed = 0
	e.progress = 0
	e.start = e.now()
	return true
}

// Tick advances the transition's progress based on elapsed wall-clock
// time. When progress reaches 1 it returns the outgoing texture for the
// caller to release and the engine returns to idle. Tick is a no-op when
// not active.
func (e *Engine) Tick() (releaseOutgoing texture.Texture, justFinished bool) {
	if !e.active {
		return texture.Texture{}, false
	}
	e.elapsed = e.now().Sub(e.start).Seconds()
	progress := e.elapsed / e.duration
	if progress > 1 {
		progress = 1
	}
	e.progress = progress
	e.alphaNew = progress
	e.alphaOld = 1 - progress

	if progress >= 1 {
		out := e.outgoing
		e.active = false
		e.outgoing = texture.Texture{}
		return out, true
	}
	return texture.Texture{}, false
}

// Cancel idempotently aborts any active transition, returning the
// outgoing texture (zero value if none) for the caller to release.
func (e *Engine) Cancel() texture.Texture {
	if !e.active {
		return texture.Texture{}
	}
	out := e.outgoing
	e.active = false
	e.outgoing = texture.Texture{}
	e.progress = 0
	e.alphaOld = 1
	e.alphaNew = 0
	return out
}
