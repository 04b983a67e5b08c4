// Package render implements the per-output draw routine: scaling-mode
// vertex computation, transition-aware shader selection (here: a software
// blend), and the frame-rate cap.
package render

import (
	"time"

	"github.com/tuxx/wallpaperd/internal/framebuffer"
	"github.com/tuxx/wallpaperd/internal/media"
	"github.com/tuxx/wallpaperd/internal/texture"
	"github.com/tuxx/wallpaperd/internal/transition"
	"github.com/tuxx/wallpaperd/internal/wakeup"
)

// Output is a compositor output bound to one surface, one layer-surface,
// and one outstanding frame-callback slot.
type Output struct {
	Name  string
	ID    uint32

	Width, Height int
	Scale         int32

	// RedrawNeeded is set when a render pass was deferred because a
	// frame callback was still pending.
	RedrawNeeded bool
	// CallbackPending tracks whether this output has an outstanding
	// compositor frame callback (at most one in flight).
	CallbackPending bool

	FrameBuf   *framebuffer.FrameBuffer
	Cache      *texture.Cache
	Transition *transition.Engine
	Media      media.Media

	lastRender time.Time
}

// NewOutput builds an Output with fresh subsystems. wake is the shared
// decoder wakeup pipe that this output's FrameBuffer signals on every
// deposit.
func NewOutput(name string, id uint32, width, height int, scale int32, backend texture.Backend, trans *transition.Engine, wake *wakeup.Pipe) *Output {
	return &Output{
		Name:       name,
		ID:         id,
		Width:      width,
		Height:     height,
		Scale:      scale,
		FrameBuf:   framebuffer.New(wake),
		Cache:      texture.NewCache(backend),
		Transition: trans,
	}
}
