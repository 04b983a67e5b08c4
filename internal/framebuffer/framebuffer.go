// Package framebuffer implements the single-slot producer/consumer
// rendezvous between the decoder callback thread and the renderer.
// It is not a queue: a deposit always replaces (and releases) whatever
// frame is currently held, because a stalled renderer must never
// accumulate decoded frames in RAM.
package framebuffer

import (
	"sync"

	"github.com/tuxx/wallpaperd/internal/wakeup"
)

// Frame is an RGBA byte buffer of Width x Height pixels.
type Frame struct {
	Width  int
	Height int
	// Pix holds Width*Height*4 bytes, row-major, 8-bit RGBA.
	Pix []byte
}

// FrameBuffer is the mutex-protected single slot shared by the decoder
// and the renderer.
type FrameBuffer struct {
	mu     sync.Mutex
	frame  *Frame
	hasNew bool

	wake *wakeup.Pipe
}

// New builds a FrameBuffer that signals w on every deposit. w may be nil,
// in which case deposits never wake anything (used in tests).
func New(w *wakeup.Pipe) *FrameBuffer {
	return &FrameBuffer{wake: w}
}

// Deposit installs frame as the pending one, releasing (discarding) any
// frame that was already waiting. It never blocks. The wakeup write is
// best-effort: a failure is not propagated to the caller.
func (fb *FrameBuffer) Deposit(frame *Frame) {
	fb.mu.Lock()
	fb.frame = frame
	fb.hasNew = true
	fb.mu.Unlock()

	if fb.wake != nil {
		fb.wake.Signal()
	}
}

// Take returns (frame, true) if a frame is pending, clearing the flag and
// transferring ownership to the caller; otherwise it returns (nil, false).
// It never blocks.
func (fb *FrameBuffer) Take() (*Frame, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if !fb.hasNew {
		return nil, false
	}
	f := fb.frame
	fb.frame = nil
	fb.hasNew = false
	return f, true
}

// Peek reports whether a frame is currently pending, without consuming it.
// The render path uses Take instead.
func (fb *FrameBuffer) Peek() bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.hasNew
}
