// Package decoder is the external-decoder boundary: pipeline construction
// and codec negotiation are treated as an external concern, so Decoder
// captures only the control surface and frame-delivery contract the core
// actually depends on. MPVDecoder is the one concrete implementation,
// driving mpv as a subprocess over its JSON IPC socket.
package decoder

import (
	"context"

	"github.com/tuxx/wallpaperd/internal/framebuffer"
	"github.com/tuxx/wallpaperd/internal/media"
)

// Decoder produces decoded RGBA frames and accepts the playback commands
// the daemon maps onto the decoder (pause, resume, seek).
type Decoder interface {
	// Start launches the pipeline for m and begins delivering frames on
	// Frames(). It returns once the pipeline has reached "playing" (or
	// its still-image equivalent).
	Start(ctx context.Context, m media.Media) error

	// Pause and Resume transition the pipeline between playing and
	// paused. Calling either while already in that state is a no-op.
	Pause() error
	Resume() error

	// Seek moves playback to the given position in seconds. The daemon
	// uses it to apply a restored position after Start; stream end is
	// handled inside the pipeline, not through Seek.
	Seek(seconds float64) error

	// Position reports the current playback position in seconds. Always
	// 0 for still images.
	Position() (float64, error)

	// Paused reports whether the pipeline is currently paused.
	Paused() bool

	// Frames is the channel new decoded frames arrive on. The core's
	// producer/consumer handoff (internal/framebuffer) drains it.
	Frames() <-chan *framebuffer.Frame

	// Close tears the pipeline down gradually (playing -> paused -> ready
	// -> null, with small pauses between states) and releases any OS
	// resources (subprocess, sockets, FDs).
	Close() error
}

// New builds the appropriate Decoder for m.Kind: MPVDecoder for video,
// ImageDecoder for stills.
func New(m media.Media) Decoder {
	if m.Kind == media.Image {
		return NewImageDecoder()
	}
	return NewMPVDecoder()
}
