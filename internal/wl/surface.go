package wl

import (
	"fmt"
	"syscall"

	"github.com/neurlang/wayland/wl"
	"golang.org/x/sys/unix"

	"github.com/tuxx/wallpaperd/internal/render"
)

// Surface binds one wl_surface + zwlr_layer_surface_v1 pair to the pixel
// data the Renderer produces, attaching a fresh anonymous wl_shm buffer
// on every present. The wl_shm_pool is destroyed as soon as its one
// buffer exists (the backing mapping stays valid for the buffer's
// lifetime); the buffer itself is destroyed once the compositor's
// release event says it is done reading it, so a continuously-running
// daemon doesn't accumulate one pool+buffer per frame forever.
type Surface struct {
	client       *Client
	surface      *wl.Surface
	layerSurface *LayerSurface

	width, height int
	configured    bool
	serial        uint32

	frameCallback *wl.Callback
	onFrame       func()
}

// bufferRelease destroys its buffer once the compositor signals it is no
// longer reading from it (attached, then later replaced or unmapped).
type bufferRelease struct{ buf *wl.Buffer }

func (h bufferRelease) HandleBufferRelease(ev wl.BufferReleaseEvent) {
	h.buf.Destroy()
}

// HandleLayerSurfaceConfigure acknowledges the compositor's requested
// size and remembers it for the next Present.
func (s *Surface) HandleLayerSurfaceConfigure(ev LayerSurfaceConfigureEvent) {
	s.serial = ev.Serial
	s.layerSurface.AckConfigure(ev.Serial)
	if ev.Width > 0 && ev.Height > 0 {
		s.width, s.height = int(ev.Width), int(ev.Height)
	}
	s.configured = true
}

// HandleLayerSurfaceClosed reacts to the compositor destroying the layer
// surface (output unplugged, shell torn down).
func (s *Surface) HandleLayerSurfaceClosed(ev LayerSurfaceClosedEvent) {
	s.configured = false
}

// OnFrameCallback registers the function invoked when a requested frame
// callback fires (the compositor signalling "ready to draw again"). It
// runs on the compositor dispatch thread; keep it to a notification.
func (s *Surface) OnFrameCallback(fn func()) {
	s.onFrame = fn
}

// Present uploads pix as a fresh wl_shm buffer, attaches it, and damages
// the whole surface. It does not commit; the caller publishes the buffer
// with Commit.
func (s *Surface) Present(out *render.Output, pix []byte, width, height int) error {
	stride := width * 4
	size := stride * height

	fd, err := unix.MemfdCreate("wallpaperd-surface", unix.MFD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("wl: memfd create: %w", err)
	}
	defer unix.Close(fd)

	if err := syscall.Ftruncate(fd, int64(size)); err != nil {
		return fmt.Errorf("wl: ftruncate: %w", err)
	}
	data, err := syscall.Mmap(fd, 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("wl: mmap: %w", err)
	}
	copy(data, pix)
	syscall.Munmap(data)

	pool, err := s.client.shm.CreatePool(uintptr(fd), int32(size))
	if err != nil {
		return fmt.Errorf("wl: create shm pool: %w", err)
	}
	buffer, err := pool.CreateBuffer(0, int32(width), int32(height), int32(stride), wl.ShmFormatArgb8888)
	if err != nil {
		pool.Destroy()
		return fmt.Errorf("wl: create buffer: %w", err)
	}
	// The pool object itself is only needed to carve out the buffer; the
	// shared mapping it wraps stays valid for as long as the buffer lives.
	pool.Destroy()
	buffer.AddReleaseHandler(bufferRelease{buf: buffer})

	s.surface.Attach(buffer, 0, 0)
	s.surface.Damage(0, 0, int32(width), int32(height))
	return nil
}

// RequestFrameCallback drops any stale callback reference and requests a
// fresh one. wl_callback has no destroy request; dropping the reference
// is all a client can (and needs to) do with a superseded callback. The
// request only takes effect on the next Commit.
func (s *Surface) RequestFrameCallback(out *render.Output) error {
	s.frameCallback = nil
	cb, err := s.surface.Frame()
	if err != nil {
		return fmt.Errorf("wl: request frame callback: %w", err)
	}
	s.frameCallback = cb
	cb.AddDoneHandler(s)
	return nil
}

// Commit commits the surface's pending state (attached buffer, damage,
// any frame-callback request) to the compositor.
func (s *Surface) Commit(out *render.Output) error {
	s.surface.Commit()
	return nil
}

// HandleCallbackDone implements wl.Callback's done-event handler. Runs on
// the compositor dispatch thread.
func (s *Surface) HandleCallbackDone(ev wl.CallbackDoneEvent) {
	s.frameCallback = nil
	if s.onFrame != nil {
		s.onFrame()
	}
}
