package texture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/tuxx/wallpaperd/internal/framebuffer"
)

// shmSurface is the tiny subset of wl_shm-buffer lifecycle the backend
// needs: a pool of CPU-addressable memory the compositor can read
// directly (memfd + mmap + wl_shm_pool + wl_buffer).
type shmSurface struct {
	width, height int
	stride        int
	fd            int
	pix           []byte // mmap'd RGBA storage, width*height*4 bytes
}

// ShmBackend implements Backend by compositing directly into memfd-backed
// pixel buffers, the same primitive wl_shm.CreatePool/CreateBuffer
// exposes. It requires no GPU context, EGL, or cgo.
type ShmBackend struct {
	mu      sync.Mutex
	nextID  atomic.Uint64
	buffers map[Handle]*shmSurface
}

// NewShmBackend constructs an empty backend.
func NewShmBackend() *ShmBackend {
	return &ShmBackend{buffers: make(map[Handle]*shmSurface)}
}

func (b *ShmBackend) Allocate(width, height int) (Handle, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("texture: invalid dimensions %dx%d", width, height)
	}
	stride := width * 4
	size := stride * height

	fd, err := unix.MemfdCreate("wallpaperd-texture", unix.MFD_CLOEXEC)
	if err != nil {
		return 0, fmt.Errorf("texture: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("texture: ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("texture: mmap: %w", err)
	}

	id := Handle(b.nextID.Add(1))
	b.mu.Lock()
	b.buffers[id] = &shmSurface{width: width, height: height, stride: stride, fd: fd, pix: data}
	b.mu.Unlock()
	return id, nil
}

func (b *ShmBackend) Upload(h Handle, frame *framebuffer.Frame) error {
	b.mu.Lock()
	surf, ok := b.buffers[h]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("texture: upload to unknown handle %d", h)
	}
	if frame.Width != surf.width || frame.Height != surf.height {
		return fmt.Errorf("texture: frame %dx%d does not match texture %dx%d",
			frame.Width, frame.Height, surf.width, surf.height)
	}
	copy(surf.pix, frame.Pix)
	return nil
}

func (b *ShmBackend) Release(h Handle) error {
	b.mu.Lock()
	surf, ok := b.buffers[h]
	if ok {
		delete(b.buffers, h)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}
	if surf.pix != nil {
		_ = unix.Munmap(surf.pix)
	}
	return unix.Close(surf.fd)
}

// Pixels returns a read-only view of the pixel buffer backing h, used by
// the renderer's compositing pass and by tests to assert on blend output.
func (b *ShmBackend) Pixels(h Handle) ([]byte, int, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	surf, ok := b.buffers[h]
	if !ok {
		return nil, 0, 0, false
	}
	return surf.pix, surf.width, surf.height, true
}
