// Package texture implements the texture cache: lazy allocation,
// reallocate-(not resize)-on-dimension-change, and the detach operation
// the transition engine uses to keep an outgoing frame alive while a new
// one is uploaded.
//
// The choice of GPU/shader API is treated as a pluggable backend rather
// than a hard dependency on any specific graphics API. Backend captures
// that interface; ShmBackend is the one concrete, pure-Go implementation
// shipped here, built on wl_shm pixel buffers so the whole path stays
// cgo-free.
package texture

import "github.com/tuxx/wallpaperd/internal/framebuffer"

// Handle identifies one texture/buffer instance. The zero Handle is never
// valid.
type Handle uint64

// Texture is the GPU/shm handle plus its current dimensions and whether it
// has ever been uploaded to.
type Texture struct {
	Handle      Handle
	Width       int
	Height      int
	Initialized bool
}

// Backend is the minimal contract a presentation backend must satisfy for
// TextureCache and the transition/render pipeline to work. Implementations
// own actual pixel storage (GPU texture object, wl_shm buffer, ...).
type Backend interface {
	// Allocate creates a new backend-owned texture of the given size and
	// returns its Handle. Called on first ensure() and on every dimension
	// change (reallocated, never sub-image-resized in place).
	Allocate(width, height int) (Handle, error)
	// Upload sub-image-uploads frame bytes into an already-allocated
	// texture. frame dimensions must match the texture's current size.
	Upload(h Handle, frame *framebuffer.Frame) error
	// Release destroys a backend-owned texture. Called when a texture is
	// no longer referenced by the cache or an active transition.
	Release(h Handle) error
}

// Cache owns one "current" texture, reallocating only when incoming frame
// dimensions change.
type Cache struct {
	backend Backend
	current Texture
}

// NewCache wraps backend in a Cache with no current texture.
func NewCache(backend Backend) *Cache {
	return &Cache{backend: backend}
}

// Current returns the cache's texture without forcing an allocation. The
// zero value is returned (Initialized == false) if nothing has been
// uploaded yet.
func (c *Cache) Current() Texture {
	return c.current
}

// Ensure allocates (on first call, or when dimensions differ from the
// current texture) and returns the cache's texture for the given size.
// Same-dimension calls return the cached handle unchanged.
func (c *Cache) Ensure(width, height int) (Texture, error) {
	if c.current.Initialized && c.current.Width == width && c.current.Height == height {
		return c.current, nil
	}

	if c.current.Initialized {
		if err := c.backend.Release(c.current.Handle); err != nil {
			return Texture{}, err
		}
	}

	h, err := c.backend.Allocate(width, height)
	if err != nil {
		c.current = Texture{}
		return Texture{}, err
	}

	c.current = Texture{Handle: h, Width: width, Height: height, Initialized: true}
	return c.current, nil
}

// Upload ensures a texture of frame's dimensions and sub-image-uploads
// frame's pixels into it.
func (c *Cache) Upload(frame *framebuffer.Frame) (Texture, error) {
	tex, err := c.Ensure(frame.Width, frame.Height)
	if err != nil {
		return Texture{}, err
	}
	if err := c.backend.Upload(tex.Handle, frame); err != nil {
		return Texture{}, err
	}
	return tex, nil
}

// Detach relinquishes ownership of the current texture handle — the
// caller (the transition engine) becomes responsible for eventually
// releasing it — and resets the cache to an uninitialised slot so the
// next Upload allocates fresh storage instead of overwriting the
// texture the caller is still displaying. This is what makes cross-fade
// safe without copying pixels.
func (c *Cache) Detach() Texture {
	detached := c.current
	c.current = Texture{}
	return detached
}

// Adopt installs a previously-detached texture back as the cache's
// current one, releasing whatever the cache held. Used to roll back a
// Detach when the incoming media turns out to be unloadable.
func (c *Cache) Adopt(t Texture) error {
	if c.current.Initialized && c.current.Handle != t.Handle {
		if err := c.backend.Release(c.current.Handle); err != nil {
			return err
		}
	}
	c.current = t
	return nil
}

// Destroy releases the cache's current texture, if any.
func (c *Cache) Destroy() error {
	if !c.current.Initialized {
		return nil
	}
	err := c.backend.Release(c.current.Handle)
	c.current = Texture{}
	return err
}

// ReleaseTexture is a convenience for releasing a texture obtained via
// Detach, once the transition engine is done with it.
func (c *Cache) ReleaseTexture(t Texture) error {
	if !t.Initialized {
		return nil
	}
	return c.backend.Release(t.Handle)
}
