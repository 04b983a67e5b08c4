package texture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxx/wallpaperd/internal/framebuffer"
)

// fakeBackend is an in-memory Backend used to test Cache's allocation
// policy without touching real shm/memfd syscalls.
type fakeBackend struct {
	allocs    int
	releases  int
	uploads   int
	nextID    Handle
	sizes     map[Handle][2]int
	released  map[Handle]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sizes: map[Handle][2]int{}, released: map[Handle]bool{}}
}

func (f *fakeBackend) Allocate(w, h int) (Handle, error) {
	f.allocs++
	f.nextID++
	f.sizes[f.nextID] = [2]int{w, h}
	return f.nextID, nil
}

func (f *fakeBackend) Upload(h Handle, frame *framebuffer.Frame) error {
	f.uploads++
	return nil
}

func (f *fakeBackend) Release(h Handle) error {
	f.releases++
	f.released[h] = true
	return nil
}

func TestCacheEnsureAllocatesOnce(t *testing.T) {
	b := newFakeBackend()
	c := NewCache(b)

	tex1, err := c.Ensure(100, 100)
	require.NoError(t, err)
	tex2, err := c.Ensure(100, 100)
	require.NoError(t, err)

	assert.Equal(t, tex1.Handle, tex2.Handle, "same dimensions must return the cached handle unchanged")
	assert.Equal(t, 1, b.allocs)
}

func TestCacheEnsureReallocatesOnResize(t *testing.T) {
	b := newFakeBackend()
	c := NewCache(b)

	tex1, err := c.Ensure(100, 100)
	require.NoError(t, err)
	tex2, err := c.Ensure(200, 150)
	require.NoError(t, err)

	assert.NotEqual(t, tex1.Handle, tex2.Handle)
	assert.Equal(t, 2, b.allocs)
	assert.Equal(t, 1, b.releases, "old texture must be released on reallocation")
	assert.True(t, b.released[tex1.Handle])
}

func TestCacheDetachResetsWithoutReleasing(t *testing.T) {
	b := newFakeBackend()
	c := NewCache(b)

	tex, err := c.Ensure(64, 64)
	require.NoError(t, err)

	detached := c.Detach()
	assert.Equal(t, tex.Handle, detached.Handle)
	assert.False(t, c.Current().Initialized, "cache slot must be fresh after detach")
	assert.Equal(t, 0, b.releases, "detach must not release the handle itself")

	// Next ensure allocates new storage, not reusing the detached one.
	tex2, err := c.Ensure(64, 64)
	require.NoError(t, err)
	assert.NotEqual(t, tex.Handle, tex2.Handle)
}

func TestCacheAdoptRestoresDetachedTexture(t *testing.T) {
	b := newFakeBackend()
	c := NewCache(b)

	tex, err := c.Ensure(64, 64)
	require.NoError(t, err)

	detached := c.Detach()
	require.NoError(t, c.Adopt(detached))
	assert.Equal(t, tex.Handle, c.Current().Handle)
	assert.True(t, c.Current().Initialized)
	assert.Equal(t, 0, b.releases, "adopting back the same handle must not release it")
}

func TestCacheAdoptReleasesReplacedTexture(t *testing.T) {
	b := newFakeBackend()
	c := NewCache(b)

	_, err := c.Ensure(64, 64)
	require.NoError(t, err)
	detached := c.Detach()

	replacement, err := c.Ensure(64, 64)
	require.NoError(t, err)

	require.NoError(t, c.Adopt(detached))
	assert.Equal(t, detached.Handle, c.Current().Handle)
	assert.True(t, b.released[replacement.Handle], "the texture displaced by Adopt must be released")
}

func TestCacheDestroyReleasesCurrent(t *testing.T) {
	b := newFakeBackend()
	c := NewCache(b)

	tex, err := c.Ensure(32, 32)
	require.NoError(t, err)

	require.NoError(t, c.Destroy())
	assert.True(t, b.released[tex.Handle])
	assert.False(t, c.Current().Initialized)
}

func TestCacheUploadReallocatesOnDimensionChange(t *testing.T) {
	b := newFakeBackend()
	c := NewCache(b)

	_, err := c.Ensure(10, 10)
	require.NoError(t, err)

	// Upload with a different-size frame should still succeed at the Cache
	// level (it reallocates), proving Ensure is driven by frame dimensions.
	_, err = c.Upload(&framebuffer.Frame{Width: 20, Height: 20, Pix: make([]byte, 20*20*4)})
	assert.NoError(t, err)
	assert.Equal(t, 2, b.allocs)
}
