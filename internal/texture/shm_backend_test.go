package texture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxx/wallpaperd/internal/framebuffer"
)

func TestShmBackendAllocateUploadRelease(t *testing.T) {
	b := NewShmBackend()

	h, err := b.Allocate(4, 2)
	require.NoError(t, err)

	pix := make([]byte, 4*2*4)
	for i := range pix {
		pix[i] = byte(i)
	}
	require.NoError(t, b.Upload(h, &framebuffer.Frame{Width: 4, Height: 2, Pix: pix}))

	got, w, h2, ok := b.Pixels(h)
	require.True(t, ok)
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h2)
	assert.Equal(t, pix, got)

	require.NoError(t, b.Release(h))
	_, _, _, ok = b.Pixels(h)
	assert.False(t, ok)
}

func TestShmBackendRejectsInvalidDimensions(t *testing.T) {
	b := NewShmBackend()
	_, err := b.Allocate(0, 10)
	assert.Error(t, err)
}

func TestShmBackendUploadDimensionMismatch(t *testing.T) {
	b := NewShmBackend()
	h, err := b.Allocate(4, 4)
	require.NoError(t, err)
	err = b.Upload(h, &framebuffer.Frame{Width: 2, Height: 2, Pix: make([]byte, 16)})
	assert.Error(t, err)
}
