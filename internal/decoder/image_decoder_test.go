package decoder

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxx/wallpaperd/internal/media"
)

func writeTestPNG(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestImageDecoderStartProducesOneFrame(t *testing.T) {
	path := writeTestPNG(t, 3, 2, color.RGBA{10, 20, 30, 255})
	d := NewImageDecoder()
	m, err := media.New(path, "")
	require.NoError(t, err)

	require.NoError(t, d.Start(context.Background(), m))

	select {
	case f := <-d.Frames():
		assert.Equal(t, 3, f.Width)
		assert.Equal(t, 2, f.Height)
		assert.Equal(t, byte(10), f.Pix[0])
		assert.Equal(t, byte(20), f.Pix[1])
		assert.Equal(t, byte(30), f.Pix[2])
	default:
		t.Fatal("expected a frame to be produced")
	}
}

func TestImageDecoderPauseResumeAreNoOpsThatTrackState(t *testing.T) {
	d := NewImageDecoder()
	assert.False(t, d.Paused())
	require.NoError(t, d.Pause())
	assert.True(t, d.Paused())
	require.NoError(t, d.Resume())
	assert.False(t, d.Paused())
}

func TestImageDecoderSeekAndPositionAreInert(t *testing.T) {
	d := NewImageDecoder()
	assert.NoError(t, d.Seek(5))
	pos, err := d.Position()
	assert.NoError(t, err)
	assert.Equal(t, 0.0, pos)
}

func TestIsWebp(t *testing.T) {
	assert.True(t, isWebp("/tmp/a.webp"))
	assert.True(t, isWebp("/tmp/A.WEBP"))
	assert.False(t, isWebp("/tmp/a.png"))
}
