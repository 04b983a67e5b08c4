package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	cases := map[string]Kind{
		"/tmp/a.jpg":       Image,
		"/tmp/a.JPEG":      Image,
		"/tmp/a.png":       Image,
		"/tmp/a.WEBP":      Image,
		"/tmp/a.gif":       Image,
		"/tmp/a.mp4":       Video,
		"/tmp/a.mkv":       Video,
		"/tmp/noext":       Video,
		"/tmp/.hidden":     Video,
		"/tmp/weird.bmp":   Video,
		"/tmp/archive.tar": Video,
	}
	for path, want := range cases {
		assert.Equal(t, want, KindOf(path), "path=%s", path)
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("no-audio loop panscan=0.5")
	require.NoError(t, err)
	assert.True(t, opts.NoAudio)
	assert.True(t, opts.Loop)
	assert.False(t, opts.Mute)
	assert.Equal(t, Panscan, opts.Scale)
	assert.InDelta(t, 0.5, opts.Panscan, 1e-9)
}

func TestParseOptionsInvalidPanscan(t *testing.T) {
	_, err := ParseOptions("panscan=1.5")
	assert.Error(t, err)

	_, err = ParseOptions("panscan=0")
	assert.Error(t, err)
}

func TestParseOptionsUnknownToken(t *testing.T) {
	_, err := ParseOptions("bogus")
	assert.Error(t, err)
}

func TestNewDefaultsScaleByKind(t *testing.T) {
	img, err := New("/tmp/a.png", "")
	require.NoError(t, err)
	assert.Equal(t, Image, img.Kind)
	assert.Equal(t, Fill, img.Options.Scale)

	vid, err := New("/tmp/a.mp4", "")
	require.NoError(t, err)
	assert.Equal(t, Video, vid.Kind)
	assert.Equal(t, Panscan, vid.Options.Scale)
}

func TestOptionsRoundTrip(t *testing.T) {
	opts, err := ParseOptions("no-audio mute loop panscan=0.75")
	require.NoError(t, err)
	back, err := ParseOptions(opts.String())
	require.NoError(t, err)
	assert.Equal(t, opts, back)
}
