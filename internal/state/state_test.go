package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxx/wallpaperd/internal/media"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	s, err := NewStore("wallpaperd-test")
	require.NoError(t, err)
	return s
}

// TestStateRoundTrip checks that load(save(s)) == s, modulo floating-point
// tolerance on Position.
func TestStateRoundTrip(t *testing.T) {
	s := newTestStore(t)

	mediaPath := filepath.Join(t.TempDir(), "v.mp4")
	require.NoError(t, os.WriteFile(mediaPath, []byte("x"), 0o644))

	want := DurableState{
		Output:   "DP-1",
		Path:     mediaPath,
		Kind:     media.Video,
		Options:  "no-audio loop",
		Position: 12.5,
		Paused:   true,
	}

	require.NoError(t, s.Save(want))
	got, err := s.Load("DP-1")
	require.NoError(t, err)

	assert.Equal(t, want.Output, got.Output)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.Options, got.Options)
	assert.InDelta(t, want.Position, got.Position, 1e-6)
	assert.Equal(t, want.Paused, got.Paused)
}

func TestStateImageOmitsPositionAndPaused(t *testing.T) {
	s := newTestStore(t)
	mediaPath := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(mediaPath, []byte("x"), 0o644))

	require.NoError(t, s.Save(DurableState{Output: "eDP-1", Path: mediaPath, Kind: media.Image}))
	got, err := s.Load("eDP-1")
	require.NoError(t, err)
	assert.Equal(t, media.Image, got.Kind)
	assert.Equal(t, float64(0), got.Position)
	assert.False(t, got.Paused)
}

func TestStateDefaultOutputFilename(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(DurableState{Path: "/tmp/a.png", Kind: media.Image}))

	_, err := os.Stat(filepath.Join(s.dir, "state.txt"))
	assert.NoError(t, err)
}

func TestStateSanitizesOutputName(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(DurableState{Output: "weird/name:*", Path: "/tmp/a.png", Kind: media.Image}))

	_, err := os.Stat(filepath.Join(s.dir, "state-weird_name__.txt"))
	assert.NoError(t, err)
}

func TestStateLoadMissingPathFails(t *testing.T) {
	s := newTestStore(t)
	p := filepath.Join(s.dir, "state-bad.txt")
	require.NoError(t, os.WriteFile(p, []byte("version=1\ntype=image\n"), 0o644))

	_, err := s.Load("bad")
	assert.Error(t, err)
}

func TestStateLoadUnknownTypeFails(t *testing.T) {
	s := newTestStore(t)
	p := filepath.Join(s.dir, "state-bad.txt")
	require.NoError(t, os.WriteFile(p, []byte("version=1\npath=/tmp/a\ntype=audio\n"), 0o644))

	_, err := s.Load("bad")
	assert.Error(t, err)
}

func TestStateLoadNegativePositionFails(t *testing.T) {
	s := newTestStore(t)
	p := filepath.Join(s.dir, "state-bad.txt")
	require.NoError(t, os.WriteFile(p, []byte("version=1\npath=/tmp/a\ntype=video\nposition=-1\n"), 0o644))

	_, err := s.Load("bad")
	assert.Error(t, err)
}

func TestStateLoadMalformedPausedFails(t *testing.T) {
	s := newTestStore(t)
	p := filepath.Join(s.dir, "state-bad.txt")
	require.NoError(t, os.WriteFile(p, []byte("version=1\npath=/tmp/a\ntype=video\npaused=yes\n"), 0o644))

	_, err := s.Load("bad")
	assert.Error(t, err)
}

func TestStateLoadUnknownKeysTolerated(t *testing.T) {
	s := newTestStore(t)
	p := filepath.Join(s.dir, "state-ok.txt")
	content := "version=1\npath=/tmp/a\ntype=image\nfuture_field=xyz\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	got, err := s.Load("ok")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a", got.Path)
}

func TestStateLoadFutureVersionFails(t *testing.T) {
	s := newTestStore(t)
	p := filepath.Join(s.dir, "state-new.txt")
	content := "version=999\npath=/tmp/a\ntype=image\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	_, err := s.Load("new")
	assert.Error(t, err)
}

func TestStateLoadNonexistentOutputIsFailureNotPanic(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("never-saved")
	assert.Error(t, err)
}

func TestStateSaveOverwritesPreviousAtomically(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(DurableState{Output: "o", Path: "/tmp/a.png", Kind: media.Image}))
	require.NoError(t, s.Save(DurableState{Output: "o", Path: "/tmp/b.png", Kind: media.Image}))

	got, err := s.Load("o")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.png", got.Path)

	// No leftover tmp file after a successful save.
	_, err = os.Stat(s.pathFor("o") + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
