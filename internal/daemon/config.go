// Package daemon wires every other package into a single "Daemon"
// aggregate in place of file-scope singletons: one process, one decoder,
// one MainLoop, and one or more driven outputs each with its own
// transition engine.
package daemon

import (
	"github.com/tuxx/wallpaperd/internal/media"
	"github.com/tuxx/wallpaperd/internal/render"
	"github.com/tuxx/wallpaperd/internal/transition"
)

// Config is everything the CLI surface hands to the core at startup.
type Config struct {
	Output         string
	MediaPath      string
	RawOptions     string
	FPS            render.FPS
	SocketPath     string
	TransitionKind transition.Kind
	TransitionSecs float64
	CacheSizeMB    int
	SaveState      bool
	Restore        bool
	HolderPath     string
	StateAppName   string
}

// DefaultConfig returns the zero-value-safe defaults applied before CLI
// flags are parsed.
func DefaultConfig() Config {
	return Config{
		FPS:            render.FPS60,
		TransitionKind: transition.None,
		TransitionSecs: 0.5,
		SaveState:      true,
		StateAppName:   "wallpaperd",
	}
}

// media builds a media.Media from the config's path/options pair.
func (c Config) media() (media.Media, error) {
	return media.New(c.MediaPath, c.RawOptions)
}
