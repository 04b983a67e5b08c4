// Package media defines the (path, kind, options) triple the rest of the
// daemon passes around, and the fixed-extension kind classifier.
package media

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind distinguishes still images from anything decoded as video.
type Kind int

const (
	// Video is the default kind: anything not in the fixed image-extension
	// set is treated as video, including no-extension and dotfile paths.
	Video Kind = iota
	Image
)

func (k Kind) String() string {
	if k == Image {
		return "image"
	}
	return "video"
}

// imageExt is the fixed still-image extension set. Anything else maps
// to Video, including paths with no extension at all.
var imageExt = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
}

// KindOf classifies path by its final dot-extension, lowercased.
func KindOf(path string) Kind {
	ext := filepath.Ext(path)
	if ext == "" {
		return Video
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if imageExt[ext] {
		return Image
	}
	return Video
}

// ScaleMode is the per-output scaling strategy.
type ScaleMode int

const (
	// Fill is the default scale mode for images.
	Fill ScaleMode = iota
	Stretch
	Original
	// Panscan is the default scale mode for video.
	Panscan
)

func (m ScaleMode) String() string {
	switch m {
	case Stretch:
		return "stretch"
	case Original:
		return "original"
	case Panscan:
		return "panscan"
	default:
		return "fill"
	}
}

// Options is the parsed form of the opaque options-string bag. It is a
// value type, never a pointer: a Media always owns a private copy of its
// Options rather than aliasing one across swaps.
type Options struct {
	NoAudio bool
	Mute    bool
	Loop    bool
	Scale   ScaleMode
	// Panscan is only meaningful when Scale == Panscan; it must lie in
	// (0, 1], defaulting to 1.0.
	Panscan float64
}

// DefaultOptions returns the zero-value-safe default bag: video defaults
// to panscan 1.0, images default to fill (set by the caller once Kind is
// known, since Options alone doesn't carry it).
func DefaultOptions() Options {
	return Options{Scale: Panscan, Panscan: 1.0}
}

// ParseOptions parses the whitespace-separated token bag: no-audio, mute,
// loop, fill, stretch, original, panscan=FLOAT.
func ParseOptions(raw string) (Options, error) {
	opts := DefaultOptions()
	for _, tok := range strings.Fields(raw) {
		switch {
		case tok == "no-audio":
			opts.NoAudio = true
		case tok == "mute":
			opts.Mute = true
		case tok == "loop":
			opts.Loop = true
		case tok == "fill":
			opts.Scale = Fill
		case tok == "stretch":
			opts.Scale = Stretch
		case tok == "original":
			opts.Scale = Original
		case strings.HasPrefix(tok, "panscan="):
			v, err := strconv.ParseFloat(strings.TrimPrefix(tok, "panscan="), 64)
			if err != nil {
				return Options{}, fmt.Errorf("invalid panscan value %q: %w", tok, err)
			}
			if v <= 0 || v > 1 {
				return Options{}, fmt.Errorf("panscan value %v out of range (0,1]", v)
			}
			opts.Scale = Panscan
			opts.Panscan = v
		default:
			return Options{}, fmt.Errorf("unknown option token %q", tok)
		}
	}
	return opts, nil
}

// String renders Options back into the wire/options-string form, used when
// persisting DurableState.
func (o Options) String() string {
	var parts []string
	if o.NoAudio {
		parts = append(parts, "no-audio")
	}
	if o.Mute {
		parts = append(parts, "mute")
	}
	if o.Loop {
		parts = append(parts, "loop")
	}
	switch o.Scale {
	case Fill:
		parts = append(parts, "fill")
	case Stretch:
		parts = append(parts, "stretch")
	case Original:
		parts = append(parts, "original")
	case Panscan:
		parts = append(parts, fmt.Sprintf("panscan=%g", o.Panscan))
	}
	return strings.Join(parts, " ")
}

// Media is the (path, kind, options) triple describing what's displayed.
type Media struct {
	Path    string
	Kind    Kind
	Options Options
}

// New builds a Media, deriving Kind from Path and applying a per-kind
// default scale mode (fill for images, panscan for video) unless the
// caller's raw options string overrode it.
func New(path string, rawOptions string) (Media, error) {
	opts, err := ParseOptions(rawOptions)
	if err != nil {
		return Media{}, err
	}
	kind := KindOf(path)
	if !strings.Contains(rawOptions, "fill") &&
		!strings.Contains(rawOptions, "stretch") &&
		!strings.Contains(rawOptions, "original") &&
		!strings.Contains(rawOptions, "panscan=") {
		if kind == Image {
			opts.Scale = Fill
		} else {
			opts.Scale = Panscan
			opts.Panscan = 1.0
		}
	}
	return Media{Path: path, Kind: kind, Options: opts}, nil
}
