package decoder

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"

	"golang.org/x/image/webp"

	"github.com/tuxx/wallpaperd/internal/framebuffer"
	"github.com/tuxx/wallpaperd/internal/media"
)

// ImageDecoder decodes a single still image once and delivers it as the
// only frame this "pipeline" will ever produce; pause/resume/seek are all
// no-ops since a still has no timeline.
type ImageDecoder struct {
	frames chan *framebuffer.Frame
	paused atomic.Bool
}

// NewImageDecoder builds an idle ImageDecoder.
func NewImageDecoder() *ImageDecoder {
	return &ImageDecoder{frames: make(chan *framebuffer.Frame, 1)}
}

// Start decodes m.Path and deposits the single resulting frame.
func (d *ImageDecoder) Start(ctx context.Context, m media.Media) error {
	f, err := os.Open(m.Path)
	if err != nil {
		return fmt.Errorf("decoder: open image: %w", err)
	}
	defer f.Close()

	img, err := decodeAny(f, m.Path)
	if err != nil {
		return fmt.Errorf("decoder: decode image: %w", err)
	}

	frame := toRGBAFrame(img)
	d.frames <- frame
	return nil
}

func decodeAny(f *os.File, path string) (image.Image, error) {
	if isWebp(path) {
		return webp.Decode(f)
	}
	img, _, err := image.Decode(f)
	return img, err
}

func isWebp(path string) bool {
	return len(path) >= 5 && (path[len(path)-5:] == ".webp" || path[len(path)-5:] == ".WEBP")
}

func toRGBAFrame(img image.Image) *framebuffer.Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]byte, w*h*4)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			pix[i+0] = byte(r >> 8)
			pix[i+1] = byte(g >> 8)
			pix[i+2] = byte(b >> 8)
			pix[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return &framebuffer.Frame{Width: w, Height: h, Pix: pix}
}

func (d *ImageDecoder) Pause() error  { d.paused.Store(true); return nil }
func (d *ImageDecoder) Resume() error { d.paused.Store(false); return nil }
func (d *ImageDecoder) Seek(float64) error {
	return nil
}
func (d *ImageDecoder) Position() (float64, error) { return 0, nil }
func (d *ImageDecoder) Paused() bool               { return d.paused.Load() }

func (d *ImageDecoder) Frames() <-chan *framebuffer.Frame {
	return d.frames
}

func (d *ImageDecoder) Close() error {
	return nil
}
