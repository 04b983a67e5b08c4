// Package scale computes the per-axis scale factors for the four scaling
// modes (fill, stretch, original, panscan), used to build the textured
// quad's vertices.
package scale

import "github.com/tuxx/wallpaperd/internal/media"

const (
	minScale = 0.1
	maxScale = 10.0
)

func clamp(v float64) float64 {
	if v < minScale {
		return minScale
	}
	if v > maxScale {
		return maxScale
	}
	return v
}

// Factors computes (sx, sy) for the given mode, source (video) aspect
// ratio, display (output) aspect ratio, panscan value, and native
// pixel dimensions (used only by Original). aspect ratios are
// width/height.
func Factors(mode media.ScaleMode, videoW, videoH, outW, outH int, panscan float64) (sx, sy float64) {
	videoAspect := float64(videoW) / float64(videoH)
	displayAspect := float64(outW) / float64(outH)

	switch mode {
	case media.Stretch:
		sx, sy = panscan, panscan

	case media.Original:
		sx = float64(videoW) / float64(outW)
		sy = float64(videoH) / float64(outH)

	case media.Panscan:
		sx, sy = panscan, panscan
		if videoAspect >= displayAspect {
			sy *= displayAspect / videoAspect
		} else {
			sx *= videoAspect / displayAspect
		}

	default: // media.Fill
		sx = max(1, videoAspect/displayAspect)
		sy = max(1, displayAspect/videoAspect)
	}

	return clamp(sx), clamp(sy)
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Vertex is one corner of the textured quad, in normalized device
// coordinates, centred at the origin.
type Vertex struct {
	X, Y float32
	U, V float32
}

// Quad builds the 4-vertex rectangle (triangle-fan order) for the given
// per-axis scale factors.
func Quad(sx, sy float64) [4]Vertex {
	x := float32(sx)
	y := float32(sy)
	return [4]Vertex{
		{X: -x, Y: -y, U: 0, V: 1},
		{X: x, Y: -y, U: 1, V: 1},
		{X: x, Y: y, U: 1, V: 0},
		{X: -x, Y: y, U: 0, V: 0},
	}
}
