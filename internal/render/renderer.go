package render

import (
	"time"

	"github.com/tuxx/wallpaperd/internal/scale"
	"github.com/tuxx/wallpaperd/internal/texture"
)

// FPS is the integer frame-rate cap, one of {30, 60, 100}.
type FPS int

const (
	FPS30  FPS = 30
	FPS60  FPS = 60
	FPS100 FPS = 100
)

// Period returns the target frame period for the cap.
func (f FPS) Period() time.Duration {
	return time.Second / time.Duration(f)
}

// Presenter is the narrow contract the Renderer needs from the
// compositor glue: deliver a composited RGBA buffer to the screen and
// manage the output's single outstanding frame-callback slot. Concrete
// implementation lives in internal/wl, built on wl_shm + layer-shell.
type Presenter interface {
	// Present uploads pix (width*height*4 bytes, RGBA) as the output's
	// next surface buffer and damages the whole surface. It does not
	// commit; the Renderer commits once per draw pass.
	Present(out *Output, pix []byte, width, height int) error
	// RequestFrameCallback drops any stale callback and requests a new
	// one; the request takes effect on the next Commit.
	RequestFrameCallback(out *Output) error
	// Commit publishes the pending buffer/damage/callback state.
	Commit(out *Output) error
}

// Renderer draws one output at a time, applying the configured scaling
// mode and cross-fade blend, and enforcing the frame-rate cap.
type Renderer struct {
	fps        FPS
	presenter  Presenter
	pixBackend PixelSource
}

// PixelSource exposes a texture's raw pixels for compositing. ShmBackend
// satisfies it directly.
type PixelSource interface {
	Pixels(h texture.Handle) (pix []byte, width, height int, ok bool)
}

// NewRenderer builds a Renderer with the given frame-rate cap.
func NewRenderer(fps FPS, presenter Presenter, pixels PixelSource) *Renderer {
	return &Renderer{fps: fps, presenter: presenter, pixBackend: pixels}
}

// Render performs one draw pass for out. now is the monotonic timestamp
// of this render attempt.
func (r *Renderer) Render(out *Output, now time.Time) error {
	// Tick the transition engine if active.
	if out.Transition.Active() {
		if released, finished := out.Transition.Tick(); finished {
			out.Cache.ReleaseTexture(released)
		}
	}

	// Take a new frame if one is pending; otherwise honour the frame-time
	// budget and skip GPU work if nothing changed recently.
	newFrame := false
	if f, ok := out.FrameBuf.Take(); ok {
		if _, err := out.Cache.Upload(f); err != nil {
			return err
		}
		newFrame = true
	}

	if !newFrame && !out.Transition.Active() {
		if !out.lastRender.IsZero() && now.Sub(out.lastRender) < r.fps.Period() {
			// Within budget and nothing new: skip the compositing work,
			// but still re-arm a frame callback if a redraw was deferred.
			return r.finish(out, false)
		}
	}

	current := out.Cache.Current()
	if !current.Initialized {
		// Nothing uploaded yet; nothing to draw.
		return r.finish(out, false)
	}

	sx, sy := scale.Factors(out.Media.Options.Scale, current.Width, current.Height, out.Width, out.Height, out.Media.Options.Panscan)

	var pix []byte
	if out.Transition.Active() {
		pix = r.composeTransition(out, sx, sy)
	} else {
		pix = r.composePlain(out, current, sx, sy)
	}
	if pix == nil {
		return r.finish(out, false)
	}

	if err := r.presenter.Present(out, pix, out.Width, out.Height); err != nil {
		return err
	}
	out.lastRender = now

	return r.finish(out, true)
}

// finish requests a frame callback when one is warranted (something was
// presented, a transition is mid-flight, or a deferred redraw needs the
// compositor to call back) and commits if there is anything to publish.
// Every present rides out with exactly one commit; a callback request
// without a present also commits, since the request is pending state.
func (r *Renderer) finish(out *Output, presented bool) error {
	requested := false
	if !out.CallbackPending && (presented || out.Transition.Active() || out.RedrawNeeded) {
		out.RedrawNeeded = false
		out.CallbackPending = true
		if err := r.presenter.RequestFrameCallback(out); err != nil {
			// A failed callback allocation drops this frame's callback;
			// the next render tick re-requests.
			out.CallbackPending = false
			return err
		}
		requested = true
	}
	if presented || requested {
		return r.presenter.Commit(out)
	}
	return nil
}

// composePlain blits the current texture into an out.Width x out.Height
// canvas at the given scale, centred, clearing to opaque black elsewhere.
func (r *Renderer) composePlain(out *Output, tex texture.Texture, sx, sy float64) []byte {
	srcPix, srcW, srcH, ok := r.pixBackend.Pixels(tex.Handle)
	if !ok {
		return nil
	}
	dst := clearCanvas(out.Width, out.Height)
	blit(dst, out.Width, out.Height, srcPix, srcW, srcH, sx, sy, 1.0)
	return dst
}

// composeTransition blits both the outgoing and incoming textures with
// their respective alphas and additively blends them (cross-fade).
func (r *Renderer) composeTransition(out *Output, sx, sy float64) []byte {
	dst := clearCanvas(out.Width, out.Height)

	outgoing := out.Transition.Outgoing()
	if outgoing.Initialized {
		if pix, w, h, ok := r.pixBackend.Pixels(outgoing.Handle); ok {
			blit(dst, out.Width, out.Height, pix, w, h, sx, sy, out.Transition.AlphaOld())
		}
	}
	current := out.Cache.Current()
	if current.Initialized {
		if pix, w, h, ok := r.pixBackend.Pixels(current.Handle); ok {
			blit(dst, out.Width, out.Height, pix, w, h, sx, sy, out.Transition.AlphaNew())
		}
	}
	return dst
}

func clearCanvas(w, h int) []byte {
	buf := make([]byte, w*h*4)
	for i := 0; i < len(buf); i += 4 {
		buf[i+0] = 0
		buf[i+1] = 0
		buf[i+2] = 0
		buf[i+3] = 0xff
	}
	return buf
}

// blit nearest-neighbor samples src (srcW x srcH) into dst (dstW x dstH),
// drawing a quad of footprint sx*dstW x sy*dstH centred on dst, alpha-
// blending each covered pixel by alpha.
func blit(dst []byte, dstW, dstH int, src []byte, srcW, srcH int, sx, sy, alpha float64) {
	if alpha <= 0 {
		return
	}
	footW := int(sx * float64(dstW))
	footH := int(sy * float64(dstH))
	if footW <= 0 || footH <= 0 {
		return
	}
	originX := (dstW - footW) / 2
	originY := (dstH - footH) / 2

	for dy := 0; dy < footH; dy++ {
		ty := originY + dy
		if ty < 0 || ty >= dstH {
			continue
		}
		sy2 := dy * srcH / footH
		if sy2 >= srcH {
			sy2 = srcH - 1
		}
		for dx := 0; dx < footW; dx++ {
			tx := originX + dx
			if tx < 0 || tx >= dstW {
				continue
			}
			sx2 := dx * srcW / footW
			if sx2 >= srcW {
				sx2 = srcW - 1
			}
			sOff := (sy2*srcW + sx2) * 4
			dOff := (ty*dstW + tx) * 4
			blendPixel(dst[dOff:dOff+4], src[sOff:sOff+4], alpha)
		}
	}
}

func blendPixel(dst, src []byte, alpha float64) {
	if alpha >= 1 {
		copy(dst, src)
		return
	}
	for c := 0; c < 4; c++ {
		dst[c] = byte(float64(src[c])*alpha + float64(dst[c])*(1-alpha))
	}
}
