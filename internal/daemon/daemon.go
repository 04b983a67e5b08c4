package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tuxx/wallpaperd/internal/decoder"
	"github.com/tuxx/wallpaperd/internal/ipc"
	"github.com/tuxx/wallpaperd/internal/logx"
	"github.com/tuxx/wallpaperd/internal/media"
	"github.com/tuxx/wallpaperd/internal/render"
	"github.com/tuxx/wallpaperd/internal/state"
	"github.com/tuxx/wallpaperd/internal/texture"
	"github.com/tuxx/wallpaperd/internal/transition"
	"github.com/tuxx/wallpaperd/internal/wakeup"
)

// OutputTarget describes one compositor output this daemon will drive: its
// bound presenter (a layer-shell surface) and the geometry it was
// configured with. A daemon may be handed one target (single-output mode)
// or several (the "ALL" output sentinel), each getting its own FrameBuffer,
// TextureCache, and TransitionEngine but sharing the one Decoder/media.
type OutputTarget struct {
	Name      string
	Presenter render.Presenter
	Width     int
	Height    int
}

// outputEntry pairs one render.Output with the Renderer bound to its
// presenter.
type outputEntry struct {
	output   *render.Output
	renderer *render.Renderer
}

// Daemon is the single aggregate owning every subsystem shared across this
// process's outputs: StateStore, IpcServer, Decoder, and the shared
// decoder-wakeup pipe, plus one FrameBuffer/TextureCache/TransitionEngine/
// Renderer per driven output, in place of package-level global singletons.
type Daemon struct {
	cfg Config

	mu      sync.Mutex
	media   media.Media
	decoder decoder.Decoder
	wake    *wakeup.Pipe

	// frameWake and frameDone carry frame-callback completions from the
	// compositor dispatch thread into the MainLoop, which is the only
	// goroutine allowed to touch Output state.
	frameWake   *wakeup.Pipe
	frameDoneMu sync.Mutex
	frameDone   []*render.Output

	outputs []*outputEntry
	backend texture.Backend

	store *state.Store
	ipc   *ipc.Server

	startedAt time.Time
	stopped   bool

	pendingRestorePosition float64
	pendingRestorePaused   bool
}

// New assembles a Daemon from cfg and the targets' bound presenters (built
// by internal/wl once the compositor connection is up). backend is the
// TextureCache's shared pixel storage (normally texture.ShmBackend).
func New(cfg Config, targets []OutputTarget, backend texture.Backend, pixels render.PixelSource) (*Daemon, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("daemon: no output targets given")
	}

	m, err := cfg.media()
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	store, err := state.NewStore(cfg.StateAppName)
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	wake, err := wakeup.New()
	if err != nil {
		return nil, fmt.Errorf("daemon: decoder wakeup pipe: %w", err)
	}

	frameWake, err := wakeup.New()
	if err != nil {
		wake.Close()
		return nil, fmt.Errorf("daemon: frame wakeup pipe: %w", err)
	}

	outs := make([]*outputEntry, 0, len(targets))
	for _, t := range targets {
		trans := transition.NewEngine(cfg.TransitionKind, cfg.TransitionKind == transition.Fade, cfg.TransitionSecs)
		out := render.NewOutput(t.Name, 0, t.Width, t.Height, 1, backend, trans, wake)
		out.Media = m
		renderer := render.NewRenderer(cfg.FPS, t.Presenter, pixels)
		outs = append(outs, &outputEntry{output: out, renderer: renderer})
	}

	srv, err := ipc.Listen(cfg.SocketPath)
	if err != nil {
		wake.Close()
		frameWake.Close()
		return nil, fmt.Errorf("daemon: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		media:     m,
		wake:      wake,
		frameWake: frameWake,
		outputs:   outs,
		backend:   backend,
		store:     store,
		ipc:       srv,
		startedAt: time.Now(),
	}
	return d, nil
}

// Restore applies a previously saved state record in place of the
// command-line media. Every driven output shows the same media, so the
// first output whose name has a usable saved record wins. Call before
// StartDecoder.
func (d *Daemon) Restore() error {
	var st state.DurableState
	found := false
	for _, e := range d.outputs {
		s, err := d.store.Load(e.output.Name)
		if err == nil {
			st = s
			found = true
			break
		}
	}
	if !found {
		logx.Info("daemon: no usable saved state, using command-line media")
		return nil
	}
	m, err := media.New(st.Path, st.Options)
	if err != nil {
		logx.Warn("daemon: saved state options invalid, ignoring: %v", err)
		return nil
	}
	d.mu.Lock()
	d.media = m
	for _, e := range d.outputs {
		e.output.Media = m
	}
	d.mu.Unlock()
	d.pendingRestorePosition = st.Position
	d.pendingRestorePaused = st.Paused
	return nil
}

// Media returns the daemon's current media selection.
func (d *Daemon) Media() media.Media {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.media
}

// StartDecoder launches the decoder for the daemon's current media.
func (d *Daemon) StartDecoder(ctx context.Context) error {
	d.mu.Lock()
	m := d.media
	d.mu.Unlock()

	dec := decoder.New(m)
	if err := dec.Start(ctx, m); err != nil {
		return fmt.Errorf("daemon: start decoder: %w", err)
	}

	d.mu.Lock()
	d.decoder = dec
	d.mu.Unlock()

	if m.Kind == media.Video {
		if d.pendingRestorePosition > 0 {
			_ = dec.Seek(d.pendingRestorePosition)
		}
		if d.pendingRestorePaused {
			_ = dec.Pause()
		}
	}

	go d.pumpDecoderFrames(dec)
	return nil
}

// pumpDecoderFrames forwards frames from the decoder's channel into every
// driven output's FrameBuffer, each of which signals the shared wakeup
// pipe on every deposit. Frame is read-only once produced (Cache.Upload
// only reads Pix), so handing the same pointer to every output is safe.
func (d *Daemon) pumpDecoderFrames(dec decoder.Decoder) {
	for frame := range dec.Frames() {
		d.mu.Lock()
		outs := d.outputs
		d.mu.Unlock()
		for _, e := range outs {
			e.output.FrameBuf.Deposit(frame)
		}
	}
}

// WakeupFD is the decoder-wakeup descriptor the MainLoop polls.
func (d *Daemon) WakeupFD() int { return d.wake.ReadFD() }

// IPCWakeupFD is the IPC-wakeup descriptor the MainLoop polls.
func (d *Daemon) IPCWakeupFD() int { return d.ipc.WakeupFD() }

// FrameWakeFD is the frame-callback wakeup descriptor the MainLoop polls.
func (d *Daemon) FrameWakeFD() int { return d.frameWake.ReadFD() }

// NotifyFrameDone records that out's compositor frame callback fired.
// Safe to call from the compositor dispatch thread; the MainLoop picks
// the completion up on its next poll wakeup.
func (d *Daemon) NotifyFrameDone(out *render.Output) {
	d.frameDoneMu.Lock()
	d.frameDone = append(d.frameDone, out)
	d.frameDoneMu.Unlock()
	d.frameWake.Signal()
}

// DrainFrameDone clears the frame wakeup pipe and returns the outputs
// whose frame callbacks fired since the last drain.
func (d *Daemon) DrainFrameDone() []*render.Output {
	d.frameWake.Drain()
	d.frameDoneMu.Lock()
	outs := d.frameDone
	d.frameDone = nil
	d.frameDoneMu.Unlock()
	return outs
}

// SignalFrameWake wakes the MainLoop's poll without recording a frame
// completion, used by the compositor dispatch thread to surface a fatal
// connection error promptly.
func (d *Daemon) SignalFrameWake() { d.frameWake.Signal() }

// Outputs returns every output this daemon drives, in the order given to
// New.
func (d *Daemon) Outputs() []*render.Output {
	outs := make([]*render.Output, len(d.outputs))
	for i, e := range d.outputs {
		outs[i] = e.output
	}
	return outs
}

// RendererFor returns the Renderer bound to out's presenter.
func (d *Daemon) RendererFor(out *render.Output) *render.Renderer {
	for _, e := range d.outputs {
		if e.output == out {
			return e.renderer
		}
	}
	return nil
}

// TransitionActive reports whether a cross-fade is currently in flight on
// any driven output, used by the MainLoop to pick its poll timeout.
func (d *Daemon) TransitionActive() bool {
	for _, e := range d.outputs {
		if e.output.Transition.Active() {
			return true
		}
	}
	return false
}

// DrainDecoderWakeup clears the decoder-wakeup pipe.
func (d *Daemon) DrainDecoderWakeup() { d.wake.Drain() }

// DrainIPCCommands clears the IPC-wakeup pipe and returns queued commands.
func (d *Daemon) DrainIPCCommands() []ipc.Command {
	d.ipc.DrainWakeup()
	return d.ipc.Drain()
}

// SaveState persists the current media/position/paused triple under every
// driven output's name, logging (never failing the caller) on error.
func (d *Daemon) SaveState() {
	d.mu.Lock()
	m := d.media
	var pos float64
	var paused bool
	if d.decoder != nil {
		pos, _ = d.decoder.Position()
		paused = d.decoder.Paused()
	}
	names := make([]string, len(d.outputs))
	for i, e := range d.outputs {
		names[i] = e.output.Name
	}
	d.mu.Unlock()

	for _, name := range names {
		st := state.DurableState{
			Output:   name,
			Path:     m.Path,
			Kind:     m.Kind,
			Options:  m.Options.String(),
			Position: pos,
			Paused:   paused,
			Version:  state.CurrentVersion,
		}
		if err := d.store.Save(st); err != nil {
			logx.Error("daemon: failed to save state for %s: %v", name, err)
		}
	}
}

// Shutdown performs the daemon's cancellation sequence: save state, stop
// the IPC server, tear the decoder down gradually, release the texture
// cache.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	if d.cfg.SaveState {
		d.SaveState()
	}
	d.ipc.Shutdown()
	if d.decoder != nil {
		_ = d.decoder.Pause()
		time.Sleep(20 * time.Millisecond)
		_ = d.decoder.Close()
	}
	for _, e := range d.outputs {
		if e.output.Transition.Active() {
			_ = e.output.Cache.ReleaseTexture(e.output.Transition.Cancel())
		}
		_ = e.output.Cache.Destroy()
	}
	d.wake.Close()
	d.frameWake.Close()
}
