package daemon

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tuxx/wallpaperd/internal/ipc"
	"github.com/tuxx/wallpaperd/internal/logx"
	"github.com/tuxx/wallpaperd/internal/media"
	"github.com/tuxx/wallpaperd/internal/transition"
)

// ErrStop is returned by Dispatch when the command set requests a clean
// process exit (the `stop` command).
var ErrStop = fmt.Errorf("daemon: stop requested")

// Dispatch executes every queued command in enqueue order, synchronously,
// sending each client its response. Returns ErrStop if `stop` was among
// them.
func (d *Daemon) Dispatch(ctx context.Context, cmds []ipc.Command) error {
	stopRequested := false
	for _, c := range cmds {
		req := ipc.ParseLine(c)
		if d.dispatchOne(ctx, req) {
			stopRequested = true
		}
	}
	if stopRequested {
		return ErrStop
	}
	return nil
}

// dispatchOne runs one command and returns true if it was `stop`.
func (d *Daemon) dispatchOne(ctx context.Context, req ipc.Request) bool {
	switch req.Name {
	case "pause":
		d.cmdPause(req)
	case "resume":
		d.cmdResume(req)
	case "query":
		d.cmdQuery(req)
	case "change":
		d.cmdChange(ctx, req)
	case "stop":
		ipc.CloseAfterRestart(req.ClientFD, "OK\n")
		return true
	case "set-transition":
		d.cmdSetTransition(req)
	case "get-transition":
		d.cmdGetTransition(req)
	case "set-transition-duration":
		d.cmdSetTransitionDuration(req)
	case "preload", "unload", "list":
		d.cmdCacheStub(req)
	default:
		ipc.SendResponse(req.ClientFD, "ERROR: unknown command\n")
		ipc.CloseConn(req.ClientFD)
		return false
	}
	return false
}

func (d *Daemon) cmdPause(req ipc.Request) {
	d.mu.Lock()
	dec := d.decoder
	d.mu.Unlock()
	if dec == nil {
		ipc.SendResponse(req.ClientFD, "ERROR: no pipeline\n")
		ipc.CloseConn(req.ClientFD)
		return
	}
	if err := dec.Pause(); err != nil {
		ipc.SendResponse(req.ClientFD, "ERROR: failed to pause\n")
		ipc.CloseConn(req.ClientFD)
		return
	}
	ipc.SendResponse(req.ClientFD, "OK\n")
	ipc.CloseConn(req.ClientFD)
}

func (d *Daemon) cmdResume(req ipc.Request) {
	d.mu.Lock()
	dec := d.decoder
	d.mu.Unlock()
	if dec == nil {
		ipc.SendResponse(req.ClientFD, "ERROR: no pipeline\n")
		ipc.CloseConn(req.ClientFD)
		return
	}
	if err := dec.Resume(); err != nil {
		ipc.SendResponse(req.ClientFD, "ERROR: failed to resume\n")
		ipc.CloseConn(req.ClientFD)
		return
	}
	ipc.SendResponse(req.ClientFD, "OK\n")
	ipc.CloseConn(req.ClientFD)
}

func (d *Daemon) cmdQuery(req ipc.Request) {
	d.mu.Lock()
	m := d.media
	dec := d.decoder
	d.mu.Unlock()

	state := "playing"
	if dec != nil && dec.Paused() {
		state = "paused"
	}
	ipc.SendResponse(req.ClientFD, fmt.Sprintf("STATUS: %s %s %s\n", state, m.Kind, m.Path))
	ipc.CloseConn(req.ClientFD)
}

// cmdChange implements the change-media ordering rule: if both the
// current and new media are images, transitions are enabled, and none is
// already active, start the transition and respond before loading;
// otherwise respond OK and rebuild the pipeline in place (this daemon
// keeps the process alive rather than re-execing).
func (d *Daemon) cmdChange(ctx context.Context, req ipc.Request) {
	if req.Arg == "" {
		ipc.SendResponse(req.ClientFD, "ERROR: missing path argument\n")
		ipc.CloseConn(req.ClientFD)
		return
	}
	if _, err := os.Stat(req.Arg); err != nil {
		ipc.SendResponse(req.ClientFD, "ERROR: file not accessible\n")
		ipc.CloseConn(req.ClientFD)
		return
	}

	newMedia, err := media.New(req.Arg, "")
	if err != nil {
		ipc.SendResponse(req.ClientFD, "ERROR: file not accessible\n")
		ipc.CloseConn(req.ClientFD)
		return
	}

	d.mu.Lock()
	cur := d.media
	outs := d.outputs
	canTransition := cur.Kind == media.Image && newMedia.Kind == media.Image &&
		len(outs) > 0 && outs[0].output.Transition.Enabled() && !d.TransitionActive()
	d.mu.Unlock()

	if canTransition {
		anyStarted := false
		for _, e := range outs {
			outgoing := e.output.Cache.Detach()
			if e.output.Transition.Start(outgoing) {
				anyStarted = true
			}
		}
		// The response goes out before the new image is loaded: decoding
		// may block briefly, and IPC latency must not include it.
		ipc.SendResponse(req.ClientFD, "OK: transition started\n")
		ipc.CloseConn(req.ClientFD)
		if !anyStarted {
			logx.Warn("daemon: transition preconditions failed after passing the gate check")
		}
		if err := d.swapMedia(ctx, newMedia); err != nil {
			// The response is already on the wire; cancel silently and
			// hand each output its original texture back so the screen
			// keeps showing it until another change succeeds.
			logx.Warn("daemon: change to %s failed, keeping current media: %v", newMedia.Path, err)
			for _, e := range outs {
				if !e.output.Transition.Active() {
					continue
				}
				outgoing := e.output.Transition.Cancel()
				if err := e.output.Cache.Adopt(outgoing); err != nil {
					logx.Error("daemon: restore texture for %s: %v", e.output.Name, err)
				}
			}
		}
		return
	}

	d.SaveState()
	ipc.CloseAfterRestart(req.ClientFD, "OK\n")
	if err := d.swapMedia(ctx, newMedia); err != nil {
		logx.Error("daemon: failed to start decoder for %s: %v", newMedia.Path, err)
	}
}

// swapMedia tears down the current decoder and starts a fresh one for
// newMedia, in place. On failure the previous media selection is put
// back so query/state keep reporting what is actually displayed.
func (d *Daemon) swapMedia(ctx context.Context, newMedia media.Media) error {
	d.mu.Lock()
	oldDecoder := d.decoder
	oldMedia := d.media
	d.media = newMedia
	for _, e := range d.outputs {
		e.output.Media = newMedia
	}
	d.mu.Unlock()

	if oldDecoder != nil {
		_ = oldDecoder.Close()
	}
	if err := d.StartDecoder(ctx); err != nil {
		d.mu.Lock()
		d.media = oldMedia
		for _, e := range d.outputs {
			e.output.Media = oldMedia
		}
		d.mu.Unlock()
		return err
	}
	return nil
}

// cmdCacheStub answers preload/unload/list the way the original's cache
// subsystem does: the verbs are part of the wire protocol but never wired
// to real eviction/pinning behavior, so every call reports not-implemented
// rather than silently no-opping with a success response.
func (d *Daemon) cmdCacheStub(req ipc.Request) {
	ipc.SendResponse(req.ClientFD, "OK: not implemented\n")
	ipc.CloseConn(req.ClientFD)
}

// cmdSetTransition and its siblings apply to every driven output: a
// single daemon process showing several outputs has one transition
// configuration, just separate per-output Engine instances to track
// independent fade progress.
func (d *Daemon) cmdSetTransition(req ipc.Request) {
	switch req.Arg {
	case "fade":
		for _, e := range d.outputs {
			e.output.Transition.SetKind(transition.Fade)
		}
		ipc.SendResponse(req.ClientFD, "OK: transitions enabled\n")
	case "none":
		for _, e := range d.outputs {
			e.output.Transition.SetKind(transition.None)
		}
		ipc.SendResponse(req.ClientFD, "OK: transitions disabled\n")
	default:
		ipc.SendResponse(req.ClientFD, "ERROR: unknown transition type\n")
	}
	ipc.CloseConn(req.ClientFD)
}

func (d *Daemon) cmdGetTransition(req ipc.Request) {
	if len(d.outputs) == 0 {
		ipc.SendResponse(req.ClientFD, "ERROR: no outputs\n")
		ipc.CloseConn(req.ClientFD)
		return
	}
	t := d.outputs[0].output.Transition
	enabledWord := "disabled"
	if t.Enabled() {
		enabledWord = "enabled"
	}
	ipc.SendResponse(req.ClientFD, fmt.Sprintf("TRANSITION: %s %s %.2f\n", t.Kind(), enabledWord, t.Duration()))
	ipc.CloseConn(req.ClientFD)
}

func (d *Daemon) cmdSetTransitionDuration(req ipc.Request) {
	v, err := strconv.ParseFloat(strings.TrimSpace(req.Arg), 64)
	if err != nil {
		ipc.SendResponse(req.ClientFD, "ERROR: invalid duration (must be 0.0-5.0)\n")
		ipc.CloseConn(req.ClientFD)
		return
	}
	for _, e := range d.outputs {
		if err := e.output.Transition.SetDuration(v); err != nil {
			ipc.SendResponse(req.ClientFD, "ERROR: invalid duration (must be 0.0-5.0)\n")
			ipc.CloseConn(req.ClientFD)
			return
		}
	}
	ipc.SendResponse(req.ClientFD, fmt.Sprintf("OK: duration set to %.2f seconds\n", v))
	ipc.CloseConn(req.ClientFD)
}
