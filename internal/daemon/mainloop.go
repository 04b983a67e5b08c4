package daemon

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tuxx/wallpaperd/internal/logx"
)

// CompositorPoller is the narrow slice of the compositor client the
// MainLoop needs: a way to pump one round of pending events.
type CompositorPoller interface {
	Dispatch() error
}

// MainLoop multiplexes three descriptors: the frame-callback wakeup fed
// by the compositor dispatch thread, the decoder wakeup, and the IPC
// wakeup. Compositor events themselves are pumped on a dedicated thread
// (the protocol library owns the connection and exposes no raw fd), which
// forwards frame-callback completions through the daemon's frame wakeup
// so all Output state stays owned by this loop.
type MainLoop struct {
	daemon *Daemon
	client CompositorPoller

	compErr atomic.Value // error from the dispatch thread, if any
}

// NewMainLoop builds a MainLoop bound to daemon and the connected
// compositor client.
func NewMainLoop(daemon *Daemon, client CompositorPoller) *MainLoop {
	return &MainLoop{daemon: daemon, client: client}
}

// Run blocks until ctx is cancelled, the compositor connection dies, or
// the `stop` IPC command is received. Each iteration polls, applies
// frame-callback completions, drains decoder/IPC wakeups, and renders.
func (l *MainLoop) Run(ctx context.Context) error {
	go l.dispatchLoop(ctx)

	fds := []unix.PollFd{
		{Fd: int32(l.daemon.FrameWakeFD()), Events: unix.POLLIN},
		{Fd: int32(l.daemon.WakeupFD()), Events: unix.POLLIN},
		{Fd: int32(l.daemon.IPCWakeupFD()), Events: unix.POLLIN},
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		timeout := 50
		if l.daemon.TransitionActive() {
			timeout = 16
		}

		for i := range fds {
			fds[i].Revents = 0
		}
		_, err := unix.Poll(fds, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			for _, out := range l.daemon.DrainFrameDone() {
				out.CallbackPending = false
				if out.RedrawNeeded || out.Transition.Active() {
					if err := l.daemon.RendererFor(out).Render(out, time.Now()); err != nil {
						logx.Error("mainloop: render failed for %s: %v", out.Name, err)
					}
				}
			}
			if err, ok := l.compErr.Load().(error); ok && err != nil {
				logx.Error("mainloop: compositor connection lost: %v", err)
				return err
			}
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			l.daemon.DrainDecoderWakeup()
			l.renderAll(time.Now())
		}

		if fds[2].Revents&unix.POLLIN != 0 {
			cmds := l.daemon.DrainIPCCommands()
			if err := l.daemon.Dispatch(ctx, cmds); err != nil {
				if err == ErrStop {
					return nil
				}
				logx.Error("mainloop: command dispatch error: %v", err)
			}
		}

		// While a fade is in flight, advance it every iteration even if
		// nothing else woke us; the shorter poll timeout above keeps the
		// effective tick rate near the display's.
		if l.daemon.TransitionActive() {
			l.renderAll(time.Now())
		}
	}
}

// dispatchLoop pumps compositor events until the connection errors or ctx
// is cancelled. Frame-callback handlers fire on this thread; they only
// enqueue completions via Daemon.NotifyFrameDone.
func (l *MainLoop) dispatchLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.client.Dispatch(); err != nil {
			l.compErr.Store(err)
			l.daemon.SignalFrameWake()
			return
		}
	}
}

// renderAll draws every driven output that has no outstanding frame
// callback; outputs still awaiting one are marked for redraw once their
// callback fires.
func (l *MainLoop) renderAll(now time.Time) {
	for _, out := range l.daemon.Outputs() {
		if out.CallbackPending {
			out.RedrawNeeded = true
			continue
		}
		if err := l.daemon.RendererFor(out).Render(out, now); err != nil {
			logx.Error("mainloop: render failed for %s: %v", out.Name, err)
		}
	}
}
