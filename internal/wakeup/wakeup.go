// Package wakeup implements the self-pipe idiom used throughout the
// daemon: a non-blocking pipe whose read end is polled by the MainLoop
// and whose write end is signalled by a background thread (decoder
// callback, IPC handler) to interrupt the poll.
package wakeup

import (
	"golang.org/x/sys/unix"

	"github.com/tuxx/wallpaperd/internal/logx"
)

// Pipe is a non-blocking self-pipe: Signal is safe to call from any
// goroutine, Drain must only be called by the single reader (the
// MainLoop).
type Pipe struct {
	r, w int
}

// New creates a pipe with both ends non-blocking and close-on-exec.
func New() (*Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &Pipe{r: fds[0], w: fds[1]}, nil
}

// ReadFD returns the descriptor the MainLoop should poll.
func (p *Pipe) ReadFD() int { return p.r }

// Signal writes one byte to the pipe, waking any poll() blocked on
// ReadFD. A full pipe (a prior wakeup not yet drained) is treated as
// success: it is equivalent to the new wakeup. Any other failure is
// logged, never propagated — deposits/enqueues must never block or
// fail because of a wakeup write.
func (p *Pipe) Signal() {
	var buf [1]byte
	_, err := unix.Write(p.w, buf[:])
	if err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		logx.Warn("wakeup: signal write failed: %v", err)
	}
}

// Drain empties the pipe. Call this once per MainLoop iteration after
// poll reports ReadFD readable.
func (p *Pipe) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Close releases both descriptors.
func (p *Pipe) Close() error {
	err1 := unix.Close(p.r)
	err2 := unix.Close(p.w)
	if err1 != nil {
		return err1
	}
	return err2
}
