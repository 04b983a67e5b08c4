// Package ipc implements the control-socket server: a thread-per-
// connection accept loop over a Unix domain socket, a shared FIFO queue
// drained by the main loop, wake-up signalling, and no-signal response
// framing.
package ipc

import (
	"fmt"
	"os"
	"time"
	"unicode"

	"golang.org/x/sys/unix"

	"github.com/tuxx/wallpaperd/internal/logx"
	"github.com/tuxx/wallpaperd/internal/wakeup"
)

const readBufSize = 4096

// Server is a Unix stream socket listener plus the acceptor/handler
// threads and shared command queue.
type Server struct {
	path     string
	listenFD int
	shutdownR, shutdownW int
	wake     *wakeup.Pipe
	q        *queue

	done chan struct{}
}

// Listen probes for a live peer on path, unlinks a stale socket file,
// binds, and spawns the acceptor thread. Returns an error if another
// instance is already serving that socket.
func Listen(path string) (*Server, error) {
	if probeLivePeer(path) {
		return nil, fmt.Errorf("ipc: another instance is using socket %s", path)
	}
	_ = os.Remove(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("ipc: socket: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipc: bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipc: listen: %w", err)
	}

	var shutdownFDs [2]int
	if err := unix.Pipe2(shutdownFDs[:], unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipc: shutdown pipe: %w", err)
	}

	w, err := wakeup.New()
	if err != nil {
		unix.Close(fd)
		unix.Close(shutdownFDs[0])
		unix.Close(shutdownFDs[1])
		return nil, fmt.Errorf("ipc: wakeup pipe: %w", err)
	}

	s := &Server{
		path:      path,
		listenFD:  fd,
		shutdownR: shutdownFDs[0],
		shutdownW: shutdownFDs[1],
		wake:      w,
		q:         newQueue(),
		done:      make(chan struct{}),
	}

	go s.acceptLoop()
	return s, nil
}

// probeLivePeer attempts to connect to path; success means a live process
// already holds the socket.
func probeLivePeer(path string) bool {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return false
	}
	defer unix.Close(fd)
	err = unix.Connect(fd, &unix.SockaddrUnix{Name: path})
	return err == nil
}

// WakeupFD returns the descriptor the MainLoop should poll for queued
// commands.
func (s *Server) WakeupFD() int { return s.wake.ReadFD() }

// DrainWakeup clears the wakeup pipe; call after poll reports WakeupFD
// readable, before Drain.
func (s *Server) DrainWakeup() { s.wake.Drain() }

// Drain returns every queued command, in enqueue order, clearing the
// queue.
func (s *Server) Drain() []Command { return s.q.drain() }

func (s *Server) acceptLoop() {
	defer close(s.done)
	pollFDs := []unix.PollFd{
		{Fd: int32(s.shutdownR), Events: unix.POLLIN},
		{Fd: int32(s.listenFD), Events: unix.POLLIN},
	}
	for {
		pollFDs[0].Revents, pollFDs[1].Revents = 0, 0
		_, err := unix.Poll(pollFDs, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			logx.Error("ipc: acceptor poll failed: %v", err)
			return
		}
		if pollFDs[0].Revents&unix.POLLIN != 0 {
			return // shutdown requested
		}
		if pollFDs[1].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			logx.Warn("ipc: listener descriptor went bad, acceptor exiting")
			return
		}
		if pollFDs[1].Revents&unix.POLLIN != 0 {
			connFD, _, err := unix.Accept4(s.listenFD, unix.SOCK_CLOEXEC)
			if err != nil {
				if err == unix.EINTR || err == unix.EAGAIN {
					continue
				}
				logx.Warn("ipc: accept failed: %v", err)
				continue
			}
			go s.handleConn(connFD)
		}
	}
}

func (s *Server) handleConn(fd int) {
	defer unix.Close(fd)

	buf := make([]byte, 0, readBufSize)
	readBuf := make([]byte, readBufSize)
	for {
		n, err := unix.Read(fd, readBuf)
		if n <= 0 || err != nil {
			return
		}
		buf = append(buf, readBuf[:n]...)

		for {
			idx := indexByte(buf, '\n')
			if idx < 0 {
				break
			}
			line := string(buf[:idx])
			buf = buf[idx+1:]
			if !validLine(line) {
				continue
			}
			// Each queued command carries its own dup of the connection:
			// the dispatcher closes that dup after writing the response,
			// while this thread keeps reading the original, so pipelined
			// commands on one connection stay independent.
			dupFD, err := unix.Dup(fd)
			if err != nil {
				logx.Warn("ipc: dup client fd: %v", err)
				SendResponse(fd, "ERROR: internal error\n")
				continue
			}
			unix.CloseOnExec(dupFD)
			s.q.push(Command{Line: line, ClientFD: dupFD})
			s.wake.Signal()
		}

		if len(buf) >= readBufSize {
			SendResponse(fd, "ERROR: command too long\n")
			return
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// validLine rejects ASCII control characters other than space/tab, and
// drops empty lines.
func validLine(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if r == ' ' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// SendResponse writes text to fd with no-signal semantics (MSG_NOSIGNAL):
// a broken pipe never raises SIGPIPE in this process. Short writes are
// logged and the remainder retried; broken-pipe is silent.
func SendResponse(fd int, text string) {
	data := []byte(text)
	for len(data) > 0 {
		n, err := unix.SendmsgN(fd, data, nil, nil, unix.MSG_NOSIGNAL)
		if err != nil {
			if err == unix.EPIPE {
				return
			}
			logx.Warn("ipc: response write failed: %v", err)
			return
		}
		if n < len(data) {
			logx.Warn("ipc: short write to client (%d/%d bytes)", n, len(data))
		}
		data = data[n:]
	}
}

// CloseAfterRestart sends a final response, half-closes the write side,
// sleeps briefly so the kernel flushes the response before the process
// dies, and closes the descriptor. Used by commands that trigger a
// process restart or exit.
func CloseAfterRestart(fd int, text string) {
	SendResponse(fd, text)
	unix.Shutdown(fd, unix.SHUT_WR)
	time.Sleep(50 * time.Millisecond)
	unix.Close(fd)
}

// CloseConn closes a client connection once its response has been sent
// and no restart is pending.
func CloseConn(fd int) {
	unix.Close(fd)
}

// Shutdown signals the acceptor thread to exit, joins it, closes every
// descriptor, and unlinks the socket file.
func (s *Server) Shutdown() {
	var one [1]byte
	unix.Write(s.shutdownW, one[:])
	<-s.done

	unix.Close(s.shutdownR)
	unix.Close(s.shutdownW)
	unix.Close(s.listenFD)
	s.wake.Close()
	_ = os.Remove(s.path)

	// Drain anything still queued; the dispatcher will never see these
	// commands, so their client fds are closed unanswered here.
	for _, c := range s.q.drain() {
		unix.Close(c.ClientFD)
	}
}
