package framebuffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tuxx/wallpaperd/internal/wakeup"
)

func TestTakeEmptyReturnsFalse(t *testing.T) {
	fb := New(nil)
	f, ok := fb.Take()
	assert.False(t, ok)
	assert.Nil(t, f)
}

func TestDepositThenTake(t *testing.T) {
	fb := New(nil)
	fb.Deposit(&Frame{Width: 2, Height: 2, Pix: make([]byte, 16)})
	f, ok := fb.Take()
	require.True(t, ok)
	assert.Equal(t, 2, f.Width)

	// Second take sees nothing new.
	f2, ok2 := fb.Take()
	assert.False(t, ok2)
	assert.Nil(t, f2)
}

func TestDepositReplacesPending(t *testing.T) {
	fb := New(nil)
	fb.Deposit(&Frame{Width: 1})
	fb.Deposit(&Frame{Width: 2})
	fb.Deposit(&Frame{Width: 3})

	f, ok := fb.Take()
	require.True(t, ok)
	assert.Equal(t, 3, f.Width, "newest frame must win")

	_, ok = fb.Take()
	assert.False(t, ok)
}

// TestLivenessUnderConcurrency:
// for any interleaving of N deposits and M takes, the observed set is a
// subsequence of the deposited sequence, and after the last deposit
// exactly one take returns the last frame.
func TestLivenessUnderConcurrency(t *testing.T) {
	fb := New(nil)
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			fb.Deposit(&Frame{Width: i})
		}
	}()

	seen := map[int]bool{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.After(2 * time.Second)
		for {
			if f, ok := fb.Take(); ok {
				seen[f.Width] = true
				if f.Width == n {
					return
				}
			}
			select {
			case <-deadline:
				return
			default:
			}
		}
	}()

	wg.Wait()
	<-done

	assert.True(t, seen[n], "must eventually observe the last deposited frame")
	for w := range seen {
		assert.True(t, w >= 1 && w <= n)
	}

	_, ok := fb.Take()
	assert.False(t, ok, "after the last deposit, subsequent takes return none")
}

// TestWakeupSignalled checks that a deposit while the poller is asleep
// always makes the wakeup pipe readable.
func TestWakeupSignalled(t *testing.T) {
	w, err := wakeup.New()
	require.NoError(t, err)
	defer w.Close()

	fb := New(w)
	fb.Deposit(&Frame{Width: 1})

	// The signal byte is already there, so the read end polls readable.
	fds := []unix.PollFd{{Fd: int32(w.ReadFD()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 1000)
	require.NoError(t, err)
	if n != 1 || fds[0].Revents&unix.POLLIN == 0 {
		t.Fatal("wakeup pipe was not signalled by deposit")
	}
}
