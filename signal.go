package reactor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

func signalNumber(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return -1
}

func signalFromNumber(signo int) os.Signal {
	return syscall.Signal(signo)
}

// signalBridge turns OS signal delivery, which always happens on a
// runtime-managed goroutine outside the caller's control, into activity
// the single Dispatch goroutine can observe. It plays the same role as
// the self-pipe trick in the original C reactor: a concurrent producer
// (here, Go's signal package) marks work pending and wakes the backend,
// and the consumer (Dispatch) drains it from its own goroutine.
type signalBridge struct {
	mu      sync.Mutex
	pending map[int]int // signo -> delivery count since last drain
	ch      chan os.Signal
	watched map[int]bool
	wake    func() error
}

func newSignalBridge(wake func() error) *signalBridge {
	return &signalBridge{
		pending: make(map[int]int),
		ch:      make(chan os.Signal, 16),
		watched: make(map[int]bool),
		wake:    wake,
	}
}

// watch starts relaying sig to the bridge if it isn't already. Safe to
// call repeatedly with the same signal.
func (b *signalBridge) watch(sig os.Signal) {
	signo := signalNumber(sig)
	b.mu.Lock()
	already := b.watched[signo]
	if !already {
		b.watched[signo] = true
	}
	b.mu.Unlock()
	if already {
		return
	}
	signal.Notify(b.ch, sig)
}

// unwatch stops relaying sig once no Event is listening for it anymore.
func (b *signalBridge) unwatch(sig os.Signal) {
	signo := signalNumber(sig)
	b.mu.Lock()
	delete(b.watched, signo)
	b.mu.Unlock()
	signal.Stop(b.ch)
	b.mu.Lock()
	for s := range b.watched {
		_ = s // signal.Stop above revoked everything; re-Notify survivors below
	}
	remaining := make([]int, 0, len(b.watched))
	for s := range b.watched {
		remaining = append(remaining, s)
	}
	b.mu.Unlock()
	for _, s := range remaining {
		signal.Notify(b.ch, signalFromNumber(s))
	}
}

// run is launched once, in its own goroutine, for the lifetime of the
// reactor that owns this bridge. It exits when ch is closed by stop.
func (b *signalBridge) run() {
	for sig := range b.ch {
		signo := signalNumber(sig)
		b.mu.Lock()
		b.pending[signo]++
		b.mu.Unlock()
		if b.wake != nil {
			_ = b.wake()
		}
	}
}

// drain returns the signal numbers delivered since the previous drain,
// resetting their counts to zero, and reports whether any were pending.
func (b *signalBridge) drain(dst []int) ([]int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	any := false
	for signo, count := range b.pending {
		if count > 0 {
			dst = append(dst, signo)
			any = true
		}
		b.pending[signo] = 0
	}
	return dst, any
}

func (b *signalBridge) stop() {
	signal.Stop(b.ch)
	close(b.ch)
}
