package reactor

import (
	"sync"
	"time"
)

// fakeBackend is a deterministic, in-memory Backend used by tests so
// they don't depend on a real epoll/kqueue/poll fd set. Wait blocks on
// a channel signalled by Wake or by readiness injected via deliver,
// rather than touching any actual file descriptor.
type fakeBackend struct {
	mu      sync.Mutex
	fds     map[int]What
	ready   []ReadyFD
	wake    chan struct{}
	closed  bool
	reinit  bool
}

func newFakeBackend(reinit bool) func() (Backend, error) {
	return func() (Backend, error) {
		return &fakeBackend{
			fds:    make(map[int]What),
			wake:   make(chan struct{}, 1),
			reinit: reinit,
		}, nil
	}
}

func (b *fakeBackend) Init() error { return nil }

func (b *fakeBackend) Add(fd int, what What) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fds[fd] = what
	return nil
}

func (b *fakeBackend) Del(fd int, what What) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.fds[fd] &^ what
	if remaining == 0 {
		delete(b.fds, fd)
	} else {
		b.fds[fd] = remaining
	}
	return nil
}

// deliver injects readiness for fd, as if the backend's kernel primitive
// had reported it, and wakes a blocked Wait.
func (b *fakeBackend) deliver(fd int, what What) {
	b.mu.Lock()
	b.ready = append(b.ready, ReadyFD{FD: fd, What: what})
	b.mu.Unlock()
	b.Wake()
}

func (b *fakeBackend) Wait(timeout time.Duration, dst []ReadyFD) ([]ReadyFD, error) {
	b.mu.Lock()
	if len(b.ready) > 0 {
		dst = append(dst, b.ready...)
		b.ready = nil
		b.mu.Unlock()
		return dst, nil
	}
	b.mu.Unlock()

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout >= 0 {
		timer = time.NewTimer(timeout)
		timeoutCh = timer.C
		defer timer.Stop()
	}

	select {
	case <-b.wake:
	case <-timeoutCh:
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	dst = append(dst, b.ready...)
	b.ready = nil
	return dst, nil
}

func (b *fakeBackend) Wake() error {
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

func (b *fakeBackend) NeedsReinitAfterFork() bool { return b.reinit }

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
