package reactor

import "time"

// Backend is the pluggable I/O multiplexing mechanism a Reactor drives
// during Dispatch. Concrete implementations wrap a single platform
// primitive (epoll, kqueue, poll); none of them need to know anything
// about priorities, timers, or callbacks, only fd-level interest and
// readiness.
type Backend interface {
	// Init prepares the backend for use. Called once, before the first
	// Add.
	Init() error

	// Add registers interest in what (Read and/or Write only; Signal
	// and pure Timeout events never reach the backend) for fd.
	Add(fd int, what What) error

	// Del removes previously registered interest for fd. what
	// indicates which interest bits to drop; if the remaining interest
	// is zero the backend should stop watching fd entirely.
	Del(fd int, what What) error

	// Wait blocks until at least one registered fd is ready, the given
	// timeout elapses, or Wake unblocks it, whichever comes first. A
	// negative timeout means wait indefinitely. Ready fds are appended
	// to dst (reusing its backing array) and returned.
	Wait(timeout time.Duration, dst []ReadyFD) ([]ReadyFD, error)

	// Wake interrupts a concurrent or future Wait call without waiting
	// for a registered fd or the timeout. Safe to call from any
	// goroutine, including a signal handler's goroutine.
	Wake() error

	// NeedsReinitAfterFork reports whether the backend's underlying
	// kernel object (epoll fd, kqueue fd) is invalidated across fork.
	// Informational only -- Reactor.Reinit always rebuilds the backend
	// regardless of this value, since tracking the flag costs more than
	// just always doing the rebuild.
	NeedsReinitAfterFork() bool

	// Name identifies the backend for logging/diagnostics, e.g. "epoll".
	Name() string

	// Close releases the backend's resources. The backend must not be
	// used afterward.
	Close() error
}

// ReadyFD reports one fd's readiness result from Backend.Wait.
type ReadyFD struct {
	FD   int
	What What // subset of Read/Write/Error/Hangup
}

const (
	// errorWhat and hangupWhat extend What for backend-reported
	// conditions that were never requested but are always delivered
	// when they occur, matching epoll's EPOLLERR/EPOLLHUP semantics.
	errorWhat  What = 1 << 14
	hangupWhat What = 1 << 15
)

// NewBackend probes platform-specific constructors in preference order
// and returns the first one that initializes successfully. Platform
// build-tagged files each contribute one candidate via
// platformBackendCandidates.
func NewBackend() (Backend, error) {
	var lastErr error
	for _, candidate := range platformBackendCandidates() {
		b, err := candidate()
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrBackendUnavailable
	}
	return nil, WrapError("NewBackend", lastErr)
}
