//go:build !windows

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollBackend implements Backend with poll(2). It is built on every
// non-Windows platform and is the last entry in the Linux and Darwin
// platformBackendCandidates lists, tried when epoll or kqueue fails to
// initialize; WithBackend can also force it without needing a specific
// kernel.
type pollBackend struct {
	fds       map[int]What
	wakeRead  int
	wakeWrite int
}

func newPollBackend() (Backend, error) {
	return &pollBackend{fds: make(map[int]What)}, nil
}

func (b *pollBackend) Init() error {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return WrapError("pipe2", err)
	}
	b.wakeRead = fds[0]
	b.wakeWrite = fds[1]
	return nil
}

func (b *pollBackend) Add(fd int, what What) error {
	b.fds[fd] |= what
	return nil
}

func (b *pollBackend) Del(fd int, what What) error {
	remaining := b.fds[fd] &^ what
	if remaining == 0 {
		delete(b.fds, fd)
	} else {
		b.fds[fd] = remaining
	}
	return nil
}

func (b *pollBackend) Wait(timeout time.Duration, dst []ReadyFD) ([]ReadyFD, error) {
	pollFDs := make([]unix.PollFd, 0, len(b.fds)+1)
	pollFDs = append(pollFDs, unix.PollFd{Fd: int32(b.wakeRead), Events: unix.POLLIN})
	for fd, what := range b.fds {
		var events int16
		if what&Read != 0 {
			events |= unix.POLLIN
		}
		if what&Write != 0 {
			events |= unix.POLLOUT
		}
		pollFDs = append(pollFDs, unix.PollFd{Fd: int32(fd), Events: events})
	}

	timeoutMs := -1
	if timeout >= 0 {
		timeoutMs = int(timeout / time.Millisecond)
	}

	n, err := unix.Poll(pollFDs, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, WrapError("poll", err)
	}
	if n == 0 {
		return dst, nil
	}

	for _, pfd := range pollFDs {
		if pfd.Revents == 0 {
			continue
		}
		if int(pfd.Fd) == b.wakeRead {
			var buf [64]byte
			for {
				if _, err := unix.Read(b.wakeRead, buf[:]); err != nil {
					break
				}
			}
			continue
		}
		var what What
		if pfd.Revents&unix.POLLIN != 0 {
			what |= Read
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			what |= Write
		}
		if pfd.Revents&unix.POLLERR != 0 {
			what |= errorWhat
		}
		if pfd.Revents&unix.POLLHUP != 0 {
			what |= hangupWhat
		}
		dst = append(dst, ReadyFD{FD: int(pfd.Fd), What: what})
	}
	return dst, nil
}

func (b *pollBackend) Wake() error {
	_, err := unix.Write(b.wakeWrite, []byte{1})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// NeedsReinitAfterFork is informational only: poll(2)'s fd set has no
// kernel-side registration to lose across fork, unlike epoll/kqueue.
// Reactor.Reinit rebuilds the backend regardless of this value.
func (b *pollBackend) NeedsReinitAfterFork() bool { return false }

func (b *pollBackend) Name() string { return "poll" }

func (b *pollBackend) Close() error {
	unix.Close(b.wakeRead)
	unix.Close(b.wakeWrite)
	return nil
}
