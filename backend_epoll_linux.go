//go:build linux

package reactor

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// epollBackend implements Backend with Linux epoll, plus an eventfd
// used purely to interrupt EpollWait from Wake.
type epollBackend struct {
	epfd     int
	wakeFD   int
	eventBuf []unix.EpollEvent
}

func newEpollBackend() (Backend, error) {
	return &epollBackend{}, nil
}

func (b *epollBackend) Init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return WrapError("epoll_create1", err)
	}
	b.epfd = epfd

	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return WrapError("eventfd", err)
	}
	b.wakeFD = wakeFD

	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(wakeFD)
		return WrapError("epoll_ctl add wake fd", err)
	}

	b.eventBuf = make([]unix.EpollEvent, 64)
	return nil
}

func (b *epollBackend) Add(fd int, what What) error {
	ev := &unix.EpollEvent{Events: whatToEpoll(what), Fd: int32(fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		if err == unix.EEXIST {
			return WrapError("epoll_ctl mod", unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, ev))
		}
		return WrapError("epoll_ctl add", err)
	}
	return nil
}

func (b *epollBackend) Del(fd int, _ What) error {
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.ENOENT {
		return WrapError("epoll_ctl del", err)
	}
	return nil
}

func (b *epollBackend) Wait(timeout time.Duration, dst []ReadyFD) ([]ReadyFD, error) {
	timeoutMs := -1
	if timeout >= 0 {
		timeoutMs = int(timeout / time.Millisecond)
	}

	n, err := unix.EpollWait(b.epfd, b.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, WrapError("epoll_wait", err)
	}

	for i := 0; i < n; i++ {
		fd := int(b.eventBuf[i].Fd)
		if fd == b.wakeFD {
			drainWakeFD(b.wakeFD)
			continue
		}
		dst = append(dst, ReadyFD{FD: fd, What: epollToWhat(b.eventBuf[i].Events)})
	}
	return dst, nil
}

func (b *epollBackend) Wake() error {
	return writeWakeFD(b.wakeFD)
}

func (b *epollBackend) NeedsReinitAfterFork() bool { return true }

func (b *epollBackend) Name() string { return "epoll" }

func (b *epollBackend) Close() error {
	unix.Close(b.wakeFD)
	return unix.Close(b.epfd)
}

func whatToEpoll(what What) uint32 {
	var events uint32
	if what&Read != 0 {
		events |= unix.EPOLLIN
	}
	if what&Write != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func epollToWhat(events uint32) What {
	var what What
	if events&unix.EPOLLIN != 0 {
		what |= Read
	}
	if events&unix.EPOLLOUT != 0 {
		what |= Write
	}
	if events&unix.EPOLLERR != 0 {
		what |= errorWhat
	}
	if events&unix.EPOLLHUP != 0 {
		what |= hangupWhat
	}
	return what
}

func platformBackendCandidates() []func() (Backend, error) {
	return []func() (Backend, error){newEpollBackend, newPollBackend}
}

// drainWakeFD reads and discards eventfd's 8-byte counter so the fd
// stops reporting readable until the next Wake.
func drainWakeFD(fd int) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != unix.EINTR {
			return
		}
	}
}

// writeWakeFD increments the eventfd counter by one, which is all
// that's needed to make it readable.
func writeWakeFD(fd int) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return nil // counter already non-zero, backend will still wake
		}
		return err
	}
}
