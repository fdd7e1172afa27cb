//go:build darwin

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// wakeIdent is an arbitrary identifier for the EVFILT_USER wake event;
// kqueue lets user events share the fd-keyed namespace with a distinct
// filter, so there is no need for a self-pipe the way epoll needs an
// eventfd.
const wakeIdent = 1

// kqueueBackend implements Backend with Darwin/BSD kqueue.
type kqueueBackend struct {
	kq       int
	eventBuf []unix.Kevent_t
}

func newKqueueBackend() (Backend, error) {
	return &kqueueBackend{}, nil
}

func (b *kqueueBackend) Init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return WrapError("kqueue", err)
	}
	b.kq = kq

	wake := unix.Kevent_t{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(b.kq, []unix.Kevent_t{wake}, nil, nil); err != nil {
		unix.Close(kq)
		return WrapError("kevent add wake", err)
	}

	b.eventBuf = make([]unix.Kevent_t, 64)
	return nil
}

func (b *kqueueBackend) Add(fd int, what What) error {
	var changes []unix.Kevent_t
	if what&Read != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD})
	}
	if what&Write != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(b.kq, changes, nil, nil)
	if err != nil {
		return WrapError("kevent add", err)
	}
	return nil
}

func (b *kqueueBackend) Del(fd int, what What) error {
	var changes []unix.Kevent_t
	if what&Read != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	}
	if what&Write != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil && err != unix.ENOENT {
		return WrapError("kevent del", err)
	}
	return nil
}

func (b *kqueueBackend) Wait(timeout time.Duration, dst []ReadyFD) ([]ReadyFD, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	n, err := unix.Kevent(b.kq, nil, b.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, WrapError("kevent wait", err)
	}

	for i := 0; i < n; i++ {
		kev := b.eventBuf[i]
		if kev.Filter == unix.EVFILT_USER && kev.Ident == wakeIdent {
			continue
		}
		var what What
		switch kev.Filter {
		case unix.EVFILT_READ:
			what = Read
		case unix.EVFILT_WRITE:
			what = Write
		}
		if kev.Flags&unix.EV_EOF != 0 {
			what |= hangupWhat
		}
		if kev.Flags&unix.EV_ERROR != 0 {
			what |= errorWhat
		}
		dst = append(dst, ReadyFD{FD: int(kev.Ident), What: what})
	}
	return dst, nil
}

func (b *kqueueBackend) Wake() error {
	trigger := unix.Kevent_t{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{trigger}, nil, nil)
	if err != nil {
		return WrapError("kevent trigger wake", err)
	}
	return nil
}

func (b *kqueueBackend) NeedsReinitAfterFork() bool { return true }

func (b *kqueueBackend) Name() string { return "kqueue" }

func (b *kqueueBackend) Close() error {
	return unix.Close(b.kq)
}

func platformBackendCandidates() []func() (Backend, error) {
	return []func() (Backend, error){newKqueueBackend, newPollBackend}
}
