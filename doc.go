// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor provides a single-threaded, priority-aware I/O
// dispatch engine modelled on the classic libevent reactor.
//
// # Architecture
//
// A [Reactor] owns a set of [Event] values, each describing interest in
// a file descriptor becoming readable/writable, a signal arriving, or a
// timeout elapsing. Events move through a small state machine (init,
// inserted, active) as they are added, triggered by the
// backend, and queued for dispatch. [Reactor.Dispatch] drives the loop:
// it computes the next wake deadline from the timer heap, blocks in the
// platform [Backend] until I/O is ready or the deadline passes, fires
// expired timers, and then drains the priority activation queues,
// invoking each event's callback in strict priority order.
// [Reactor.DispatchOnce] and [Reactor.DispatchNonblock] run that same
// single tick without looping, the latter forcing a zero-timeout
// backend poll, for callers that want to drive the reactor from their
// own loop instead of handing it control.
//
// # Platform Support
//
// I/O readiness is delivered by a pluggable [Backend]:
//   - Linux: epoll, falling back to poll(2)
//   - Darwin: kqueue, falling back to poll(2)
//   - Windows: no production backend is implemented; [NewBackend]
//     returns [ErrBackendUnavailable]
//
// The backend candidate list is defined only for Linux, Darwin and
// Windows; the package does not build for other platforms.
//
// # Thread Safety
//
// A [Reactor] is not safe for concurrent use by multiple goroutines
// except where documented. [Reactor.Break] and [Reactor.Free] may be
// called from any goroutine (including a signal handler's associated
// goroutine) to interrupt a blocked [Reactor.Dispatch] call; all other
// methods, including [Reactor.Exit], must be called from the goroutine
// running Dispatch, or before Dispatch has started.
//
// # Usage
//
//	r, err := reactor.New(reactor.WithPriorityLevels(3))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Free()
//
//	ev := reactor.NewEvent(fd, reactor.Read|reactor.Persist, func(r *reactor.Reactor, e *reactor.Event, res reactor.What) {
//	    fmt.Println("fd readable")
//	})
//	if err := r.Add(ev, -1); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := r.Dispatch(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// Recoverable conditions (an fd already registered, changing the
// priority of a pending event, a closed reactor) surface as sentinel
// errors from the method that detected them. Contract violations that a
// correct caller cannot trigger (adding an event owned by another
// reactor, an event priority outside the configured range) are logged
// and then reported through an injectable fatal hook that panics by
// default, mirroring how the original C implementation calls event_err
// and aborts.
package reactor
