package reactor

import (
	"container/list"
	"time"
)

// What is a bitmask of the conditions an Event is interested in, or
// (once fired) the conditions that actually triggered it.
type What uint16

const (
	// Read fires when the event's file descriptor is readable.
	Read What = 1 << iota
	// Write fires when the event's file descriptor is writable.
	Write
	// Signal fires when the event's signal number is delivered.
	Signal
	// Timeout fires when the event's timeout elapses without Read/Write
	// (or Signal) having fired first.
	Timeout
	// Persist keeps the event registered after it fires, instead of the
	// default one-shot behaviour where Del is implied by activation.
	Persist
)

// eventState is the internal lifecycle state of an Event. Unlike What,
// which describes interest/trigger conditions, eventState tracks where
// the event sits in the reactor's bookkeeping.
type eventState uint8

const (
	stateInit eventState = iota
	stateInserted
	stateActive
)

// Callback is invoked when an Event fires. res reports which of the
// event's conditions actually triggered; for a Persist event this may
// be a subset of What when, e.g., both Read and Timeout were armed and
// only the timeout elapsed.
type Callback func(r *Reactor, ev *Event, res What)

// Event describes interest in a file descriptor, signal, or timeout.
// An Event is owned by exactly one Reactor from the moment it is
// successfully Added until it is Deleted; it must not be copied or
// reused concurrently across reactors.
type Event struct {
	fd       int
	signo    int
	what     What
	priority int
	cb       Callback
	arg      any

	owner *Reactor
	state eventState

	// timer heap bookkeeping; heapIndex is -1 when not in the heap.
	// timeoutDuration is the relative timeout last passed to Add,
	// remembered so a Persist timer can be rescheduled relative to its
	// own firing rather than to the reactor's epoch; -1 means no
	// timeout is armed.
	heapIndex       int
	deadline        absoluteTime
	timeoutDuration time.Duration

	// registrationElem links this event into owner.registrations while
	// a backend add or del for it is deferred to the next tick.
	registrationElem *list.Element

	// activationElem links this event into its priority queue while
	// it is pending dispatch.
	activationElem *list.Element
	pendingRes     What
}

// NewEvent constructs an Event watching fd (ignored for pure timers,
// where fd should be -1) for the conditions in what, invoking cb when
// it fires. The event is not yet registered with any Reactor; pass it
// to Reactor.Add to activate it.
func NewEvent(fd int, what What, cb Callback) *Event {
	return &Event{
		fd:              fd,
		what:            what,
		cb:              cb,
		state:           stateInit,
		heapIndex:       -1,
		priority:        -1,
		timeoutDuration: -1,
	}
}

// NewSignalEvent constructs an Event that fires when signal number sig
// is delivered to the process. Persist is typically combined with this
// so the handler survives across deliveries.
func NewSignalEvent(sig int, what What, cb Callback) *Event {
	ev := NewEvent(-1, what|Signal, cb)
	ev.signo = sig
	return ev
}

// Set reinitializes ev in place, as the original libevent's event_set
// does, so a caller can recycle an Event struct instead of allocating a
// new one. Set must not be called while ev is added to a reactor.
func (ev *Event) Set(fd int, what What, cb Callback) {
	if ev.owner != nil {
		fatalf("reactor: Set called on event still owned by a reactor")
	}
	ev.fd = fd
	ev.what = what
	ev.cb = cb
	ev.signo = 0
	ev.state = stateInit
	ev.heapIndex = -1
	ev.priority = -1
	ev.timeoutDuration = -1
}

// Arg returns the user-supplied argument set via SetArg.
func (ev *Event) Arg() any { return ev.arg }

// SetArg attaches an arbitrary value to the event, retrievable via Arg
// from within the callback.
func (ev *Event) SetArg(v any) *Event {
	ev.arg = v
	return ev
}

// FD returns the file descriptor the event was constructed with, or -1
// for a pure timer/signal event.
func (ev *Event) FD() int { return ev.fd }

// What returns the interest mask the event was constructed with.
func (ev *Event) What() What { return ev.what }

// Priority returns the event's current priority, or -1 while it is not
// owned by a reactor (before Add, after Del, or after a one-shot event
// has fired).
func (ev *Event) Priority() int {
	if ev.owner == nil {
		return -1
	}
	return ev.priority
}

// Pending reports whether ev is currently registered (inserted, active,
// or waiting on a timeout) with its owning reactor.
func (ev *Event) Pending() bool {
	return ev.owner != nil && ev.state != stateInit
}

// initialized reports whether ev has a callback and is ready for Add.
func (ev *Event) initialized() bool {
	return ev.cb != nil
}
