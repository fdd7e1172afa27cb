// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"fmt"
	"os"
	"time"
)

// Reactor drives event dispatch for a set of registered Events. See the
// package doc for the overall model; New constructs one, Add/Del manage
// event registration, and Dispatch runs the loop.
type Reactor struct {
	opts    *reactorOptions
	backend Backend

	priorityLevels  int
	fixedPriorities bool
	activation      *activationQueues
	registrations   registrationQueue

	heap         timerHeap
	ioEvents     map[int]*Event
	signalEvents map[int][]*Event
	signals      *signalBridge

	run          atomicRunState
	epoch        time.Time
	lastObserved absoluteTime

	metrics *Metrics

	readyBuf  []ReadyFD
	signalBuf []int
}

// New constructs a Reactor, selecting and initializing a Backend per
// opts (or platform auto-detection if WithBackend is not supplied).
func New(opts ...Option) (*Reactor, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, WrapError("New", err)
	}

	factory := cfg.backendFactory
	if factory == nil {
		factory = NewBackend
	}
	backend, err := factory()
	if err != nil {
		return nil, WrapError("New", err)
	}
	if err := backend.Init(); err != nil {
		return nil, WrapError("New", err)
	}

	r := &Reactor{
		opts:           cfg,
		backend:        backend,
		priorityLevels: cfg.priorityLevels,
		activation:     newActivationQueues(cfg.priorityLevels),
		ioEvents:       make(map[int]*Event),
		signalEvents:   make(map[int][]*Event),
		epoch:          cfg.clock(),
	}
	r.heap.reserve(16)
	r.signals = newSignalBridge(r.backend.Wake)
	go r.signals.run()

	if cfg.metricsEnabled {
		r.metrics = newMetrics(cfg.priorityLevels)
	}

	r.logInfo("dispatch", "reactor initialized with backend "+backend.Name(), nil, nil)
	if _, ok := os.LookupEnv("EVENT_SHOW_METHOD"); ok {
		// Unlike the structured log entries above, this diagnostic must
		// be visible with no logger configured at all -- it exists so a
		// caller can debug backend selection without first wiring up
		// WithLogger, matching the env var's original role as a
		// zero-configuration escape hatch.
		fmt.Fprintln(os.Stderr, "reactor: using", backend.Name())
	}
	return r, nil
}

// now returns the current time as an absoluteTime relative to the
// reactor's epoch, using the configured (possibly injected) clock.
func (r *Reactor) now() absoluteTime {
	return absoluteTime(r.opts.clock().Sub(r.epoch))
}

func (r *Reactor) dispatching() bool {
	return r.run.load() == stateDispatching
}

// SetPriorityLevels changes the number of priority queues. It must be
// called before the first Add; afterward it returns ErrPriorityAlreadySet.
func (r *Reactor) SetPriorityLevels(n int) error {
	if r.fixedPriorities {
		return ErrPriorityAlreadySet
	}
	if n < 1 {
		return ErrPriorityOutOfRange
	}
	r.priorityLevels = n
	r.activation = newActivationQueues(n)
	if r.metrics != nil {
		r.metrics = newMetrics(n)
	}
	return nil
}

// SetEventPriority assigns ev's dispatch priority. It must be called
// before Add (or after Del); changing the priority of a pending event
// returns ErrEventPending. An out-of-range priority is a contract
// violation (a correct caller always knows its reactor's configured
// levels), so it is fatal rather than recoverable.
func (r *Reactor) SetEventPriority(ev *Event, priority int) error {
	if ev.Pending() {
		return ErrEventPending
	}
	if priority < 0 || priority >= r.priorityLevels {
		r.logError("dispatch", "priority out of range", ev, ErrPriorityOutOfRange)
		fatalf("reactor: priority %d out of range [0, %d)", priority, r.priorityLevels)
		return ErrPriorityOutOfRange
	}
	ev.priority = priority
	return nil
}

// Add registers ev for dispatch. timeout < 0 means no timeout is armed
// (ev.What() must then include Read, Write, or Signal); timeout >= 0
// arms a deadline, implicitly adding the Timeout bit to what fires.
//
// Re-adding an already-pending event first removes its previous
// registration, matching libevent's event_add semantics: the new
// timeout/interest simply replaces the old one.
//
// Adding an event already owned by a different reactor, or one whose
// priority exceeds this reactor's configured levels, is a contract
// violation a correct caller cannot trigger (per spec.md §7), so both
// are fatal rather than recoverable.
func (r *Reactor) Add(ev *Event, timeout time.Duration) error {
	if r.run.load() == stateClosed {
		return ErrClosed
	}
	if !ev.initialized() {
		return ErrEventNotInitialized
	}
	if ev.owner != nil && ev.owner != r {
		r.logError("dispatch", "event owned by another reactor", ev, ErrEventOwnedByOtherReactor)
		fatalf("reactor: event owned by another reactor")
		return ErrEventOwnedByOtherReactor
	}
	if ev.Pending() {
		r.delLocked(ev)
	}

	ev.owner = r
	r.fixedPriorities = true
	if ev.priority < 0 {
		ev.priority = r.priorityLevels / 2
	}
	if ev.priority >= r.priorityLevels {
		ev.owner = nil
		r.logError("dispatch", "priority out of range", ev, ErrPriorityOutOfRange)
		fatalf("reactor: priority %d out of range [0, %d)", ev.priority, r.priorityLevels)
		return ErrPriorityOutOfRange
	}

	if ev.what&Signal != 0 {
		r.signalEvents[ev.signo] = append(r.signalEvents[ev.signo], ev)
		r.signals.watch(signalFromNumber(ev.signo))
	} else if ev.fd >= 0 && ev.what&(Read|Write) != 0 {
		if existing, ok := r.ioEvents[ev.fd]; ok && existing != ev {
			ev.owner = nil
			return ErrFDAlreadyRegistered
		}
		r.ioEvents[ev.fd] = ev
		if err := r.scheduleBackendAdd(ev); err != nil {
			delete(r.ioEvents, ev.fd)
			ev.owner = nil
			return WrapError("Add", err)
		}
	}

	ev.timeoutDuration = timeout
	if timeout >= 0 {
		ev.deadline = r.now() + absoluteTime(timeout)
		r.heap.push(ev)
	}

	ev.state = stateInserted
	r.logDebug("dispatch", "event added", ev, nil)
	return nil
}

// Del unregisters ev. It is a no-op if ev is not currently pending.
func (r *Reactor) Del(ev *Event) error {
	if ev.owner == nil {
		return nil
	}
	if ev.owner != r {
		return ErrEventOwnedByOtherReactor
	}
	r.delLocked(ev)
	ev.owner = nil
	ev.state = stateInit
	return nil
}

// delLocked removes ev's bookkeeping (heap, backend, activation, signal
// registration) without clearing ev.owner, so Add can reuse it when
// re-registering an already-pending event.
func (r *Reactor) delLocked(ev *Event) {
	if ev.heapIndex >= 0 {
		r.heap.erase(ev)
	}
	if ev.activationElem != nil {
		r.activation.deactivate(ev)
	}
	if ev.what&Signal != 0 {
		r.removeSignalEvent(ev)
	} else if ev.fd >= 0 && ev.what&(Read|Write) != 0 {
		if r.ioEvents[ev.fd] == ev {
			delete(r.ioEvents, ev.fd)
			if err := r.scheduleBackendDel(ev); err != nil {
				r.logError("backend", "del failed", ev, err)
			}
		}
	}
}

func (r *Reactor) removeSignalEvent(ev *Event) {
	list := r.signalEvents[ev.signo]
	for i, e := range list {
		if e == ev {
			r.signalEvents[ev.signo] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.signalEvents[ev.signo]) == 0 {
		delete(r.signalEvents, ev.signo)
		r.signals.unwatch(signalFromNumber(ev.signo))
	}
}

// Active force-activates ev with the given result bits, as though the
// backend or timer heap had just triggered it. Mirrors libevent's
// event_active, used to inject synthetic events (e.g. for tests, or to
// kick off work on the next tick without a real fd or timer).
func (r *Reactor) Active(ev *Event, what What) error {
	if ev.owner != r {
		return ErrEventOwnedByOtherReactor
	}
	r.activation.activate(ev, what)
	if r.metrics != nil {
		r.metrics.recordEventActive()
	}
	return nil
}

// scheduleBackendAdd applies an fd's interest to the backend, deferring
// the actual syscall to the top of the next tick if called while
// Dispatch is mid-iteration, so an fd number freed and reused within
// the same tick can't be confused with the event being added for it.
func (r *Reactor) scheduleBackendAdd(ev *Event) error {
	if r.dispatching() {
		r.registrations.enqueueAdd(ev)
		return nil
	}
	return r.backend.Add(ev.fd, ev.what&(Read|Write))
}

func (r *Reactor) scheduleBackendDel(ev *Event) error {
	if r.dispatching() {
		r.registrations.enqueueDel(ev)
		return nil
	}
	return r.backend.Del(ev.fd, ev.what&(Read|Write))
}

// drainRegistrations flushes deferred backend syscalls queued by
// scheduleBackendAdd/Del during the previous tick's drain phase. Dels
// are applied before adds, so an fd that was deleted and registered
// again within one tick ends up registered.
func (r *Reactor) drainRegistrations() {
	_ = r.registrations.drainDels(func(ev *Event) error {
		if err := r.backend.Del(ev.fd, ev.what&(Read|Write)); err != nil {
			r.logError("backend", "deferred del failed", ev, err)
		}
		return nil
	})
	_ = r.registrations.drainAdds(func(ev *Event) error {
		if ev.owner != r || r.ioEvents[ev.fd] != ev {
			return nil // deleted again before this landed
		}
		if err := r.backend.Add(ev.fd, ev.what&(Read|Write)); err != nil {
			r.logError("backend", "deferred add failed", ev, err)
		}
		return nil
	})
}

// hasPendingWork reports whether the reactor has anything left to wait
// on: a timer, fd interest, or a watched signal. Dispatch returns
// ErrNoEvents once this goes false, mirroring event_base_loop's
// behaviour when the event set is exhausted.
func (r *Reactor) hasPendingWork() bool {
	return r.heap.Len() > 0 || len(r.ioEvents) > 0 || len(r.signalEvents) > 0 ||
		r.activation.highestNonEmpty() >= 0 || !r.registrations.empty()
}

// calculateTimeout returns how long Dispatch should block in the
// backend: the time until the next timer deadline, 0 if one has
// already passed, or -1 to block indefinitely when no timer is armed.
func (r *Reactor) calculateTimeout() time.Duration {
	top := r.heap.top()
	if top == nil {
		return -1
	}
	d := time.Duration(top.deadline - r.now())
	if d < 0 {
		return 0
	}
	return d
}

// correctClock detects a backwards jump in the wall clock since the
// last observation and moves every armed timer back by the same delta,
// so each timer keeps its remaining wait and relative ordering between
// timers survives an NTP step or a VM resume from suspend. Dispatch
// calls this once per tick.
func (r *Reactor) correctClock() {
	cur := r.now()
	if cur < r.lastObserved {
		delta := time.Duration(r.lastObserved - cur)
		r.heap.correct(-delta)
		r.logWarn("timer", "clock moved backwards, correcting timer heap", nil, nil)
	}
	r.lastObserved = cur
}

// runTimers activates every event whose deadline has passed.
func (r *Reactor) runTimers() {
	now := r.now()
	for {
		top := r.heap.top()
		if top == nil || top.deadline > now {
			return
		}
		r.heap.pop()
		if r.metrics != nil {
			r.metrics.recordTimerFired()
		}
		r.activation.activate(top, Timeout)
	}
}

// invoke runs ev's callback with panic containment, and rearms it if it
// is a Persist event whose timer just fired.
func (r *Reactor) invoke(ev *Event, res What) {
	defer func() {
		if p := recover(); p != nil {
			if r.metrics != nil {
				r.metrics.recordCallbackPanic()
			}
			r.logError("dispatch", "event callback panicked", ev, asError(p))
		}
	}()

	ev.cb(r, ev, res)

	if ev.what&Persist != 0 && ev.owner == r && res&Timeout != 0 && ev.timeoutDuration >= 0 {
		ev.deadline = r.now() + absoluteTime(ev.timeoutDuration)
		r.heap.push(ev)
	}
}

func asError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return WrapError("panic", errPanicValue{p})
}

type errPanicValue struct{ v any }

func (e errPanicValue) Error() string { return formatPanicValue(e.v) }

func formatPanicValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return "non-error panic value"
}

// Dispatch runs the reactor's event loop until Break or Exit is called,
// or until there is nothing left to wait on, in which case it returns
// ErrNoEvents.
func (r *Reactor) Dispatch() error {
	if err := r.startDispatching(); err != nil {
		return err
	}
	r.logInfo("dispatch", "dispatch started", nil, nil)

	for {
		switch r.run.load() {
		case stateBreakRequested:
			r.run.store(stateIdle)
			r.logInfo("dispatch", "dispatch broken", nil, nil)
			return nil
		case stateClosed:
			return ErrClosed
		}

		if !r.hasPendingWork() {
			r.run.compareAndSwap(stateDispatching, stateIdle)
			return ErrNoEvents
		}

		r.tick(false)
	}
}

// DispatchOnce runs a single tick: it blocks in the backend for at most
// one wait, activates whatever fired (timers, ready fds, signals),
// drains the single highest-priority non-empty activation queue, and
// returns, without looping back for more. Events left queued at lower
// priorities run on a later call. Maps onto the original reactor's ONCE loop
// flag (spec.md's Loop flags).
func (r *Reactor) DispatchOnce() error {
	return r.dispatchSingleTick(false)
}

// DispatchNonblock runs a single tick without blocking in the backend
// at all: any already-ready fds, due timers, or pending signals are
// handled, but it never waits for new ones. Maps onto the original
// reactor's NONBLOCK loop flag.
func (r *Reactor) DispatchNonblock() error {
	return r.dispatchSingleTick(true)
}

// dispatchSingleTick backs DispatchOnce and DispatchNonblock: both run
// exactly one tick under the same state machine Dispatch uses, so
// either composes correctly with a concurrent Dispatch caller (both
// observe ErrAlreadyRunning rather than racing the backend).
func (r *Reactor) dispatchSingleTick(nonblock bool) error {
	if err := r.startDispatching(); err != nil {
		return err
	}

	if !r.hasPendingWork() {
		r.run.compareAndSwap(stateDispatching, stateIdle)
		return ErrNoEvents
	}

	r.tick(nonblock)

	if r.run.load() == stateBreakRequested {
		r.run.store(stateIdle)
		return nil
	}
	r.run.compareAndSwap(stateDispatching, stateIdle)
	return nil
}

// startDispatching claims the dispatching state for the calling
// goroutine, returning ErrClosed/ErrAlreadyRunning if it can't.
func (r *Reactor) startDispatching() error {
	if !r.run.compareAndSwap(stateIdle, stateDispatching) {
		switch r.run.load() {
		case stateClosed:
			return ErrClosed
		default:
			return ErrAlreadyRunning
		}
	}
	r.lastObserved = r.now()
	return nil
}

// tick runs one full iteration: drain deferred registrations, correct
// the clock, wait on the backend (or poll with a zero timeout if
// nonblock is set, or if a priority queue already has leftover work),
// activate whatever the wait and timer heap turned up, and drain the
// single highest-priority non-empty queue. Shared by Dispatch's loop
// and the single-tick DispatchOnce/DispatchNonblock entry points.
func (r *Reactor) tick(nonblock bool) {
	r.drainRegistrations()
	r.correctClock()

	timeout := r.calculateTimeout()
	if nonblock || r.activation.highestNonEmpty() >= 0 {
		// Either the caller explicitly asked not to block, or
		// something is already queued from a prior tick's leftover
		// re-activation (or an external Active() call before this
		// Dispatch started) -- poll instead of blocking so it gets a
		// chance to drain promptly.
		timeout = 0
	}

	waitStart := r.opts.clock()
	ready, err := r.backend.Wait(timeout, r.readyBuf[:0])
	if r.metrics != nil {
		r.metrics.recordBackendWait(r.opts.clock().Sub(waitStart))
	}
	if err != nil {
		r.logError("backend", "wait failed", nil, err)
	}
	r.readyBuf = ready

	for _, rfd := range ready {
		if ev, ok := r.ioEvents[rfd.FD]; ok {
			r.activation.activate(ev, rfd.What&(Read|Write|errorWhat|hangupWhat))
			if r.metrics != nil {
				r.metrics.recordEventActive()
			}
		}
	}

	r.signalBuf, _ = r.signals.drain(r.signalBuf[:0])
	for _, signo := range r.signalBuf {
		for _, ev := range r.signalEvents[signo] {
			r.activation.activate(ev, Signal)
			if r.metrics != nil {
				r.metrics.recordEventActive()
			}
		}
	}

	r.runTimers()

	// Drain only the single highest-priority non-empty queue this tick,
	// as one bounded pass (drainOne). Lower-priority queues wait for a
	// later tick even if they're non-empty now -- this is the
	// documented starvation trade-off of strict priority ordering, not
	// an oversight: a priority-0 callback that re-activates a
	// priority-0 event must never let priority-1+ work run in the same
	// tick it was seen pending. Dispatch's own loop calls tick again to
	// pick up whatever's left; after DispatchOnce/DispatchNonblock the
	// leftovers wait for the caller's next call.
	if priority := r.activation.highestNonEmpty(); priority >= 0 {
		if r.metrics != nil {
			r.metrics.recordQueueDepth(priority, r.activation.depth(priority))
		}
		r.activation.drainOne(r, priority)
	}
}

// Break requests that Dispatch return as soon as the current tick's
// activation drain finishes, without running any further timers or
// backend waits. Safe to call from any goroutine.
func (r *Reactor) Break() error {
	r.run.compareAndSwap(stateDispatching, stateBreakRequested)
	return r.backend.Wake()
}

// Exit schedules Break to be called once timeout elapses, letting any
// events already due fire first. timeout < 0 breaks on the very next
// tick boundary.
func (r *Reactor) Exit(timeout time.Duration) error {
	ev := NewEvent(-1, Timeout, func(r *Reactor, _ *Event, _ What) {
		_ = r.Break()
	})
	if timeout < 0 {
		timeout = 0
	}
	return r.Add(ev, timeout)
}

// MethodName returns the active backend's name (e.g. "epoll").
func (r *Reactor) MethodName() string {
	return r.backend.Name()
}

// Metrics returns the reactor's metrics, or nil if WithMetrics was not
// supplied to New.
func (r *Reactor) Metrics() *Metrics {
	return r.metrics
}

// Reinit unconditionally tears down and rebuilds the backend after a
// fork, re-registering every currently pending fd's interest with the
// fresh backend. It does not check NeedsReinitAfterFork: a backend
// that would otherwise survive the fork unscathed (poll(2)) still gets
// rebuilt, since tracking which backend needs the step is more
// bookkeeping than just always doing it.
func (r *Reactor) Reinit() error {
	factory := r.opts.backendFactory
	if factory == nil {
		factory = NewBackend
	}
	next, err := factory()
	if err != nil {
		return WrapError("Reinit", err)
	}
	if err := next.Init(); err != nil {
		return WrapError("Reinit", err)
	}

	// Re-add every registered fd against the fresh backend, continuing
	// past individual failures rather than aborting the whole reinit:
	// one fd a child process can no longer touch (e.g. inherited from a
	// parent's now-closed namespace) shouldn't prevent the rest of the
	// reactor's events from surviving the fork.
	failed := 0
	for fd, ev := range r.ioEvents {
		if err := next.Add(fd, ev.what&(Read|Write)); err != nil {
			failed++
			r.logError("reinit", "failed to re-add fd after fork", ev, err)
		}
	}

	old := r.backend
	r.backend = next
	_ = old.Close()

	r.signals.stop()
	r.signals = newSignalBridge(r.backend.Wake)
	go r.signals.run()
	for signo := range r.signalEvents {
		r.signals.watch(signalFromNumber(signo))
	}

	if failed > 0 {
		return WrapError("Reinit", ErrReinitIncomplete)
	}

	r.logInfo("reinit", "reactor reinitialized after fork", nil, nil)
	return nil
}

// Free releases the reactor's backend and background goroutines. The
// reactor must not be used afterward. Safe to call even while another
// goroutine is blocked in Dispatch; Dispatch will observe ErrClosed.
func (r *Reactor) Free() error {
	for {
		prev := r.run.load()
		if prev == stateClosed {
			return nil
		}
		if r.run.compareAndSwap(prev, stateClosed) {
			if prev == stateDispatching {
				_ = r.backend.Wake()
			}
			break
		}
	}
	r.signals.stop()
	return r.backend.Close()
}
