package reactor

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Reactor methods. Use [errors.Is] to test
// for them; WrapError-produced errors preserve the chain.
var (
	// ErrAlreadyRunning is returned by Dispatch when the reactor is
	// already inside a Dispatch call on another goroutine.
	ErrAlreadyRunning = errors.New("reactor: dispatch already running")

	// ErrClosed is returned by Add and by the Dispatch methods once Free
	// has been called.
	ErrClosed = errors.New("reactor: reactor is closed")

	// ErrEventOwnedByOtherReactor is returned by Del and Active when the
	// event is owned by a different Reactor than the receiver. Add treats
	// the same condition as a contract violation and calls fatalf first,
	// returning this error only if fatalf returns.
	ErrEventOwnedByOtherReactor = errors.New("reactor: event owned by another reactor")

	// ErrEventNotInitialized is returned when an Event is used before
	// Set or NewEvent has assigned it a callback and interest mask.
	ErrEventNotInitialized = errors.New("reactor: event not initialized")

	// ErrPriorityOutOfRange is returned by WithPriorityLevels and
	// SetPriorityLevels when asked for fewer than one queue. An event
	// priority that is negative or not below the configured number of
	// queues makes SetEventPriority and Add call fatalf first; they
	// return this error only if fatalf returns.
	ErrPriorityOutOfRange = errors.New("reactor: priority out of range")

	// ErrPriorityAlreadySet is returned by SetPriorityLevels once an
	// event has already been added using the prior configuration.
	ErrPriorityAlreadySet = errors.New("reactor: priority levels already fixed")

	// ErrBackendUnavailable is returned by NewBackend when no I/O
	// polling mechanism is available on the current platform.
	ErrBackendUnavailable = errors.New("reactor: no backend available for this platform")

	// ErrNoEvents is returned by Dispatch, DispatchOnce and
	// DispatchNonblock when the reactor has no armed timer, registered
	// fd or signal, queued activation or deferred registration left to
	// wait on; mirrors event_base_loop returning 1 once no events remain.
	ErrNoEvents = errors.New("reactor: no events registered")

	// ErrFDAlreadyRegistered is returned by Add when a second Event
	// requests Read/Write interest on an fd that already has a
	// registered Event; combine both interests into one Event instead.
	ErrFDAlreadyRegistered = errors.New("reactor: fd already registered by another event")

	// ErrEventPending is returned by SetEventPriority when called on an
	// Event that is currently pending; change priority before Add, or
	// Del the event first.
	ErrEventPending = errors.New("reactor: cannot change priority of a pending event")

	// ErrOnceSignalUnsupported is returned by Once when asked to watch
	// a signal; use a long-lived Reactor for signal events instead.
	ErrOnceSignalUnsupported = errors.New("reactor: Once does not support signal events")

	// ErrReinitIncomplete is returned by Reinit when one or more fds
	// could not be re-registered with the rebuilt backend; the reactor
	// remains usable for every fd that did succeed.
	ErrReinitIncomplete = errors.New("reactor: one or more events failed to survive reinit")
)

// WrapError annotates err with a message while preserving the chain, so
// that errors.Is/errors.As continue to match the original cause.
//
//	return nil, WrapError("add event", err)
func WrapError(message string, cause error) error {
	if cause == nil {
		return errors.New(message)
	}
	return fmt.Errorf("%s: %w", message, cause)
}

// fatalf reports an internal invariant violation. Production code never
// expects this to fire; it exists so tests can substitute a recorder
// instead of crashing the process, the same way withClock lets tests
// inject a clock.
var fatalf = func(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
