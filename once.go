package reactor

import "time"

// Once registers a one-shot fd or timeout wait against r and returns
// immediately; cb fires exactly once, whenever r's own Dispatch loop
// gets around to it, same as any other non-Persist event. It mirrors
// libevent's event_base_once convenience wrapper: a throwaway struct
// event with its own trampoline so the caller doesn't need to manage
// an Event value for a single wait.
//
// Signal interest is rejected, matching event_base_once: a one-shot
// signal event gains nothing over a regular Add/Del pair, since the
// signal bridge is already shared by the reactor. A bare Timeout with
// timeout < 0 is treated as "fire on the next iteration" rather than
// an error, since there's no other sensible reading of "wait for a
// timeout, but I didn't say how long."
func Once(r *Reactor, fd int, what What, timeout time.Duration, cb Callback) error {
	if what&Signal != 0 {
		return WrapError("Once", ErrOnceSignalUnsupported)
	}

	armed := what
	if timeout >= 0 {
		armed |= Timeout
	} else if armed&Timeout != 0 {
		timeout = 0
	}

	ev := NewEvent(fd, armed, cb)
	if err := r.Add(ev, timeout); err != nil {
		return WrapError("Once", err)
	}
	return nil
}
