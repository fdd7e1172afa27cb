package reactor

import "container/list"

// activationQueues holds one FIFO per priority level. Lower index is
// higher priority, matching the original npriorities/event_base_priority
// convention: priority 0 always drains fully before priority 1 is even
// looked at.
type activationQueues struct {
	queues []list.List
}

func newActivationQueues(levels int) *activationQueues {
	return &activationQueues{queues: make([]list.List, levels)}
}

// activate moves ev into its priority queue with res recorded as the
// conditions that fired. If ev is already queued, res is merged into
// its pending result bits and it is not queued a second time; libevent
// treats re-activation of an already-active event the same way rather
// than double-queuing it, and a Persist read event that is both
// readable and about to be re-armed by a fresh registration should
// never get dispatched twice for the same readiness.
func (q *activationQueues) activate(ev *Event, res What) {
	if ev.state == stateActive {
		ev.pendingRes |= res
		return
	}
	ev.state = stateActive
	ev.pendingRes = res
	ev.activationElem = q.queues[ev.priority].PushBack(ev)
}

func (q *activationQueues) deactivate(ev *Event) {
	if ev.activationElem != nil {
		q.queues[ev.priority].Remove(ev.activationElem)
		ev.activationElem = nil
	}
	if ev.state == stateActive {
		ev.state = stateInserted
	}
}

func (q *activationQueues) depth(priority int) int {
	return q.queues[priority].Len()
}

// highestNonEmpty returns the index of the highest-priority (lowest
// numbered) queue with pending events, or -1 if all are empty.
func (q *activationQueues) highestNonEmpty() int {
	for i := range q.queues {
		if q.queues[i].Len() > 0 {
			return i
		}
	}
	return -1
}

// drainOne pops and dispatches at most as many events as were queued
// in priority at the moment drainOne was called. New activations
// raised by a callback land at the back of the same queue and are
// picked up by a later call to drainOne, unless a callback Del'd an
// event queued ahead of them, which lets them run in this pass. This
// bounds a single priority
// level's drain to one full pass, so a pathological callback that keeps
// re-activating itself cannot starve Dispatch's higher-level loop from
// ever reconsidering the timer heap and backend wait.
func (q *activationQueues) drainOne(r *Reactor, priority int) int {
	queue := &q.queues[priority]
	n := queue.Len()
	dispatched := 0
	for i := 0; i < n; i++ {
		front := queue.Front()
		if front == nil {
			break
		}
		ev := front.Value.(*Event)
		queue.Remove(front)
		ev.activationElem = nil
		res := ev.pendingRes
		ev.pendingRes = 0
		ev.state = stateInserted

		if ev.what&Persist == 0 {
			r.delLocked(ev)
			ev.owner = nil
			ev.state = stateInit
		}

		r.invoke(ev, res)
		dispatched++
	}
	return dispatched
}
