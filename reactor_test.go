package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReactor(t *testing.T, opts ...Option) *Reactor {
	t.Helper()
	allOpts := append([]Option{WithBackend(newFakeBackend(false))}, opts...)
	r, err := New(allOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Free() })
	return r
}

func TestAdd_RejectsUninitializedEvent(t *testing.T) {
	r := newTestReactor(t)
	ev := &Event{heapIndex: -1, priority: -1}
	assert.ErrorIs(t, r.Add(ev, -1), ErrEventNotInitialized)
}

func TestAdd_PanicsOnCrossReactorOwnership(t *testing.T) {
	r1 := newTestReactor(t)
	r2 := newTestReactor(t)

	ev := NewEvent(-1, Timeout, func(*Reactor, *Event, What) {})
	require.NoError(t, r1.Add(ev, time.Hour))

	assert.Panics(t, func() { _ = r2.Add(ev, time.Hour) })
}

func TestAdd_PanicsOnPriorityOutOfRange(t *testing.T) {
	r := newTestReactor(t, WithPriorityLevels(2))
	ev := NewEvent(-1, Timeout, func(*Reactor, *Event, What) {})
	require.NoError(t, r.SetEventPriority(ev, 1))
	ev.priority = 5 // simulate stale priority from a differently-configured reactor
	assert.Panics(t, func() { _ = r.Add(ev, -1) })
}

func TestSetEventPriority_RejectsWhilePending(t *testing.T) {
	r := newTestReactor(t)
	ev := NewEvent(-1, Timeout, func(*Reactor, *Event, What) {})
	require.NoError(t, r.Add(ev, time.Hour))
	assert.ErrorIs(t, r.SetEventPriority(ev, 0), ErrEventPending)
}

func TestSetPriorityLevels_RejectsAfterFirstAdd(t *testing.T) {
	r := newTestReactor(t)
	ev := NewEvent(-1, Timeout, func(*Reactor, *Event, What) {})
	require.NoError(t, r.Add(ev, time.Hour))
	assert.ErrorIs(t, r.SetPriorityLevels(5), ErrPriorityAlreadySet)
}

func TestDel_IsNoopForUnownedEvent(t *testing.T) {
	r := newTestReactor(t)
	ev := NewEvent(-1, Timeout, func(*Reactor, *Event, What) {})
	assert.NoError(t, r.Del(ev))
}

func TestAddDel_FDOwnershipConflict(t *testing.T) {
	r := newTestReactor(t)
	first := NewEvent(7, Read, func(*Reactor, *Event, What) {})
	second := NewEvent(7, Write, func(*Reactor, *Event, What) {})

	require.NoError(t, r.Add(first, -1))
	assert.ErrorIs(t, r.Add(second, -1), ErrFDAlreadyRegistered)

	require.NoError(t, r.Del(first))
	assert.NoError(t, r.Add(second, -1))
}

func TestDispatch_FiresTimeout(t *testing.T) {
	r := newTestReactor(t)
	fired := make(chan struct{})
	ev := NewEvent(-1, Timeout, func(r *Reactor, ev *Event, res What) {
		assert.Equal(t, Timeout, res)
		close(fired)
	})
	require.NoError(t, r.Add(ev, time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- r.Dispatch() }()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	err := <-done
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestDispatchOnce_FiresThenReturnsWithoutLooping(t *testing.T) {
	r := newTestReactor(t)
	count := 0
	ev := NewEvent(-1, Timeout|Persist, func(r *Reactor, ev *Event, res What) {
		count++
	})
	require.NoError(t, r.Add(ev, time.Millisecond))

	require.NoError(t, r.DispatchOnce())
	assert.Equal(t, 1, count)

	require.NoError(t, r.Del(ev))
}

func TestDispatchNonblock_DoesNotWaitForFutureTimer(t *testing.T) {
	r := newTestReactor(t)
	fired := false
	ev := NewEvent(-1, Timeout, func(r *Reactor, ev *Event, res What) {
		fired = true
	})
	require.NoError(t, r.Add(ev, time.Hour))

	require.NoError(t, r.DispatchNonblock())
	assert.False(t, fired)
}

func TestDispatch_PersistTimeoutRearms(t *testing.T) {
	r := newTestReactor(t)
	count := 0
	ev := NewEvent(-1, Timeout|Persist, func(r *Reactor, ev *Event, res What) {
		count++
		if count >= 3 {
			r.Break()
		}
	})
	require.NoError(t, r.Add(ev, time.Millisecond))

	err := r.Dispatch()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, count, 3)
}

func TestDispatch_ReturnsErrAlreadyRunning(t *testing.T) {
	r := newTestReactor(t)
	ev := NewEvent(-1, Timeout|Persist, func(r *Reactor, ev *Event, res What) {})
	require.NoError(t, r.Add(ev, 10*time.Millisecond))

	started := make(chan struct{})
	go func() {
		close(started)
		r.Dispatch()
	}()
	<-started
	time.Sleep(time.Millisecond)

	assert.ErrorIs(t, r.Dispatch(), ErrAlreadyRunning)
	r.Break()
}

func TestFree_UnblocksDispatch(t *testing.T) {
	r := newTestReactor(t)
	ev := NewEvent(-1, Timeout|Persist, func(r *Reactor, ev *Event, res What) {})
	require.NoError(t, r.Add(ev, time.Hour))

	done := make(chan error, 1)
	go func() { done <- r.Dispatch() }()
	time.Sleep(time.Millisecond)

	assert.NoError(t, r.Free())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Dispatch did not return after Free")
	}
}

func TestReinit_RebuildsBackendWhenRequired(t *testing.T) {
	r := newTestReactor(t, WithBackend(newFakeBackend(true)))
	ev := NewEvent(3, Read, func(*Reactor, *Event, What) {})
	require.NoError(t, r.Add(ev, -1))

	before := r.backend
	require.NoError(t, r.Reinit())
	assert.NotSame(t, before, r.backend)
}

func TestReinit_RebuildsEvenWhenBackendReportsNoFork(t *testing.T) {
	r := newTestReactor(t, WithBackend(newFakeBackend(false)))
	before := r.backend
	require.NoError(t, r.Reinit())
	assert.NotSame(t, before, r.backend)
}

func TestMetrics_TracksTimerAndBackendWaits(t *testing.T) {
	r := newTestReactor(t, WithMetrics(true))
	ev := NewEvent(-1, Timeout, func(r *Reactor, ev *Event, res What) {})
	require.NoError(t, r.Add(ev, time.Millisecond))

	err := r.Dispatch()
	assert.ErrorIs(t, err, ErrNoEvents)

	snap := r.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.TimersFired)
	assert.GreaterOrEqual(t, snap.BackendWaits, uint64(1))
}
