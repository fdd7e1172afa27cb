package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvent(deadline time.Duration) *Event {
	ev := NewEvent(-1, Timeout, func(*Reactor, *Event, What) {})
	ev.deadline = absoluteTime(deadline)
	ev.heapIndex = -1
	return ev
}

func TestTimerHeap_OrdersByDeadline(t *testing.T) {
	h := &timerHeap{}
	a := newTestEvent(30 * time.Millisecond)
	b := newTestEvent(10 * time.Millisecond)
	c := newTestEvent(20 * time.Millisecond)

	h.push(a)
	h.push(b)
	h.push(c)

	require.Equal(t, b, h.pop())
	require.Equal(t, c, h.pop())
	require.Equal(t, a, h.pop())
	assert.Nil(t, h.pop())
}

func TestTimerHeap_EraseByIdentity(t *testing.T) {
	h := &timerHeap{}
	a := newTestEvent(10 * time.Millisecond)
	b := newTestEvent(20 * time.Millisecond)
	c := newTestEvent(30 * time.Millisecond)
	h.push(a)
	h.push(b)
	h.push(c)

	h.erase(b)
	assert.Equal(t, -1, b.heapIndex)
	assert.Equal(t, 2, h.Len())

	require.Equal(t, a, h.pop())
	require.Equal(t, c, h.pop())
}

func TestTimerHeap_EraseNotInHeapIsNoop(t *testing.T) {
	h := &timerHeap{}
	a := newTestEvent(10 * time.Millisecond)
	h.erase(a) // never pushed
	assert.Equal(t, 0, h.Len())
}

func TestTimerHeap_Correct(t *testing.T) {
	h := &timerHeap{}
	a := newTestEvent(10 * time.Millisecond)
	b := newTestEvent(20 * time.Millisecond)
	h.push(a)
	h.push(b)

	h.correct(5 * time.Millisecond)

	assert.Equal(t, absoluteTime(15*time.Millisecond), a.deadline)
	assert.Equal(t, absoluteTime(25*time.Millisecond), b.deadline)
	// relative ordering between a and b is preserved
	require.Equal(t, a, h.pop())
	require.Equal(t, b, h.pop())
}
