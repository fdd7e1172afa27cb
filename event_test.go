package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_DefaultsUnowned(t *testing.T) {
	ev := NewEvent(5, Read, func(*Reactor, *Event, What) {})
	assert.Equal(t, 5, ev.FD())
	assert.Equal(t, Read, ev.What())
	assert.False(t, ev.Pending())
	assert.Equal(t, -1, ev.Priority())
}

func TestEvent_Arg(t *testing.T) {
	ev := NewEvent(-1, Timeout, func(*Reactor, *Event, What) {})
	ev.SetArg("payload")
	assert.Equal(t, "payload", ev.Arg())
}

func TestEvent_SetPanicsWhileOwned(t *testing.T) {
	r, err := New(WithBackend(newFakeBackend(false)))
	require.NoError(t, err)
	defer r.Free()

	ev := NewEvent(-1, Timeout, func(*Reactor, *Event, What) {})
	require.NoError(t, r.Add(ev, -1))

	assert.Panics(t, func() {
		ev.Set(-1, Timeout, func(*Reactor, *Event, What) {})
	})
}

func TestEvent_Set_ResetsState(t *testing.T) {
	ev := NewEvent(1, Read, func(*Reactor, *Event, What) {})
	ev.Set(2, Write, func(*Reactor, *Event, What) {})
	assert.Equal(t, 2, ev.FD())
	assert.Equal(t, Write, ev.What())
	assert.Equal(t, -1, ev.Priority())
}
