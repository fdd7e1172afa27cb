package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnce_FiresOnExistingReactorsLoop(t *testing.T) {
	r := newTestReactor(t)
	fired := make(chan What, 1)

	require.NoError(t, Once(r, -1, Timeout, time.Millisecond, func(r *Reactor, ev *Event, res What) {
		fired <- res
	}))

	done := make(chan error, 1)
	go func() { done <- r.Dispatch() }()

	select {
	case res := <-fired:
		assert.Equal(t, Timeout, res)
	case <-time.After(time.Second):
		t.Fatal("Once callback never fired")
	}

	assert.ErrorIs(t, <-done, ErrNoEvents)
}

func TestOnce_DoesNotBlockCaller(t *testing.T) {
	r := newTestReactor(t)

	err := Once(r, -1, Timeout, time.Hour, func(*Reactor, *Event, What) {})
	require.NoError(t, err)

	// If Once blocked until the callback fired (as a throwaway-reactor
	// implementation would), this call would never return since the
	// timeout is an hour away.
}

func TestOnce_RejectsSignalInterest(t *testing.T) {
	r := newTestReactor(t)
	err := Once(r, -1, Signal, -1, func(*Reactor, *Event, What) {})
	assert.ErrorIs(t, err, ErrOnceSignalUnsupported)
}
