package reactor

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalBridge_DeliversAndWakes(t *testing.T) {
	woken := make(chan struct{}, 1)
	bridge := newSignalBridge(func() error {
		select {
		case woken <- struct{}{}:
		default:
		}
		return nil
	})
	go bridge.run()
	defer bridge.stop()

	bridge.watch(syscall.SIGUSR2)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR2))

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("wake was never called after signal delivery")
	}

	var buf []int
	var any bool
	// Drain can race the notify goroutine updating the counter; retry
	// briefly instead of sleeping a fixed, possibly-flaky amount.
	for i := 0; i < 100 && !any; i++ {
		buf, any = bridge.drain(buf[:0])
		if !any {
			time.Sleep(time.Millisecond)
		}
	}
	require.True(t, any)
	assert.Contains(t, buf, int(syscall.SIGUSR2))
}

func TestSignalBridge_UnwatchClearsWatched(t *testing.T) {
	bridge := newSignalBridge(func() error { return nil })
	go bridge.run()
	defer bridge.stop()

	bridge.watch(syscall.SIGUSR2)
	bridge.unwatch(syscall.SIGUSR2)

	assert.False(t, bridge.watched[int(syscall.SIGUSR2)])
}
