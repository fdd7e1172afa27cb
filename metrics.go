package reactor

import (
	"sync"
	"time"
)

// Metrics holds a simplified snapshot of reactor activity, enabled via
// WithMetrics. The teacher's loop used a P-Square streaming percentile
// estimator for task latency; a single-threaded reactor's dispatch loop
// has a much smaller observability surface (one backend wait per tick,
// a handful of priority queues) so a running min/max/average is enough
// to catch starvation and backend stalls without the extra machinery.
type Metrics struct {
	mu sync.Mutex

	backendWaits   uint64
	backendWaitSum time.Duration
	backendWaitMin time.Duration
	backendWaitMax time.Duration

	timersFired   uint64
	eventsActive  uint64
	callbackPanic uint64

	queueDepth []uint64 // last observed depth per priority
}

func newMetrics(priorityLevels int) *Metrics {
	return &Metrics{queueDepth: make([]uint64, priorityLevels)}
}

// recordBackendWait folds one Dispatch()->backend.Wait() duration into
// the running statistics.
func (m *Metrics) recordBackendWait(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backendWaits++
	m.backendWaitSum += d
	if m.backendWaits == 1 || d < m.backendWaitMin {
		m.backendWaitMin = d
	}
	if d > m.backendWaitMax {
		m.backendWaitMax = d
	}
}

func (m *Metrics) recordTimerFired() {
	m.mu.Lock()
	m.timersFired++
	m.mu.Unlock()
}

func (m *Metrics) recordEventActive() {
	m.mu.Lock()
	m.eventsActive++
	m.mu.Unlock()
}

func (m *Metrics) recordCallbackPanic() {
	m.mu.Lock()
	m.callbackPanic++
	m.mu.Unlock()
}

func (m *Metrics) recordQueueDepth(priority int, depth int) {
	m.mu.Lock()
	if priority >= 0 && priority < len(m.queueDepth) {
		m.queueDepth[priority] = uint64(depth)
	}
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of Metrics, safe to read without
// holding the reactor's internals.
type Snapshot struct {
	BackendWaits        uint64
	BackendWaitAverage  time.Duration
	BackendWaitMin      time.Duration
	BackendWaitMax      time.Duration
	TimersFired         uint64
	EventsActivated     uint64
	CallbackPanics      uint64
	QueueDepthByPriority []uint64
}

// Snapshot returns the current metrics. Safe to call from any goroutine.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var avg time.Duration
	if m.backendWaits > 0 {
		avg = m.backendWaitSum / time.Duration(m.backendWaits)
	}
	depths := make([]uint64, len(m.queueDepth))
	copy(depths, m.queueDepth)
	return Snapshot{
		BackendWaits:         m.backendWaits,
		BackendWaitAverage:   avg,
		BackendWaitMin:       m.backendWaitMin,
		BackendWaitMax:       m.backendWaitMax,
		TimersFired:          m.timersFired,
		EventsActivated:      m.eventsActive,
		CallbackPanics:       m.callbackPanic,
		QueueDepthByPriority: depths,
	}
}
