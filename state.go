package reactor

import "sync/atomic"

// runState is the lifecycle of a Reactor's Dispatch call. Unlike the
// teacher's multi-state CAS machine built for a concurrent, reentrant
// task loop, a single-threaded reactor only ever needs to answer three
// questions: has Dispatch started, is a Break/Exit pending, and has
// Free been called -- so this collapses to one small state value
// instead of a cache-line-padded atomic struct.
type runState int32

const (
	stateIdle runState = iota
	stateDispatching
	stateBreakRequested
	stateClosed
)

// atomicRunState wraps runState in an atomic for the handful of methods
// (Break, Free) that may legitimately be called from a goroutine other
// than the one running Dispatch.
type atomicRunState struct {
	v atomic.Int32
}

func (s *atomicRunState) load() runState {
	return runState(s.v.Load())
}

func (s *atomicRunState) store(state runState) {
	s.v.Store(int32(state))
}

func (s *atomicRunState) compareAndSwap(from, to runState) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}
