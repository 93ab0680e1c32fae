package sched

import (
	"sync/atomic"
)

// State is the lifecycle state of a Job.
//
//	StateSuspended → StateRunning   [claimed by a worker, CAS]
//	StateRunning → StateSuspended   [Yield, Await, Event.Wait]
//	StateRunning → StateCompleted   [function returned]
//	StateRunning → StateFailed      [function returned after Fail]
//
// Completed and Failed are terminal. A job is created Suspended.
type State uint32

const (
	StateSuspended State = iota
	StateRunning
	StateCompleted
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateSuspended:
		return "Suspended"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is Completed or Failed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// jobState is the atomic state word of a job.
type jobState struct {
	v atomic.Uint32
}

func (s *jobState) Load() State {
	return State(s.v.Load())
}

func (s *jobState) Store(state State) {
	s.v.Store(uint32(state))
}

// TryTransition is a pure CAS, no validation of the transition itself.
func (s *jobState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// schedulerState is the lifecycle of a Scheduler.
//
//	schedRunning → schedClosing   [Close, CAS]
//	schedClosing → schedClosed    [teardown complete]
type schedulerState uint64

const (
	schedRunning schedulerState = iota
	schedClosing
	schedClosed
)

// fastState is a lock-free state word padded to its own cache line, read on
// every Schedule.
type fastState struct { // betteralign:ignore
	_ [sizeOfCacheLine]byte                      //nolint:unused
	v atomic.Uint64                              // state value
	_ [sizeOfCacheLine - sizeOfAtomicUint64]byte //nolint:unused
}

func (s *fastState) Load() schedulerState {
	return schedulerState(s.v.Load())
}

func (s *fastState) Store(state schedulerState) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to schedulerState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}
