package sched

import (
	"runtime"
	"sync/atomic"
)

// Event is a one-shot completion flag for synchronizing jobs. Waiting is
// cooperative busy-waiting: a waiting job keeps being rescheduled, at low
// priority, until the event is signalled.
//
// The zero value is an unsignalled event.
type Event struct {
	signalled atomic.Bool
}

// NewEvent returns an unsignalled event.
func NewEvent() *Event {
	return &Event{}
}

// Signal sets the event. Writes made before Signal are visible to any
// waiter after Wait returns.
func (e *Event) Signal() {
	e.signalled.Store(true)
}

// IsSignalled reports whether Signal has been called since the last Reset.
func (e *Event) IsSignalled() bool {
	return e.signalled.Load()
}

// Reset re-arms the event.
func (e *Event) Reset() {
	e.signalled.Store(false)
}

// Wait returns once the event is signalled. Inside a job it drops the job
// to PriorityLow and yields until then, restoring the priority before
// returning. Outside a job it spins with runtime.Gosched.
func (e *Event) Wait() {
	if e.IsSignalled() {
		return
	}
	j := CurrentJob()
	if j == nil {
		for !e.IsSignalled() {
			runtime.Gosched()
		}
		return
	}
	prev := j.SetPriority(PriorityLow)
	for !e.IsSignalled() {
		Yield()
	}
	j.SetPriority(prev)
}
