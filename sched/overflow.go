package sched

import (
	"sync"
	"sync/atomic"
)

// overflowInitCap is the initial capacity of an overflow list.
const overflowInitCap = 64

// overflowList holds re-queued jobs that did not fit in their ring. Only
// jobs that already exist spill here (yield, await continuations); new
// submissions fail with mpmc.ErrFull instead.
type overflowList struct {
	mu      sync.Mutex
	jobs    []*Job
	head    int
	pending atomic.Bool
}

func (o *overflowList) push(j *Job) {
	o.mu.Lock()
	if o.jobs == nil {
		o.jobs = make([]*Job, 0, overflowInitCap)
	}
	o.jobs = append(o.jobs, j)
	o.pending.Store(true)
	o.mu.Unlock()
}

func (o *overflowList) pop() (*Job, bool) {
	if !o.pending.Load() {
		return nil, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.head == len(o.jobs) {
		return nil, false
	}
	j := o.jobs[o.head]
	o.jobs[o.head] = nil
	o.head++
	if o.head == len(o.jobs) {
		o.jobs = o.jobs[:0]
		o.head = 0
		o.pending.Store(false)
	}
	return j, true
}

func (o *overflowList) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.jobs) - o.head
}
