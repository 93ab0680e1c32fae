package sched

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-fibersched/fiber"
)

// JobFunc is the body of a job. It runs on the job's own context and may
// call Yield, Await, Fail and Event.Wait.
type JobFunc func(payload any)

// flowKind records why a job last switched back to its worker.
type flowKind uint8

const (
	flowNone flowKind = iota
	flowYielded
	flowAwaited
	flowDone
)

// Job is a schedulable unit of work backed by a fiber context.
//
// Job values are recycled once the job finishes; a *Job must not be
// retained past the return of its function.
type Job struct {
	sched   *Scheduler
	fn      JobFunc
	payload any
	ctx     *fiber.Context
	stack   []byte
	err     error

	// continuation is the job awaiting this one, non-owning. awaiting is
	// the child this job is suspended on.
	continuation *Job
	awaiting     *Job
	worker       *worker

	id     uint64
	prio   atomic.Int32
	state  jobState
	flow   flowKind
	failed bool
}

var jobPool = sync.Pool{
	New: func() any {
		return &Job{}
	},
}

// newJob takes a job from the pool, reset for reuse as it may have been
// returned with stale data.
func newJob() *Job {
	j := jobPool.Get().(*Job)
	j.state.Store(StateSuspended)
	j.prio.Store(int32(PriorityLow))
	return j
}

func releaseJob(j *Job) {
	j.sched = nil
	j.fn = nil
	j.payload = nil
	j.ctx = nil
	j.stack = nil
	j.err = nil
	j.continuation = nil
	j.awaiting = nil
	j.worker = nil
	j.id = 0
	j.flow = flowNone
	j.failed = false
	jobPool.Put(j)
}

// ID returns the job's identifier, unique and increasing per scheduler.
func (j *Job) ID() uint64 {
	return j.id
}

// Priority returns the priority the job will be queued at.
func (j *Job) Priority() Priority {
	return Priority(j.prio.Load())
}

// SetPriority changes the priority used the next time the job is queued,
// returning the previous value. Invalid values are ignored.
func (j *Job) SetPriority(p Priority) Priority {
	if !p.Valid() {
		return j.Priority()
	}
	return Priority(j.prio.Swap(int32(p)))
}

// State returns the current state.
func (j *Job) State() State {
	return j.state.Load()
}

// Scratch returns the job's stack block, usable as scratch memory for the
// lifetime of the job. It lives outside the Go heap and must not hold Go
// pointers.
func (j *Job) Scratch() []byte {
	return j.stack
}

// Err returns the error passed to Fail, if any.
func (j *Job) Err() error {
	return j.err
}

// Scheduler returns the scheduler that owns the job.
func (j *Job) Scheduler() *Scheduler {
	return j.sched
}
