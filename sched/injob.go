package sched

import (
	"fmt"

	"github.com/joeycumines/go-fibersched/fiber"
)

// jobMain is the trampoline every job context starts at. It finds its job
// through the context registry rather than a parameter, runs it, and
// switches back to the worker for the last time.
func jobMain() {
	j := CurrentJob()
	if j == nil {
		panic("sched: job context started without a job")
	}
	j.fn(j.payload)
	j.flow = flowDone
	fiber.Exit(j.ctx, j.ctx.Caller())
}

// CurrentJob returns the job running on the calling goroutine, or nil.
func CurrentJob() *Job {
	if c := fiber.Current(); c != nil {
		if j, ok := c.Value().(*Job); ok {
			return j
		}
	}
	return nil
}

// CurrentThreadID returns the index of the worker running the calling job,
// or of the calling worker itself, or -1.
func CurrentThreadID() int {
	c := fiber.Current()
	if c == nil {
		return -1
	}
	switch v := c.Value().(type) {
	case *Job:
		if v.worker != nil {
			return v.worker.id
		}
	case *worker:
		return v.id
	}
	return -1
}

// CurrentScheduler returns the scheduler of the calling job or worker, or
// nil.
func CurrentScheduler() *Scheduler {
	c := fiber.Current()
	if c == nil {
		return nil
	}
	switch v := c.Value().(type) {
	case *Job:
		return v.sched
	case *worker:
		return v.sched
	}
	return nil
}

// Yield suspends the calling job and returns it to the back of its
// priority queue. It is a no-op outside a running job.
func Yield() {
	j := CurrentJob()
	if j == nil || j.state.Load() != StateRunning {
		return
	}
	j.flow = flowYielded
	fiber.Switch(j.ctx, j.ctx.Caller())
}

// Fail marks the calling job as failed. The job keeps running; when its
// function returns it ends Failed instead of Completed. The first error
// wins.
func Fail(err error) error {
	j := CurrentJob()
	if j == nil {
		return ErrNotInJob
	}
	if !j.failed {
		j.failed = true
		j.err = err
	}
	return nil
}

// Await runs fn as a child job and suspends the calling job until the child
// finishes. The calling job is not queued while it waits; the worker that
// finishes the child queues it.
func Await(fn JobFunc, payload any, prio Priority) error {
	parent := CurrentJob()
	if parent == nil || parent.state.Load() != StateRunning {
		return ErrNotInJob
	}
	child, err := parent.sched.spawn(fn, payload, prio, false)
	if err != nil {
		return fmt.Errorf("sched: await: %w", err)
	}
	child.continuation = parent
	parent.awaiting = child
	parent.flow = flowAwaited
	fiber.Switch(parent.ctx, parent.ctx.Caller())
	return nil
}
