package sched

import (
	"fmt"
	"runtime"

	"github.com/joeycumines/go-fibersched/fiber"
	"github.com/joeycumines/go-fibersched/internal/cpuinfo"
)

// idleSpinLimit is the number of empty polls before a worker parks, when
// parking is enabled.
const idleSpinLimit = 64

// worker is the per-thread context, passed through the worker entry point
// and reachable from jobs via CurrentThreadID. It lives from worker start to
// worker exit.
type worker struct {
	sched *Scheduler
	main  *fiber.Context
	id    int
	tid   int
}

func (w *worker) run() {
	s := w.sched

	// never unlocked, so the thread exits with the worker along with its
	// affinity and name
	runtime.LockOSThread()
	w.place()

	w.main = fiber.NewMain()
	w.main.SetValue(w)
	defer fiber.Destroy(w.main)

	s.logger.Debug().
		Int(`worker`, w.id).
		Int(`tid`, w.tid).
		Log(`worker started`)
	defer func() {
		s.logger.Debug().
			Int(`worker`, w.id).
			Log(`worker stopped`)
	}()

	var spins int
	for !s.shutdown.Load() {
		j := s.pick()
		if j == nil {
			spins = s.idle(spins)
			continue
		}
		spins = 0
		s.dispatch(w, j)
	}
}

// place applies best-effort thread placement; failures are logged only.
func (w *worker) place() {
	s := w.sched
	w.tid = cpuinfo.ThreadID()
	if s.opts.affinity {
		if err := cpuinfo.PinCurrentThread(w.id); err != nil {
			s.warning(logCategoryPlacement).
				Int(`worker`, w.id).
				Err(err).
				Log(`worker affinity not applied`)
		}
	}
	if err := cpuinfo.NameCurrentThread(fmt.Sprintf(`%s-%d`, s.opts.name, w.id)); err != nil {
		s.warning(logCategoryPlacement).
			Int(`worker`, w.id).
			Err(err).
			Log(`worker thread not named`)
	}
}

// pick returns the next job in strict priority order, High first.
func (s *Scheduler) pick() *Job {
	for p := PriorityHigh; p >= PriorityLow; p-- {
		j, ok := s.queues[p].Dequeue()
		if !ok {
			j, ok = s.overflow[p].pop()
		}
		if ok {
			s.queued.Add(-1)
			if h := s.testHooks; h != nil && h.picked != nil {
				h.picked(j)
			}
			return j
		}
	}
	return nil
}

// idle backs off when no job was found, returning the new spin count.
func (s *Scheduler) idle(spins int) int {
	if !s.opts.idleParking || spins < idleSpinLimit {
		runtime.Gosched()
		return spins + 1
	}
	s.parked.Add(1)
	defer s.parked.Add(-1)
	// recheck after announcing, an enqueue in between either sees parked or
	// is seen here
	if s.queued.Load() > 0 || s.shutdown.Load() {
		return 0
	}
	select {
	case <-s.wake:
	case <-s.stop:
	}
	return 0
}

// dispatch claims j and runs it until its next suspension point.
func (s *Scheduler) dispatch(w *worker, j *Job) {
	if !j.state.TryTransition(StateSuspended, StateRunning) {
		s.jobsFailed.Add(1)
		s.claimFailures.Add(1)
		s.warning(logCategoryClaim).
			Int(`worker`, w.id).
			Uint64(`job`, j.id).
			Str(`state`, j.state.Load().String()).
			Log(`job claim failed`)
		return
	}

	j.worker = w
	j.flow = flowNone
	h := s.testHooks
	if h != nil && h.beforeRun != nil {
		h.beforeRun(j, w.id)
	}

	fiber.Switch(w.main, j.ctx)

	switch j.flow {
	case flowYielded:
		j.state.Store(StateSuspended)
		if h != nil && h.afterRun != nil {
			h.afterRun(j, w.id, StateSuspended)
		}
		s.requeue(j)

	case flowAwaited:
		child := j.awaiting
		j.awaiting = nil
		j.state.Store(StateSuspended)
		if h != nil && h.afterRun != nil {
			h.afterRun(j, w.id, StateSuspended)
		}
		// the parent is fully switched out before its child can finish
		s.requeue(child)

	case flowDone:
		state := StateCompleted
		if j.failed {
			state = StateFailed
		}
		j.state.Store(state)
		if h != nil && h.afterRun != nil {
			h.afterRun(j, w.id, state)
		}
		s.finish(j, state)

	default:
		// the job's goroutine ended without returning, and the fiber abort
		// handler did not terminate the process
		if !j.failed {
			j.failed = true
			j.err = fiber.ErrAbnormalExit
		}
		j.state.Store(StateFailed)
		if h != nil && h.afterRun != nil {
			h.afterRun(j, w.id, StateFailed)
		}
		s.finish(j, StateFailed)
	}
}

// finish accounts for a job that reached a terminal state, releases its
// resources, and queues the job awaiting it, if any.
func (s *Scheduler) finish(j *Job, state State) {
	if state == StateFailed {
		s.jobsFailed.Add(1)
		s.logger.Debug().
			Uint64(`job`, j.id).
			Err(j.err).
			Log(`job failed`)
	} else {
		s.jobsCompleted.Add(1)
	}
	parent := j.continuation
	s.release(j)
	if parent != nil {
		s.requeue(parent)
	}
}

// release destroys the context, returns the stack, and recycles j.
func (s *Scheduler) release(j *Job) {
	fiber.Destroy(j.ctx)
	s.stacks.Put(j.stack)
	s.active.Add(-1)
	releaseJob(j)
}
