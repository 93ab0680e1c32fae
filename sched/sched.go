// Package sched implements a cooperative job scheduler. Jobs run on fiber
// contexts multiplexed over a fixed pool of OS-thread-locked workers, are
// distributed through one lock-free queue per priority, and get their
// stack blocks from a shared arena.
//
// A job runs until it returns or explicitly suspends itself with Yield,
// Await or Event.Wait; there is no preemption. A job that never suspends
// occupies its worker until it returns.
package sched

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-fibersched/fiber"
	"github.com/joeycumines/go-fibersched/internal/cpuinfo"
	"github.com/joeycumines/go-fibersched/mpmc"
	"github.com/joeycumines/go-fibersched/stackarena"
	"github.com/joeycumines/logiface"
	"github.com/pborman/uuid"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs jobs on a pool of workers. Create it with New and tear it
// down with Close.
//
// The counters are independently atomic, and are not mutually consistent
// as a group.
type Scheduler struct { // betteralign:ignore
	state fastState

	active        atomic.Int64
	queued        atomic.Int64
	jobsCompleted atomic.Uint64
	jobsFailed    atomic.Uint64
	claimFailures atomic.Uint64
	jobsDrained   atomic.Uint64
	shutdown      atomic.Bool
	nextID        atomic.Uint64
	parked        atomic.Int32

	queues   [NumPriorities]*mpmc.Queue[*Job]
	overflow [NumPriorities]overflowList
	stacks   *stackarena.Pool

	workers   errgroup.Group
	nWorkers  int
	wake      chan struct{}
	stop      chan struct{}
	opts      *schedulerOptions
	logger    *logiface.Logger[logiface.Event]
	limiter   *catrate.Limiter
	testHooks *schedulerTestHooks
	id        string
}

// schedulerTestHooks allows deterministic observation in tests.
type schedulerTestHooks struct {
	picked    func(j *Job)
	beforeRun func(j *Job, worker int)
	afterRun  func(j *Job, worker int, state State)
}

// New creates a scheduler and starts its workers. On failure, anything
// already built is torn down in reverse order.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		opts:      cfg,
		testHooks: cfg.testHooks,
		limiter:   newLogLimiter(),
		id:        uuid.New(),
		stop:      make(chan struct{}),
	}
	s.logger = cfg.logger.Clone().
		Str(`scheduler`, s.id).
		Logger()

	s.nWorkers = cfg.workers
	if s.nWorkers == 0 {
		if n, ok := cpuinfo.LogicalCores(); ok {
			s.nWorkers = n
		} else {
			s.nWorkers = fallbackWorkers
		}
	}
	s.wake = make(chan struct{}, s.nWorkers)

	s.stacks, err = stackarena.NewPool(
		stackarena.WithBlockSize(cfg.stackSize),
		stackarena.WithMaxSize(cfg.arenaMaxSize),
		stackarena.WithCommitChunk(cfg.commitChunk),
		stackarena.WithGuardPages(cfg.guardPages),
	)
	if err != nil {
		return nil, fmt.Errorf("sched: stack arena: %w", err)
	}

	for p := range s.queues {
		if s.queues[p], err = mpmc.New[*Job](cfg.queueCapacity); err != nil {
			_ = s.stacks.Close()
			return nil, fmt.Errorf("sched: %s queue: %w", Priority(p), err)
		}
	}

	for i := range s.nWorkers {
		w := &worker{sched: s, id: i}
		s.workers.Go(func() error {
			w.run()
			return nil
		})
	}

	s.logger.Info().
		Int(`workers`, s.nWorkers).
		Int(`queue_capacity`, s.queues[0].Cap()).
		Int(`stack_size`, s.stacks.BlockSize()).
		Bool(`idle_parking`, cfg.idleParking).
		Log(`scheduler started`)

	return s, nil
}

// ID returns the scheduler's instance identifier, used in logs.
func (s *Scheduler) ID() string {
	return s.id
}

// Workers returns the number of worker threads.
func (s *Scheduler) Workers() int {
	return s.nWorkers
}

// Schedule creates a job running fn(payload) and queues it at prio. It may
// be called from any goroutine, including from inside a job. Every failure
// is also counted in JobsFailed.
func (s *Scheduler) Schedule(fn JobFunc, payload any, prio Priority) error {
	_, err := s.spawn(fn, payload, prio, true)
	return err
}

// Task describes one job of a ScheduleBatch call.
type Task struct {
	Fn       JobFunc
	Payload  any
	Priority Priority
}

// ScheduleBatch schedules tasks in order, stopping at the first failure. It
// returns how many were scheduled; those run regardless of the error.
func (s *Scheduler) ScheduleBatch(tasks []Task) (int, error) {
	for i, task := range tasks {
		if err := s.Schedule(task.Fn, task.Payload, task.Priority); err != nil {
			return i, fmt.Errorf("sched: batch task %d: %w", i, err)
		}
	}
	return len(tasks), nil
}

// spawn creates a job, and queues it if enqueue is set.
func (s *Scheduler) spawn(fn JobFunc, payload any, prio Priority, enqueue bool) (*Job, error) {
	j, err := s.create(fn, payload, prio)
	if err == nil && enqueue && !s.enqueue(j) {
		s.release(j)
		err = fmt.Errorf("sched: %s queue: %w", prio, mpmc.ErrFull)
	}
	if err != nil {
		s.jobsFailed.Add(1)
		s.warning(logCategorySchedule).
			Str(`priority`, prio.String()).
			Err(err).
			Log(`schedule failed`)
		return nil, err
	}
	return j, nil
}

func (s *Scheduler) create(fn JobFunc, payload any, prio Priority) (*Job, error) {
	if s.state.Load() != schedRunning {
		return nil, ErrClosed
	}
	if fn == nil {
		return nil, ErrNilFunc
	}
	if !prio.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, prio)
	}

	stack, err := s.stacks.Get()
	if err != nil {
		return nil, fmt.Errorf("sched: stack: %w", err)
	}
	ctx, err := fiber.New(jobMain, stack)
	if err != nil {
		s.stacks.Put(stack)
		return nil, fmt.Errorf("sched: context: %w", err)
	}

	j := newJob()
	j.sched = s
	j.fn = fn
	j.payload = payload
	j.ctx = ctx
	j.stack = stack
	j.id = s.nextID.Add(1)
	j.prio.Store(int32(prio))
	ctx.SetValue(j)

	s.active.Add(1)
	return j, nil
}

// enqueue places j on the ring for its current priority, failing if full.
func (s *Scheduler) enqueue(j *Job) bool {
	p := j.Priority()
	s.queued.Add(1)
	if !s.queues[p].Enqueue(j) {
		s.queued.Add(-1)
		return false
	}
	s.wakeOne()
	return true
}

// requeue places an existing job, spilling to the overflow list when the
// ring is full.
func (s *Scheduler) requeue(j *Job) {
	if s.enqueue(j) {
		return
	}
	s.warning(logCategoryQueueFull).
		Uint64(`job`, j.id).
		Str(`priority`, j.Priority().String()).
		Log(`queue full, job spilled to overflow`)
	s.queued.Add(1)
	s.overflow[j.Priority()].push(j)
	s.wakeOne()
}

func (s *Scheduler) wakeOne() {
	if s.parked.Load() == 0 {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks until there are no active jobs, the scheduler shuts down, or
// ctx is done. It busy-yields.
func (s *Scheduler) Run(ctx context.Context) error {
	if CurrentJob() != nil {
		return ErrInJob
	}
	for s.active.Load() != 0 && !s.shutdown.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		runtime.Gosched()
	}
	return nil
}

// Close shuts the scheduler down: it stops and joins the workers, destroys
// every job still queued or suspended (running deferred calls of suspended
// job functions), returns every stack, and releases the arena. Jobs that
// are mid-execution when Close is called run to their next suspension
// point first. A second call returns ErrClosed.
func (s *Scheduler) Close() error {
	if CurrentJob() != nil {
		return ErrInJob
	}
	if !s.state.TryTransition(schedRunning, schedClosing) {
		return ErrClosed
	}
	s.shutdown.Store(true)
	close(s.stop)
	_ = s.workers.Wait()

	var drained uint64
	for p := PriorityHigh; p >= PriorityLow; p-- {
		for {
			j, ok := s.queues[p].Dequeue()
			if !ok {
				if j, ok = s.overflow[p].pop(); !ok {
					break
				}
			}
			s.queued.Add(-1)
			drained += s.discard(j)
		}
	}
	s.jobsDrained.Add(drained)

	err := s.stacks.Close()
	s.state.Store(schedClosed)

	s.logger.Info().
		Uint64(`drained`, drained).
		Uint64(`completed`, s.jobsCompleted.Load()).
		Uint64(`failed`, s.jobsFailed.Load()).
		Log(`scheduler closed`)

	if err != nil {
		return fmt.Errorf("sched: close: %w", err)
	}
	return nil
}

// discard destroys a job that will never run again, then the chain of jobs
// awaiting it, returning how many were destroyed.
func (s *Scheduler) discard(j *Job) uint64 {
	var n uint64
	for j != nil {
		parent := j.continuation
		s.release(j)
		n++
		j = parent
	}
	return n
}
