package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/joeycumines/go-fibersched/coro"
	"github.com/joeycumines/go-fibersched/mpmc"
	"github.com/joeycumines/go-fibersched/sched"
)

type params struct {
	jobs   int
	yields int
}

// scenario is a workload that returns an observed count, failing if it
// differs from what the workload should produce.
type scenario struct {
	name    string
	summary string
	run     func(ctx context.Context, s *sched.Scheduler, p params) (int64, error)
}

var scenarios = []scenario{
	{`roundtrip`, `jobs that each increment a counter`, runRoundTrip},
	{`yield`, `jobs that yield between increments`, runYield},
	{`priority`, `jobs split between high and low priority`, runPriority},
	{`event`, `jobs that wait on an event signalled by a job they schedule`, runEvent},
	{`await`, `jobs that await a child job`, runAwait},
	{`promise`, `jobs returning typed results through promises`, runPromise},
	{`coro`, `a generator coroutine on the calling goroutine`, runCoro},
}

func lookupScenario(name string) (scenario, bool) {
	for _, sc := range scenarios {
		if sc.name == name {
			return sc, true
		}
	}
	return scenario{}, false
}

func scenarioNames() []string {
	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.name
	}
	return names
}

func newScenariosCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   `scenarios`,
		Short: `List the workloads accepted by run`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, sc := range scenarios {
				if _, err := fmt.Fprintf(a.stdout, "%-10s %s\n", sc.name, sc.summary); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// submit schedules fn, retrying while the queue is full.
func submit(ctx context.Context, s *sched.Scheduler, fn sched.JobFunc, prio sched.Priority) error {
	for {
		err := s.Schedule(fn, nil, prio)
		if !errors.Is(err, mpmc.ErrFull) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		backoff()
	}
}

// backoff lets other work run before a retry. Inside a job it yields, so
// the worker is free to drain the queue.
func backoff() {
	if sched.CurrentJob() != nil {
		sched.Yield()
		return
	}
	runtime.Gosched()
}

func expect(observed, want int64) error {
	if observed != want {
		return fmt.Errorf("observed %d, want %d", observed, want)
	}
	return nil
}

func runRoundTrip(ctx context.Context, s *sched.Scheduler, p params) (int64, error) {
	var n atomic.Int64
	for range p.jobs {
		if err := submit(ctx, s, func(any) { n.Add(1) }, sched.PriorityLow); err != nil {
			return n.Load(), err
		}
	}
	if err := s.Run(ctx); err != nil {
		return n.Load(), err
	}
	return n.Load(), expect(n.Load(), int64(p.jobs))
}

func runYield(ctx context.Context, s *sched.Scheduler, p params) (int64, error) {
	var n atomic.Int64
	job := func(any) {
		for range p.yields {
			n.Add(1)
			sched.Yield()
		}
		n.Add(1)
	}
	for range p.jobs {
		if err := submit(ctx, s, job, sched.PriorityLow); err != nil {
			return n.Load(), err
		}
	}
	if err := s.Run(ctx); err != nil {
		return n.Load(), err
	}
	return n.Load(), expect(n.Load(), int64(p.jobs)*int64(p.yields+1))
}

func runPriority(ctx context.Context, s *sched.Scheduler, p params) (int64, error) {
	var counts [sched.NumPriorities]atomic.Int64
	for i := range p.jobs {
		prio := sched.Priority(i % sched.NumPriorities)
		if err := submit(ctx, s, func(any) { counts[prio].Add(1) }, prio); err != nil {
			return 0, err
		}
	}
	if err := s.Run(ctx); err != nil {
		return 0, err
	}
	var total int64
	for i := range counts {
		total += counts[i].Load()
	}
	return total, expect(total, int64(p.jobs))
}

var errEarlyWake = errors.New("event wait returned before the signal")

func runEvent(ctx context.Context, s *sched.Scheduler, p params) (int64, error) {
	var n atomic.Int64
	waiter := func(any) {
		ev := sched.NewEvent()
		var signalled atomic.Bool
		err := submit(ctx, sched.CurrentScheduler(), func(any) {
			signalled.Store(true)
			ev.Signal()
		}, sched.PriorityHigh)
		if err != nil {
			_ = sched.Fail(err)
			return
		}
		ev.Wait()
		if !signalled.Load() {
			_ = sched.Fail(errEarlyWake)
			return
		}
		n.Add(1)
	}
	for range p.jobs {
		if err := submit(ctx, s, waiter, sched.PriorityLow); err != nil {
			return n.Load(), err
		}
	}
	if err := s.Run(ctx); err != nil {
		return n.Load(), err
	}
	return n.Load(), expect(n.Load(), int64(p.jobs))
}

func runAwait(ctx context.Context, s *sched.Scheduler, p params) (int64, error) {
	var n atomic.Int64
	parent := func(any) {
		if err := sched.Await(func(any) { n.Add(1) }, nil, sched.PriorityHigh); err != nil {
			_ = sched.Fail(err)
			return
		}
		n.Add(1)
	}
	for range p.jobs {
		if err := submit(ctx, s, parent, sched.PriorityLow); err != nil {
			return n.Load(), err
		}
	}
	if err := s.Run(ctx); err != nil {
		return n.Load(), err
	}
	return n.Load(), expect(n.Load(), 2*int64(p.jobs))
}

func runPromise(ctx context.Context, s *sched.Scheduler, p params) (int64, error) {
	promises := make([]*sched.Promise[int64], 0, p.jobs)
	var want int64
	for i := range p.jobs {
		v := int64(i)
		want += v * v
		for {
			promise, err := sched.Go(s, sched.PriorityLow, func() (int64, error) { return v * v, nil })
			if err == nil {
				promises = append(promises, promise)
				break
			}
			if !errors.Is(err, mpmc.ErrFull) {
				return 0, err
			}
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			backoff()
		}
	}
	if err := s.Run(ctx); err != nil {
		return 0, err
	}
	var sum int64
	for _, promise := range promises {
		r := promise.Wait()
		if !r.Ok() {
			return sum, r.Err
		}
		sum += r.Value
	}
	return sum, expect(sum, want)
}

func runCoro(_ context.Context, _ *sched.Scheduler, p params) (int64, error) {
	th, err := coro.NewThread()
	if err != nil {
		return 0, err
	}
	defer func() { _ = th.Close() }()

	var next int64
	gen, err := th.New(func(any) {
		for i := 1; i <= p.jobs; i++ {
			next = int64(i)
			coro.Yield()
		}
	}, nil)
	if err != nil {
		return 0, err
	}
	var sum int64
	for th.Resume(gen) {
		sum += next
	}
	n := int64(p.jobs)
	return sum, expect(sum, n*(n+1)/2)
}
