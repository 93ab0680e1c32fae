package sched

import (
	"github.com/joeycumines/go-fibersched/stackarena"
)

// Stats is a point-in-time view of a Scheduler. Each field is read
// independently; the set is not a transactional snapshot.
type Stats struct {
	Stacks        stackarena.Stats
	QueueDepth    [NumPriorities]int
	Workers       int
	ActiveJobs    int64
	QueuedJobs    int64
	JobsCompleted uint64
	JobsFailed    uint64
	ClaimFailures uint64
	JobsDrained   uint64
	Shutdown      bool
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	st := Stats{
		Stacks:        s.stacks.Stats(),
		Workers:       s.nWorkers,
		ActiveJobs:    s.active.Load(),
		QueuedJobs:    s.queued.Load(),
		JobsCompleted: s.jobsCompleted.Load(),
		JobsFailed:    s.jobsFailed.Load(),
		ClaimFailures: s.claimFailures.Load(),
		JobsDrained:   s.jobsDrained.Load(),
		Shutdown:      s.shutdown.Load(),
	}
	for p := range st.QueueDepth {
		st.QueueDepth[p] = s.queues[p].SizeApprox() + s.overflow[p].len()
	}
	return st
}
