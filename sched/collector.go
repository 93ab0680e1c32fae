package sched

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports Stats as Prometheus metrics, read on every scrape.
type Collector struct {
	s *Scheduler

	workers       *prometheus.Desc
	activeJobs    *prometheus.Desc
	queuedJobs    *prometheus.Desc
	queueDepth    *prometheus.Desc
	jobsCompleted *prometheus.Desc
	jobsFailed    *prometheus.Desc
	claimFailures *prometheus.Desc
	jobsDrained   *prometheus.Desc
	shutdown      *prometheus.Desc
	stacksLive    *prometheus.Desc
	stacksFree    *prometheus.Desc
	stacksHigh    *prometheus.Desc
	stackBytes    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for s, with metric names prefixed by
// namespace.
func NewCollector(s *Scheduler, namespace string) *Collector {
	labels := prometheus.Labels{`scheduler`: s.id}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, `scheduler`, name), help, variable, labels)
	}
	return &Collector{
		s:             s,
		workers:       desc(`workers`, `Number of worker threads.`),
		activeJobs:    desc(`active_jobs`, `Jobs created and not yet finished.`),
		queuedJobs:    desc(`queued_jobs`, `Jobs waiting in a queue.`),
		queueDepth:    desc(`queue_depth`, `Approximate jobs per priority queue.`, `priority`),
		jobsCompleted: desc(`jobs_completed_total`, `Jobs that returned normally.`),
		jobsFailed:    desc(`jobs_failed_total`, `Jobs that failed, including rejected submissions and claim failures.`),
		claimFailures: desc(`claim_failures_total`, `Dequeued jobs that could not be claimed.`),
		jobsDrained:   desc(`jobs_drained_total`, `Jobs destroyed unfinished at shutdown.`),
		shutdown:      desc(`shutdown`, `1 once shutdown has been requested.`),
		stacksLive:    desc(`stacks_live`, `Stack blocks in use.`),
		stacksFree:    desc(`stacks_free`, `Stack blocks on the free list.`),
		stacksHigh:    desc(`stacks_high_water`, `Maximum stack blocks ever in use at once.`),
		stackBytes:    desc(`stack_bytes`, `Stack arena bytes by kind.`, `kind`),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workers
	ch <- c.activeJobs
	ch <- c.queuedJobs
	ch <- c.queueDepth
	ch <- c.jobsCompleted
	ch <- c.jobsFailed
	ch <- c.claimFailures
	ch <- c.jobsDrained
	ch <- c.shutdown
	ch <- c.stacksLive
	ch <- c.stacksFree
	ch <- c.stacksHigh
	ch <- c.stackBytes
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.s.Stats()
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	gauge(c.workers, float64(st.Workers))
	gauge(c.activeJobs, float64(st.ActiveJobs))
	gauge(c.queuedJobs, float64(st.QueuedJobs))
	for p, depth := range st.QueueDepth {
		gauge(c.queueDepth, float64(depth), Priority(p).String())
	}
	counter(c.jobsCompleted, st.JobsCompleted)
	counter(c.jobsFailed, st.JobsFailed)
	counter(c.claimFailures, st.ClaimFailures)
	counter(c.jobsDrained, st.JobsDrained)
	var shutdown float64
	if st.Shutdown {
		shutdown = 1
	}
	gauge(c.shutdown, shutdown)
	gauge(c.stacksLive, float64(st.Stacks.Live))
	gauge(c.stacksFree, float64(st.Stacks.Free))
	gauge(c.stacksHigh, float64(st.Stacks.HighWater))
	gauge(c.stackBytes, float64(st.Stacks.Committed), `committed`)
	gauge(c.stackBytes, float64(st.Stacks.Reserved), `reserved`)
}
