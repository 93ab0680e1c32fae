package sched

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// categories of throttled warnings
const (
	logCategoryClaim     = `claim`
	logCategoryQueueFull = `queue_full`
	logCategoryPlacement = `placement`
	logCategorySchedule  = `schedule`
)

// newLogLimiter allows bursts of repeated warnings while keeping a wedged
// scheduler from flooding the log.
func newLogLimiter() *catrate.Limiter {
	return catrate.NewLimiter(map[time.Duration]int{
		time.Second: 5,
		time.Minute: 30,
	})
}

// warning returns a warning builder, or nil if disabled or the category is
// currently throttled. Builder methods are nil-safe.
func (s *Scheduler) warning(category string) *logiface.Builder[logiface.Event] {
	b := s.logger.Warning()
	if !b.Enabled() {
		return nil
	}
	if _, ok := s.limiter.Allow(category); !ok {
		b.Release()
		return nil
	}
	return b.Str(`category`, category)
}
