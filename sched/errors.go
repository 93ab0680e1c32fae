package sched

import (
	"errors"
)

var (
	// ErrClosed is returned by operations on a closed Scheduler, including a
	// second Close.
	ErrClosed = errors.New("sched: scheduler closed")

	// ErrNilFunc is returned when scheduling a nil function.
	ErrNilFunc = errors.New("sched: nil job function")

	// ErrInvalidPriority is returned for a priority outside the defined
	// levels.
	ErrInvalidPriority = errors.New("sched: invalid priority")

	// ErrNotInJob is returned by in-job primitives called from outside a
	// running job.
	ErrNotInJob = errors.New("sched: not called from a job")

	// ErrInJob is returned by Run and Close when called from inside a job,
	// where they could never return.
	ErrInJob = errors.New("sched: called from a job")

	// ErrInvalidOption is returned by New for an out of range option.
	ErrInvalidOption = errors.New("sched: invalid option")
)
