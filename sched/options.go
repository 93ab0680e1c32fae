// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sched

import (
	"fmt"

	"github.com/joeycumines/go-fibersched/stackarena"
	"github.com/joeycumines/logiface"
)

const (
	// DefaultQueueCapacity is the capacity of each priority queue.
	DefaultQueueCapacity = 1024

	// fallbackWorkers is used when the CPU topology cannot be read.
	fallbackWorkers = 4

	defaultName = "fibersched"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	logger        *logiface.Logger[logiface.Event]
	testHooks     *schedulerTestHooks
	name          string
	workers       int
	queueCapacity int
	stackSize     int
	arenaMaxSize  int
	commitChunk   int
	guardPages    bool
	affinity      bool
	idleParking   bool
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithWorkers sets the number of worker threads. Zero, the default, uses
// the number of CPUs the process may run on, or 4 if that is unknown.
func WithWorkers(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if n < 0 {
			return fmt.Errorf("%w: workers %d", ErrInvalidOption, n)
		}
		opts.workers = n
		return nil
	}}
}

// WithQueueCapacity sets the capacity of each priority queue, rounded up to
// a power of two.
func WithQueueCapacity(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: queue capacity %d", ErrInvalidOption, n)
		}
		opts.queueCapacity = n
		return nil
	}}
}

// WithStackSize sets the size of each job's stack block.
func WithStackSize(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: stack size %d", ErrInvalidOption, n)
		}
		opts.stackSize = n
		return nil
	}}
}

// WithArenaMaxSize sets the address space reserved for stacks, which bounds
// the number of live jobs.
func WithArenaMaxSize(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: arena max size %d", ErrInvalidOption, n)
		}
		opts.arenaMaxSize = n
		return nil
	}}
}

// WithCommitChunk sets the granularity at which stack memory is committed.
func WithCommitChunk(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: commit chunk %d", ErrInvalidOption, n)
		}
		opts.commitChunk = n
		return nil
	}}
}

// WithGuardPages places an inaccessible page below every stack block.
func WithGuardPages(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.guardPages = enabled
		return nil
	}}
}

// WithAffinity sets whether each worker thread is pinned to one CPU,
// default true. Pinning is best effort. Pinning and thread names apply to
// the thread running the worker's dispatch loop only; job functions run on
// their own goroutines, which the Go runtime places on any thread.
func WithAffinity(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.affinity = enabled
		return nil
	}}
}

// WithIdleParking makes idle workers block on a wake signal after a bounded
// number of empty polls, instead of spinning indefinitely. Enqueues wake
// one parked worker.
func WithIdleParking(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.idleParking = enabled
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithName sets the prefix of worker thread names.
func WithName(name string) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidOption)
		}
		opts.name = name
		return nil
	}}
}

// withTestHooks installs hooks before any worker starts.
func withTestHooks(h *schedulerTestHooks) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.testHooks = h
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		name:          defaultName,
		queueCapacity: DefaultQueueCapacity,
		stackSize:     stackarena.DefaultStackSize,
		arenaMaxSize:  stackarena.DefaultMaxSize,
		commitChunk:   stackarena.DefaultCommitChunk,
		affinity:      true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
