// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package stackarena

import (
	"fmt"
)

// arenaOptions holds configuration for Arena and Pool creation.
type arenaOptions struct {
	blockSize   int
	maxSize     int
	commitChunk int
	guardPages  bool
	// physicalMemory is a test seam over memory.TotalMemory.
	physicalMemory func() uint64
}

// Option configures an Arena or Pool.
type Option interface {
	applyArena(*arenaOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyArenaFunc func(*arenaOptions) error
}

func (o *optionImpl) applyArena(opts *arenaOptions) error {
	return o.applyArenaFunc(opts)
}

// WithBlockSize sets the size of each block, rounded up to StackAlign.
func WithBlockSize(n int) Option {
	return &optionImpl{func(opts *arenaOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: block size %d", ErrInvalidConfig, n)
		}
		opts.blockSize = n
		return nil
	}}
}

// WithMaxSize sets the size of the address space reservation. It is clamped
// to a quarter of physical memory, where that is known and smaller.
func WithMaxSize(n int) Option {
	return &optionImpl{func(opts *arenaOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: max size %d", ErrInvalidConfig, n)
		}
		opts.maxSize = n
		return nil
	}}
}

// WithCommitChunk sets the commit granularity, rounded up to the page size.
func WithCommitChunk(n int) Option {
	return &optionImpl{func(opts *arenaOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: commit chunk %d", ErrInvalidConfig, n)
		}
		opts.commitChunk = n
		return nil
	}}
}

// WithGuardPages places an inaccessible page below every block, so an
// overrun faults instead of corrupting the neighbouring block. The block
// size seen by callers is unchanged.
func WithGuardPages(enabled bool) Option {
	return &optionImpl{func(opts *arenaOptions) error {
		opts.guardPages = enabled
		return nil
	}}
}

// resolveOptions applies Option instances over the defaults.
func resolveOptions(opts []Option) (*arenaOptions, error) {
	cfg := &arenaOptions{
		blockSize:      DefaultStackSize,
		maxSize:        DefaultMaxSize,
		commitChunk:    DefaultCommitChunk,
		physicalMemory: totalMemory,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyArena(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
