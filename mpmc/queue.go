// Package mpmc implements a bounded, lock-free, multi-producer
// multi-consumer ring buffer with per-slot sequence numbers.
//
// Each slot carries a sequence counter. Slot i starts at sequence i. A
// producer at cursor pos may write the slot once its sequence equals pos,
// and publishes by storing pos+1. A consumer at cursor pos may read the slot
// once its sequence equals pos+1, and releases it for the next lap by
// storing pos+Cap(). The sequence store is what publishes the payload, so a
// successful load of the expected sequence happens-after the write of the
// element it guards.
package mpmc

import (
	"errors"
	"math/bits"
	"sync/atomic"
)

const (
	// minCapacity is the smallest ring that keeps the producer and consumer
	// sequence values for a slot distinct.
	minCapacity = 2

	// MaxCapacity bounds New, keeping the mask computation in range.
	MaxCapacity = 1 << 30
)

var (
	// ErrInvalidCapacity is returned by New for a capacity outside
	// [1, MaxCapacity].
	ErrInvalidCapacity = errors.New("mpmc: invalid capacity")

	// ErrFull is the error form of a failed enqueue, for callers that
	// surface it.
	ErrFull = errors.New("mpmc: queue full")
)

type slot[T any] struct {
	seq atomic.Uint64
	val T
}

// Queue is a bounded lock-free MPMC ring buffer. It must be created with
// New, and must not be copied after first use.
type Queue[T any] struct { // betteralign:ignore
	_     [sizeOfCacheLine]byte
	enq   atomic.Uint64 // next enqueue position
	_     [cursorPadSize]byte
	deq   atomic.Uint64 // next dequeue position
	_     [cursorPadSize]byte
	slots []slot[T]
	mask  uint64
}

// New creates a queue with capacity rounded up to the next power of two.
func New[T any](capacity int) (*Queue[T], error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, ErrInvalidCapacity
	}
	n := max(roundUpPow2(uint64(capacity)), minCapacity)
	q := &Queue[T]{
		slots: make([]slot[T], n),
		mask:  n - 1,
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q, nil
}

func roundUpPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}

// Cap returns the number of slots.
func (q *Queue[T]) Cap() int {
	return len(q.slots)
}

// Enqueue adds v, returning false without blocking if the queue is full.
// It retries for as long as other producers keep winning the race for the
// same slot.
func (q *Queue[T]) Enqueue(v T) bool {
	return q.enqueue(v, -1)
}

// TryEnqueue is Enqueue with the retry loop bounded by maxRetries lost
// races. It returns false when the queue is full or the bound is reached.
func (q *Queue[T]) TryEnqueue(v T, maxRetries int) bool {
	return q.enqueue(v, max(maxRetries, 0))
}

// Dequeue removes the oldest available element, returning false without
// blocking if the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	return q.dequeue(-1)
}

// TryDequeue is Dequeue with the retry loop bounded by maxRetries lost
// races.
func (q *Queue[T]) TryDequeue(maxRetries int) (T, bool) {
	return q.dequeue(max(maxRetries, 0))
}

// enqueue retries at most budget times, or forever if budget is negative.
func (q *Queue[T]) enqueue(v T, budget int) bool {
	pos := q.enq.Load()
	for {
		s := &q.slots[pos&q.mask]
		seq := s.seq.Load()
		switch diff := int64(seq - pos); {
		case diff == 0:
			if q.enq.CompareAndSwap(pos, pos+1) {
				s.val = v
				s.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			// the slot still holds an element from the previous lap
			return false
		}
		if budget == 0 {
			return false
		}
		if budget > 0 {
			budget--
		}
		pos = q.enq.Load()
	}
}

func (q *Queue[T]) dequeue(budget int) (T, bool) {
	pos := q.deq.Load()
	for {
		s := &q.slots[pos&q.mask]
		seq := s.seq.Load()
		switch diff := int64(seq - (pos + 1)); {
		case diff == 0:
			if q.deq.CompareAndSwap(pos, pos+1) {
				v := s.val
				var zero T
				s.val = zero
				s.seq.Store(pos + q.mask + 1)
				return v, true
			}
		case diff < 0:
			var zero T
			return zero, false
		}
		if budget == 0 {
			var zero T
			return zero, false
		}
		if budget > 0 {
			budget--
		}
		pos = q.deq.Load()
	}
}

// SizeApprox returns the number of elements between the cursors. The value
// is stale as soon as it is returned if other goroutines are active, and
// must only be used as a hint.
func (q *Queue[T]) SizeApprox() int {
	deq := q.deq.Load()
	enq := q.enq.Load()
	if enq <= deq {
		return 0
	}
	if n := enq - deq; n < uint64(len(q.slots)) {
		return int(n)
	}
	return len(q.slots)
}

// EmptyApprox reports SizeApprox() == 0.
func (q *Queue[T]) EmptyApprox() bool {
	return q.SizeApprox() == 0
}

// FullApprox reports SizeApprox() == Cap().
func (q *Queue[T]) FullApprox() bool {
	return q.SizeApprox() == len(q.slots)
}
