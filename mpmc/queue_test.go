package mpmc

import (
	"runtime"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNew_Capacity(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: 1, want: 2},
		{in: 2, want: 2},
		{in: 3, want: 4},
		{in: 1000, want: 1024},
		{in: 1024, want: 1024},
		{in: 1025, want: 2048},
	}
	for _, tt := range tests {
		q, err := New[int](tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, q.Cap(), "capacity %d", tt.in)
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1, MaxCapacity + 1} {
		_, err := New[int](c)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	}
}

func TestQueue_FIFOAndFull(t *testing.T) {
	q, err := New[int](4)
	require.NoError(t, err)

	assert.True(t, q.EmptyApprox())
	for i := range 4 {
		require.True(t, q.Enqueue(i))
	}
	assert.True(t, q.FullApprox())
	assert.False(t, q.Enqueue(99), "enqueue into a full queue")
	assert.Equal(t, 4, q.SizeApprox())

	for i := range 4 {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok, "dequeue from an empty queue")
	assert.True(t, q.EmptyApprox())
}

func TestQueue_Wraparound(t *testing.T) {
	q, err := New[int](2)
	require.NoError(t, err)
	for i := range 1000 {
		require.True(t, q.Enqueue(i))
		v, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.SizeApprox())
}

func TestQueue_TryVariants(t *testing.T) {
	q, err := New[string](2)
	require.NoError(t, err)

	// uncontended, so zero retries is enough
	assert.True(t, q.TryEnqueue("a", 0))
	assert.True(t, q.TryEnqueue("b", 0))
	assert.False(t, q.TryEnqueue("c", 10))

	v, ok := q.TryDequeue(0)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = q.TryDequeue(-5)
	require.True(t, ok)
	assert.Equal(t, "b", v)
	_, ok = q.TryDequeue(3)
	assert.False(t, ok)
}

func TestQueue_DequeueClearsSlot(t *testing.T) {
	q, err := New[*int](2)
	require.NoError(t, err)
	x := 7
	require.True(t, q.Enqueue(&x))
	_, ok := q.Dequeue()
	require.True(t, ok)
	assert.Nil(t, q.slots[0].val)
}

// TestQueue_ConcurrentExactlyOnce checks that every enqueued element is
// dequeued exactly once with many producers and consumers racing.
func TestQueue_ConcurrentExactlyOnce(t *testing.T) {
	const (
		producers   = 4
		consumers   = 4
		perProducer = 20000
		total       = producers * perProducer
	)

	q, err := New[int](64)
	require.NoError(t, err)

	seen := make([]atomic.Int32, total)
	var consumed atomic.Int64
	var g errgroup.Group

	for p := range producers {
		g.Go(func() error {
			for i := range perProducer {
				v := p*perProducer + i
				for !q.Enqueue(v) {
					runtime.Gosched()
				}
			}
			return nil
		})
	}
	for range consumers {
		g.Go(func() error {
			for consumed.Load() < total {
				v, ok := q.Dequeue()
				if !ok {
					runtime.Gosched()
					continue
				}
				seen[v].Add(1)
				consumed.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := range seen {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("element %d delivered %d times", i, n)
		}
	}
	assert.True(t, q.EmptyApprox())
}

// TestQueue_FullApproxNeverEarly checks that a single producer filling the
// queue never sees FullApprox before Cap elements are present.
func TestQueue_FullApproxNeverEarly(t *testing.T) {
	q, err := New[int](16)
	require.NoError(t, err)
	for i := range q.Cap() {
		require.False(t, q.FullApprox(), "full after %d elements", i)
		require.True(t, q.Enqueue(i))
		require.Equal(t, i+1, q.SizeApprox())
	}
	assert.True(t, q.FullApprox())
}

func TestQueue_CursorPadding(t *testing.T) {
	var q Queue[int]
	enq := unsafe.Offsetof(q.enq)
	deq := unsafe.Offsetof(q.deq)
	assert.Equal(t, uintptr(sizeOfCacheLine), enq)
	assert.GreaterOrEqual(t, deq-enq, uintptr(sizeOfCacheLine))
	assert.Equal(t, uintptr(sizeOfAtomicUint64), unsafe.Sizeof(q.enq))
}

func BenchmarkQueue_EnqueueDequeue(b *testing.B) {
	q, err := New[int](1024)
	if err != nil {
		b.Fatal(err)
	}
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if q.Enqueue(1) {
				q.Dequeue()
			}
		}
	})
}
