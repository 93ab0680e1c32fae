package stackarena

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-fibersched/vmem"
)

func TestArena_BumpAndCommitChunks(t *testing.T) {
	ps := vmem.PageSize()
	a, err := NewArena(
		WithBlockSize(ps),
		WithCommitChunk(4*ps),
		WithMaxSize(16*ps),
	)
	require.NoError(t, err)
	defer a.Release()

	assert.Equal(t, 0, a.Committed())
	assert.Equal(t, 16*ps, a.Reserved())

	b1, err := a.Alloc()
	require.NoError(t, err)
	assert.Len(t, b1, ps)
	assert.Equal(t, 4*ps, a.Committed(), "first alloc commits one chunk")

	for range 3 {
		_, err := a.Alloc()
		require.NoError(t, err)
	}
	assert.Equal(t, 4*ps, a.Committed(), "chunk covers four blocks")

	_, err = a.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 8*ps, a.Committed())
	assert.Equal(t, 5, a.Allocated())

	// committed blocks are writable
	b1[0], b1[len(b1)-1] = 1, 2
	assert.Equal(t, byte(2), b1[len(b1)-1])
}

func TestArena_Exhausted(t *testing.T) {
	ps := vmem.PageSize()
	a, err := NewArena(WithBlockSize(ps), WithMaxSize(2*ps))
	require.NoError(t, err)
	defer a.Release()

	_, err = a.Alloc()
	require.NoError(t, err)
	_, err = a.Alloc()
	require.NoError(t, err)
	_, err = a.Alloc()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestArena_GuardPages(t *testing.T) {
	ps := vmem.PageSize()
	a, err := NewArena(
		WithBlockSize(ps),
		WithMaxSize(8*ps),
		WithGuardPages(true),
	)
	require.NoError(t, err)
	defer a.Release()

	b1, err := a.Alloc()
	require.NoError(t, err)
	b2, err := a.Alloc()
	require.NoError(t, err)

	assert.Len(t, b1, ps, "guard does not shrink the block")
	assert.Equal(t, uintptr(2*ps), Addr(b2)-Addr(b1))
	assert.Equal(t, uintptr(ps), Addr(b1)-a.base, "first page is the guard")

	b1[len(b1)-1] = 1
	b2[0] = 1
}

func TestArena_BlockAlignmentAndTop(t *testing.T) {
	a, err := NewArena(WithBlockSize(1000), WithMaxSize(1<<20))
	require.NoError(t, err)
	defer a.Release()

	assert.Equal(t, 1008, a.BlockSize())
	for range 4 {
		b, err := a.Alloc()
		require.NoError(t, err)
		assert.Zero(t, Addr(b)%StackAlign)
		top := Top(b)
		assert.Zero(t, top%StackAlign)
		assert.LessOrEqual(t, top, Addr(b)+uintptr(len(b)))
		assert.True(t, a.Contains(Addr(b)))
		assert.False(t, a.Contains(Addr(b)+1))
	}
}

func TestArena_MaxSizeClampedToPhysicalMemory(t *testing.T) {
	ps := vmem.PageSize()
	cfg, err := resolveOptions([]Option{WithBlockSize(ps), WithMaxSize(1 << 30)})
	require.NoError(t, err)
	cfg.physicalMemory = func() uint64 { return uint64(32 * ps) }

	a, err := newArena(cfg)
	require.NoError(t, err)
	defer a.Release()
	assert.Equal(t, 8*ps, a.Reserved())
}

func TestArena_InvalidConfig(t *testing.T) {
	_, err := NewArena(WithBlockSize(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewArena(WithMaxSize(-1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewArena(WithCommitChunk(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewArena(WithBlockSize(1<<20), WithMaxSize(4096))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestArena_ReleaseTwice(t *testing.T) {
	a, err := NewArena(WithMaxSize(1 << 20))
	require.NoError(t, err)
	require.NoError(t, a.Release())
	assert.ErrorIs(t, a.Release(), ErrClosed)
	_, err = a.Alloc()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFreeList_LIFO(t *testing.T) {
	var f FreeList
	_, ok := f.Pop()
	assert.False(t, ok)

	f.Push(1)
	f.Push(2)
	f.Push(3)
	assert.Equal(t, 3, f.Len())

	var got []uintptr
	for {
		addr, ok := f.Pop()
		if !ok {
			break
		}
		got = append(got, addr)
	}
	if diff := cmp.Diff([]uintptr{3, 2, 1}, got); diff != "" {
		t.Errorf("pop order (-want +got):\n%s", diff)
	}
}
