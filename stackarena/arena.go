// Package stackarena carves fixed-size stack blocks out of a single virtual
// memory reservation, committing pages lazily, and recycles them through a
// free list.
//
// Blocks are raw memory outside the Go heap. They must never hold Go
// pointers.
package stackarena

import (
	"fmt"
	"unsafe"

	"github.com/joeycumines/go-fibersched/vmem"
	"github.com/pbnjay/memory"
)

// Arena is a bump allocator over a vmem.Region. It is not safe for
// concurrent use; Pool adds the lock.
type Arena struct {
	region      *vmem.Region
	base        uintptr
	blockSize   int
	stride      int // block plus guard page, if any
	guard       int // bytes of guard below each block
	commitChunk int
	offset      int // bump offset, start of the next stride
	committed   int
	allocated   int
}

func totalMemory() uint64 {
	return memory.TotalMemory()
}

// NewArena reserves address space for blocks. Nothing is committed until
// the first Alloc.
func NewArena(opts ...Option) (*Arena, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return newArena(cfg)
}

func newArena(cfg *arenaOptions) (*Arena, error) {
	pageSize := vmem.PageSize()

	a := &Arena{
		blockSize:   vmem.AlignUp(cfg.blockSize, StackAlign),
		commitChunk: vmem.AlignUp(cfg.commitChunk, pageSize),
	}
	if cfg.guardPages {
		a.guard = pageSize
		a.stride = vmem.AlignUp(a.blockSize, pageSize) + pageSize
	} else {
		a.stride = a.blockSize
	}

	maxSize := cfg.maxSize
	if cfg.physicalMemory != nil {
		if limit := cfg.physicalMemory() / 4; limit > 0 && limit < uint64(maxSize) {
			maxSize = int(limit)
		}
	}
	maxSize = vmem.AlignUp(maxSize, pageSize)
	if maxSize < a.stride {
		return nil, fmt.Errorf("%w: max size %d smaller than one block of %d", ErrInvalidConfig, maxSize, a.stride)
	}

	region, err := vmem.Reserve(maxSize)
	if err != nil {
		return nil, fmt.Errorf("stackarena: %w", err)
	}
	a.region = region
	a.base = uintptr(unsafe.Pointer(unsafe.SliceData(region.Bytes())))
	return a, nil
}

// BlockSize returns the usable size of every block.
func (a *Arena) BlockSize() int {
	return a.blockSize
}

// Reserved returns the size of the address space reservation.
func (a *Arena) Reserved() int {
	if a.region == nil {
		return 0
	}
	return a.region.Size()
}

// Committed returns the number of committed bytes, guard pages included.
func (a *Arena) Committed() int {
	return a.committed
}

// Allocated returns the number of blocks ever bump-allocated.
func (a *Arena) Allocated() int {
	return a.allocated
}

// Alloc bump-allocates a new block, committing pages as needed.
func (a *Arena) Alloc() ([]byte, error) {
	if a.region == nil {
		return nil, ErrClosed
	}
	end := a.offset + a.stride
	if end > a.region.Size() {
		return nil, ErrExhausted
	}
	if end > a.committed {
		next := min(vmem.AlignUp(end, a.commitChunk), a.region.Size())
		if err := a.region.Commit(a.committed, next-a.committed); err != nil {
			return nil, fmt.Errorf("stackarena: commit: %w", err)
		}
		a.committed = next
	}
	if a.guard > 0 {
		if err := a.region.Protect(a.offset, a.guard, vmem.ProtNone); err != nil {
			return nil, fmt.Errorf("stackarena: guard page: %w", err)
		}
	}
	start := a.offset + a.guard
	a.offset = end
	a.allocated++
	return a.region.Bytes()[start : start+a.blockSize : start+a.blockSize], nil
}

// Addr returns the address of block b.
func Addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// Top returns the end of b aligned down to StackAlign, the initial stack
// pointer of a downward growing stack.
func Top(b []byte) uintptr {
	return (Addr(b) + uintptr(len(b))) &^ (StackAlign - 1)
}

// block converts an address previously returned by Alloc back to its slice.
func (a *Arena) block(addr uintptr) ([]byte, bool) {
	if a.region == nil || addr < a.base {
		return nil, false
	}
	off := int(addr - a.base)
	if off-a.guard < 0 || (off-a.guard)%a.stride != 0 || off+a.blockSize > a.offset {
		return nil, false
	}
	return a.region.Bytes()[off : off+a.blockSize : off+a.blockSize], true
}

// Contains reports whether addr is the start of a block from this arena.
func (a *Arena) Contains(addr uintptr) bool {
	_, ok := a.block(addr)
	return ok
}

// Release returns the whole reservation in one call. Every block becomes
// invalid.
func (a *Arena) Release() error {
	if a.region == nil {
		return ErrClosed
	}
	region := a.region
	a.region = nil
	a.base = 0
	a.offset = 0
	a.committed = 0
	if err := region.Release(); err != nil {
		return fmt.Errorf("stackarena: %w", err)
	}
	return nil
}
