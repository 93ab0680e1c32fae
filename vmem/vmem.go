// Package vmem reserves address space and commits or protects it page by
// page. It is the virtual memory leaf consumed by the stack arena.
package vmem

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidSize is returned by Reserve for a non-positive size.
	ErrInvalidSize = errors.New("vmem: invalid size")

	// ErrOutOfRange is returned when a range falls outside the region.
	ErrOutOfRange = errors.New("vmem: range out of bounds")

	// ErrUnaligned is returned when a range offset is not page aligned.
	ErrUnaligned = errors.New("vmem: offset not page aligned")

	// ErrReleased is returned by operations on a released region.
	ErrReleased = errors.New("vmem: region released")
)

// Prot is a page protection bit set.
type Prot uint8

const (
	ProtNone  Prot = 0
	ProtRead  Prot = 1 << 0
	ProtWrite Prot = 1 << 1
	ProtExec  Prot = 1 << 2

	// ProtReadWrite is the protection applied by Region.Commit.
	ProtReadWrite = ProtRead | ProtWrite
)

// String returns a short rwx representation.
func (p Prot) String() string {
	b := []byte("---")
	if p&ProtRead != 0 {
		b[0] = 'r'
	}
	if p&ProtWrite != 0 {
		b[1] = 'w'
	}
	if p&ProtExec != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// Region is a single reservation of address space. The zero value is not
// usable, see Reserve.
//
// Region is safe for concurrent use, though callers normally serialize
// commits themselves (the arena holds its own lock).
type Region struct {
	mu       sync.Mutex
	mem      []byte
	released bool
}

// PageSize returns the system page size.
func PageSize() int {
	return pageSize()
}

// AlignUp rounds n up to a multiple of align, which must be a power of two.
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// Reserve reserves size bytes (rounded up to the page size) of
// inaccessible address space. Nothing is committed until Commit.
func Reserve(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	size = AlignUp(size, PageSize())
	mem, err := reserve(size)
	if err != nil {
		return nil, fmt.Errorf("vmem: reserve %d bytes: %w", size, err)
	}
	return &Region{mem: mem}, nil
}

// Size returns the number of reserved bytes.
func (r *Region) Size() int {
	return len(r.mem)
}

// Bytes returns the full reservation. Only committed ranges may be touched.
func (r *Region) Bytes() []byte {
	return r.mem
}

// Commit makes [off, off+n) readable and writable. n is rounded up to the
// page size.
func (r *Region) Commit(off, n int) error {
	return r.Protect(off, n, ProtReadWrite)
}

// Protect changes the protection of [off, off+n). n is rounded up to the
// page size.
func (r *Region) Protect(off, n int, prot Prot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.span(off, n)
	if err != nil {
		return err
	}
	if err := protect(b, prot); err != nil {
		return fmt.Errorf("vmem: protect [%d, %d) %s: %w", off, off+len(b), prot, err)
	}
	return nil
}

// Release returns the whole reservation to the operating system, in one
// call. The region must not be used afterward.
func (r *Region) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.released = true
	mem := r.mem
	r.mem = nil
	if err := release(mem); err != nil {
		return fmt.Errorf("vmem: release: %w", err)
	}
	return nil
}

func (r *Region) span(off, n int) ([]byte, error) {
	if r.released {
		return nil, ErrReleased
	}
	if off%PageSize() != 0 {
		return nil, ErrUnaligned
	}
	n = AlignUp(n, PageSize())
	if off < 0 || n <= 0 || off+n > len(r.mem) {
		return nil, ErrOutOfRange
	}
	return r.mem[off : off+n : off+n], nil
}
