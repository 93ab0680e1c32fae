package stackarena

import (
	"sync"
)

// Stats is a snapshot of a Pool.
type Stats struct {
	BlockSize int
	// Live is the number of blocks handed out and not yet returned.
	Live int
	// Free is the number of blocks waiting on the free list.
	Free int
	// HighWater is the maximum Live ever observed.
	HighWater int
	// Allocated is the number of blocks ever bump-allocated.
	Allocated int
	Committed int
	Reserved  int
}

// Pool is an Arena plus FreeList behind one mutex. The lock is taken only
// on Get and Put, that is on job creation and destruction.
type Pool struct {
	mu        sync.Mutex
	arena     *Arena
	free      FreeList
	live      map[uintptr]struct{}
	highWater int
	closed    bool
}

// NewPool creates a Pool over a new Arena.
func NewPool(opts ...Option) (*Pool, error) {
	arena, err := NewArena(opts...)
	if err != nil {
		return nil, err
	}
	return &Pool{
		arena: arena,
		live:  make(map[uintptr]struct{}),
	}, nil
}

// BlockSize returns the usable size of every block.
func (p *Pool) BlockSize() int {
	return p.arena.BlockSize()
}

// Get pops a recycled block, or bump-allocates a new one. Recycled blocks
// are not cleared.
func (p *Pool) Get() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	var b []byte
	if addr, ok := p.free.Pop(); ok {
		b, _ = p.arena.block(addr)
	} else {
		var err error
		if b, err = p.arena.Alloc(); err != nil {
			return nil, err
		}
	}

	p.live[Addr(b)] = struct{}{}
	p.highWater = max(p.highWater, len(p.live))
	return b, nil
}

// Put returns b to the free list. Its pages stay committed. Putting a block
// that is not live, either twice or from elsewhere, panics.
func (p *Pool) Put(b []byte) {
	addr := Addr(b)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.live[addr]; !ok {
		panic("stackarena: put of a block that is not live")
	}
	delete(p.live, addr)
	p.free.Push(addr)
}

// Stats returns a snapshot.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		BlockSize: p.arena.BlockSize(),
		Live:      len(p.live),
		Free:      p.free.Len(),
		HighWater: p.highWater,
		Allocated: p.arena.Allocated(),
		Committed: p.arena.Committed(),
		Reserved:  p.arena.Reserved(),
	}
}

// Close releases the arena. It fails with ErrBlocksOutstanding, leaving the
// pool usable, while any block is live.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if len(p.live) != 0 {
		return ErrBlocksOutstanding
	}
	p.closed = true
	p.free.Reset()
	return p.arena.Release()
}
