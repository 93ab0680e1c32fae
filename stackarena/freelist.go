package stackarena

// FreeList is a LIFO stack of block addresses. The arena owns the memory;
// entries are plain values.
type FreeList struct {
	addrs []uintptr
}

// Push adds addr.
func (f *FreeList) Push(addr uintptr) {
	f.addrs = append(f.addrs, addr)
}

// Pop removes the most recently pushed address.
func (f *FreeList) Pop() (uintptr, bool) {
	n := len(f.addrs)
	if n == 0 {
		return 0, false
	}
	addr := f.addrs[n-1]
	f.addrs = f.addrs[:n-1]
	return addr, true
}

// Len returns the number of entries.
func (f *FreeList) Len() int {
	return len(f.addrs)
}

// Reset drops every entry, keeping the backing array.
func (f *FreeList) Reset() {
	f.addrs = f.addrs[:0]
}
