package mpmc

// These constants are verified via unit tests.
const (
	// sizeOfCacheLine is the size of a CPU cache line. 128 covers both
	// x86-64 (64, with adjacent line prefetch) and Apple Silicon.
	sizeOfCacheLine = 128

	// sizeOfAtomicUint64 is the size of an atomic.Uint64 variable.
	sizeOfAtomicUint64 = 8

	// cursorPadSize pads each cursor out to a full cache line.
	cursorPadSize = sizeOfCacheLine - sizeOfAtomicUint64
)
