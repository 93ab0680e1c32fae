package sched

// These constants are verified via unit tests.
const (
	// sizeOfCacheLine is the size of a CPU cache line, using the 128 bytes of
	// Apple Silicon as the largest common requirement.
	sizeOfCacheLine = 128

	// sizeOfAtomicUint64 is the size of an atomic.Uint64 variable.
	sizeOfAtomicUint64 = 8
)
