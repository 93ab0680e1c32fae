// Package cpuinfo queries CPU topology and applies best-effort placement
// and naming to the calling OS thread. The thread functions assume the
// caller has called runtime.LockOSThread.
package cpuinfo

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned by thread operations the platform lacks.
var ErrUnsupported = errors.New("cpuinfo: unsupported on this platform")

// maxThreadName is the kernel limit on thread names, excluding the NUL.
const maxThreadName = 15

// LogicalCores returns the number of CPUs the process may run on. It falls
// back to runtime.NumCPU when the affinity mask cannot be read, and returns
// false only if neither source produced a positive count.
func LogicalCores() (int, bool) {
	if n, err := affinityCount(); err == nil && n > 0 {
		return n, true
	}
	if n := runtime.NumCPU(); n > 0 {
		return n, true
	}
	return 0, false
}

// PinCurrentThread restricts the calling thread to the index-th CPU of the
// process affinity mask, modulo its size.
func PinCurrentThread(index int) error {
	return pin(index)
}

// NameCurrentThread sets the calling thread's name, truncated to the kernel
// limit.
func NameCurrentThread(name string) error {
	if len(name) > maxThreadName {
		name = name[:maxThreadName]
	}
	return setName(name)
}

// ThreadID returns the kernel id of the calling thread, or 0.
func ThreadID() int {
	return threadID()
}
