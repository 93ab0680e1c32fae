package cpuinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicalCores(t *testing.T) {
	n, ok := LogicalCores()
	assert.True(t, ok)
	assert.Positive(t, n)
	assert.LessOrEqual(t, n, runtime.NumCPU())
}

// TestThreadOperations only checks that placement failures are reported,
// not fatal; sandboxes commonly deny them.
func TestThreadOperations(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		// exits with the goroutine, so the pinned thread is discarded
		if err := PinCurrentThread(1); err != nil {
			t.Logf("pin: %v", err)
		}
		if err := NameCurrentThread("cpuinfo-test-thread-long-name"); err != nil {
			t.Logf("name: %v", err)
		}
		if runtime.GOOS == "linux" {
			assert.Positive(t, ThreadID())
		}
	}()
	<-done
}
