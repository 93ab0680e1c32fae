//go:build !linux && !darwin && !windows

package vmem

import (
	"os"
)

// heap backed fallback, commit and protect only validate ranges

func pageSize() int {
	return os.Getpagesize()
}

func reserve(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func protect([]byte, Prot) error {
	return nil
}

func release([]byte) error {
	return nil
}
