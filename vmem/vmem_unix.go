//go:build linux || darwin

package vmem

import (
	"golang.org/x/sys/unix"
)

func pageSize() int {
	return unix.Getpagesize()
}

func reserve(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func protect(b []byte, prot Prot) error {
	return unix.Mprotect(b, unixProt(prot))
}

func release(b []byte) error {
	return unix.Munmap(b)
}

func unixProt(p Prot) int {
	if p == ProtNone {
		return unix.PROT_NONE
	}
	var flags int
	if p&ProtRead != 0 {
		flags |= unix.PROT_READ
	}
	if p&ProtWrite != 0 {
		flags |= unix.PROT_WRITE
	}
	if p&ProtExec != 0 {
		flags |= unix.PROT_EXEC
	}
	return flags
}
