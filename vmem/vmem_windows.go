//go:build windows

package vmem

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func pageSize() int {
	return os.Getpagesize()
}

func reserve(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func protect(b []byte, prot Prot) error {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if prot == ProtNone {
		var old uint32
		return windows.VirtualProtect(addr, uintptr(len(b)), windows.PAGE_NOACCESS, &old)
	}
	// committing an already committed page is a no-op, and it is required
	// before the first protection change
	if _, err := windows.VirtualAlloc(addr, uintptr(len(b)), windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return err
	}
	var old uint32
	return windows.VirtualProtect(addr, uintptr(len(b)), windowsProt(prot), &old)
}

func release(b []byte) error {
	return windows.VirtualFree(uintptr(unsafe.Pointer(unsafe.SliceData(b))), 0, windows.MEM_RELEASE)
}

func windowsProt(p Prot) uint32 {
	switch {
	case p&ProtWrite != 0 && p&ProtExec != 0:
		return windows.PAGE_EXECUTE_READWRITE
	case p&ProtWrite != 0:
		return windows.PAGE_READWRITE
	case p&ProtExec != 0:
		return windows.PAGE_EXECUTE_READ
	default:
		return windows.PAGE_READONLY
	}
}
