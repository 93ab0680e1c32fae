//go:build linux

package cpuinfo

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

func affinityCount() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, err
	}
	return set.Count(), nil
}

func pin(index int) error {
	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return fmt.Errorf("cpuinfo: get affinity: %w", err)
	}
	n := allowed.Count()
	if n == 0 {
		return fmt.Errorf("cpuinfo: empty affinity mask")
	}
	want := index % n
	if want < 0 {
		want += n
	}
	for cpu, seen := 0, 0; cpu < len(allowed)*64; cpu++ {
		if !allowed.IsSet(cpu) {
			continue
		}
		if seen == want {
			var set unix.CPUSet
			set.Set(cpu)
			if err := unix.SchedSetaffinity(0, &set); err != nil {
				return fmt.Errorf("cpuinfo: set affinity to cpu %d: %w", cpu, err)
			}
			return nil
		}
		seen++
	}
	return fmt.Errorf("cpuinfo: cpu index %d not found", want)
}

func setName(name string) error {
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(p)), 0, 0, 0)
}

func threadID() int {
	return unix.Gettid()
}
