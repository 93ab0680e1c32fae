//go:build !linux

package cpuinfo

func affinityCount() (int, error) {
	return 0, ErrUnsupported
}

func pin(int) error {
	return ErrUnsupported
}

func setName(string) error {
	return ErrUnsupported
}

func threadID() int {
	return 0
}
