package memory

import "golang.org/x/sys/unix"

// physicalMemory returns the host's total RAM as reported by sysinfo(2),
// or 0 when it cannot be read.
func physicalMemory() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}

	return uint64(info.Totalram) * uint64(info.Unit)
}
