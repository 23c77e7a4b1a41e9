//go:build !linux

package memory

// physicalMemory is unknown off Linux; allocation is left to the runtime.
func physicalMemory() uint64 {
	return 0
}
