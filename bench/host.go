package bench

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Host describes the machine a run measured.
type Host struct {
	CPU           string `json:"cpu"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCores  int    `json:"logical_cores"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	GoVersion     string `json:"go_version"`
}

// DetectHost reads the host description from CPUID and the runtime.
func DetectHost() Host {
	logical := cpuid.CPU.LogicalCores
	if logical <= 0 {
		logical = runtime.NumCPU()
	}

	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = "unknown"
	}

	return Host{
		CPU:           brand,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  logical,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		GoVersion:     runtime.Version(),
	}
}
