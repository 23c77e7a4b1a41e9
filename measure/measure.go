// Package measure holds the timing and rate helpers shared by the probes,
// and the error type every probe failure is reported as.
package measure

import (
	"fmt"
	"time"
)

// Rate returns units per second for n units processed in d.
// A zero count or a non-positive duration yields 0 rather than
// dividing by zero.
func Rate(n int64, d time.Duration) float64 {
	if n <= 0 || d <= 0 {
		return 0
	}

	return float64(n) / d.Seconds()
}

// PerOp returns the average time per operation. Zero operations
// yield zero.
func PerOp(d time.Duration, ops int64) time.Duration {
	if ops <= 0 {
		return 0
	}

	return d / time.Duration(ops)
}

// Time runs fn and returns its wall-clock duration.
func Time(fn func()) time.Duration {
	start := time.Now()
	fn()

	return time.Since(start)
}

// PhaseError reports which probe and which phase of it failed.
type PhaseError struct {
	Probe string
	Phase string
	Err   error
}

// Errorf builds a PhaseError whose cause is formatted like fmt.Errorf,
// so %w keeps the cause chain intact.
func Errorf(probe, phase, format string, args ...any) *PhaseError {
	return &PhaseError{
		Probe: probe,
		Phase: phase,
		Err:   fmt.Errorf(format, args...),
	}
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s probe: %s: %v", e.Probe, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
