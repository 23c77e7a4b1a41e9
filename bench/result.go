// Package bench runs the probes one after another and collects their
// records into a single Results value.
package bench

import (
	"time"

	"github.com/weiihann/hostbench/config"
	"github.com/weiihann/hostbench/cpu"
	"github.com/weiihann/hostbench/disk"
	"github.com/weiihann/hostbench/memory"
)

// Results holds everything a run measured. A nil probe record means the
// probe was not selected or the run stopped before reaching it.
type Results struct {
	RunID   string         `json:"run_id"`
	Started time.Time      `json:"started"`
	Host    Host           `json:"host"`
	Config  config.Config  `json:"config"`
	Disk    *disk.Result   `json:"disk,omitempty"`
	Memory  *memory.Result `json:"memory,omitempty"`
	CPU     *cpu.Result    `json:"cpu,omitempty"`
}
