// Package stats collects per-child resource metrics (spec.md §3
// ProcessStats, §4.3 ChildHandle.collect_stats). The primary source is
// gopsutil; a cgroup v2 reader supplements it when available, purely for
// observation — process-pilot never writes resource limits (spec.md §1
// Non-goals: "any form of resource enforcement").
package stats

import "time"

// Snapshot is a timestamped resource reading for one child
// (spec.md §3 ProcessStats).
type Snapshot struct {
	Name        string
	PID         int
	Timestamp   time.Time
	MemoryMB    float64
	CPUPercent  float64
	NumThreads  int
	NumChildren int
}

// Collector reads a fresh Snapshot for a running PID. CPU% is measured
// over the interval since the previous call for that PID; the first
// sample for a PID returns 0.0 (spec.md §4.3).
type Collector interface {
	Collect(pid int, name string) (Snapshot, error)
}

// Forgetter is implemented by collectors that cache per-PID history. A
// restarted ChildHandle gets a new OS PID; Handle.Spawn calls Forget on
// the old one so the replacement process's first sample is 0.0 again,
// rather than seeing the collector as already having a baseline for that
// PID number (spec.md §4.3's per-handle contract, not a per-PID one).
type Forgetter interface {
	Forget(pid int)
}
