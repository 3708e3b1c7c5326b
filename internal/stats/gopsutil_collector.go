package stats

import (
	"sync"
	"time"

	gopsprocess "github.com/shirou/gopsutil/process"
)

// GopsutilCollector reads memory/CPU/thread/child-count stats via
// gopsutil/process, replacing the teacher's hand-rolled /proc/<pid>/status
// parser (kornnellio-gosv/proc.go) with the library the rest of the
// retrieved corpus pulls in for exactly this (indirect dep of
// Xuanwo-nomad-driver-systemd-nspawn's go.mod).
//
// spec.md §4.3 wants CPU% measured over the interval since the previous
// collection for a given handle, not gopsutil's since-process-start
// average. We get that by retaining one *process.Process per PID across
// calls and calling Percent(0), which deltas against the CPU-times sample
// that process.Process itself cached on the previous call. A freshly-seen
// PID has no prior sample yet, so its first Collect primes that baseline
// and reports 0.0, matching the teacher's "first sample returns 0.0"
// contract; every call after that is a genuine since-last-tick delta.
type GopsutilCollector struct {
	mu     sync.Mutex
	procs  map[int]*gopsprocess.Process
	cgroup *CgroupReader
}

// NewGopsutilCollector returns a ready-to-use Collector. It probes once for
// a delegated process-pilot cgroup subtree (CgroupReader); when present,
// memory readings prefer the cgroup's memory.current over gopsutil's RSS,
// since memory.current reflects the whole control group's pages rather
// than just the one sampled PID (SPEC_FULL.md "cgroup resource display").
func NewGopsutilCollector() *GopsutilCollector {
	return &GopsutilCollector{procs: make(map[int]*gopsprocess.Process), cgroup: NewCgroupReader()}
}

func (c *GopsutilCollector) Collect(pid int, name string) (Snapshot, error) {
	c.mu.Lock()
	proc, known := c.procs[pid]
	first := !known
	if first {
		p, err := gopsprocess.NewProcess(int32(pid))
		if err != nil {
			c.mu.Unlock()
			return Snapshot{}, err
		}
		proc = p
		c.procs[pid] = proc
	}
	c.mu.Unlock()

	snap := Snapshot{Name: name, PID: pid, Timestamp: time.Now()}

	if mb, ok := c.cgroup.MemoryCurrentMB(name); ok {
		snap.MemoryMB = mb
	} else if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		snap.MemoryMB = float64(memInfo.RSS) / (1024 * 1024)
	}

	if first {
		proc.Percent(0) // prime the CPU-times baseline; first sample reports 0.0
	} else if pct, err := proc.Percent(0); err == nil {
		snap.CPUPercent = pct
	}

	if threads, err := proc.NumThreads(); err == nil {
		snap.NumThreads = int(threads)
	}

	if children, err := proc.Children(); err == nil {
		snap.NumChildren = len(children)
	}

	return snap, nil
}

// Forget drops the cached *process.Process for a PID, used when a handle is
// restarted with a fresh OS process (spec.md §4.5 restart) so the new PID
// gets its own "first sample is 0.0" grace period rather than deltaing
// against the old PID's last CPU-times sample.
func (c *GopsutilCollector) Forget(pid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.procs, pid)
}
