package stats

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CgroupReader supplements GopsutilCollector with cgroup v2 counters when
// the caller's cgroup has delegation enabled. Adapted from the teacher's
// kornnellio-gosv/cgroup.go, which *wrote* memory.max/cpu.max to enforce
// limits; this reader only ever reads memory.current (cpu.stat is not
// read), since resource enforcement is out of scope (spec.md §1 Non-goals).
type CgroupReader struct {
	// basePath is the directory each process's own cgroup lives under,
	// e.g. "/sys/fs/cgroup/process-pilot". Empty means unavailable.
	basePath string
}

// NewCgroupReader probes for a writable/readable process-pilot cgroup,
// mirroring kornnellio-gosv's findWritableCgroupBase discovery strategy.
// It never creates or writes a limit; it only locates a directory to read
// counters from for children placed there by an external delegation setup.
func NewCgroupReader() *CgroupReader {
	self, err := selfCgroupPath()
	if err != nil {
		return &CgroupReader{}
	}
	candidate := filepath.Join("/sys/fs/cgroup", self, "process-pilot")
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return &CgroupReader{basePath: candidate}
	}
	return &CgroupReader{}
}

func selfCgroupPath() (string, error) {
	data, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	parts := strings.SplitN(line, "::", 2)
	if len(parts) != 2 {
		return "", os.ErrInvalid
	}
	return parts[1], nil
}

// Available reports whether a per-process cgroup subtree exists for name.
func (c *CgroupReader) Available(name string) bool {
	if c.basePath == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(c.basePath, name, "memory.current"))
	return err == nil
}

// MemoryCurrentMB reads memory.current (bytes) for the named child's
// cgroup and converts to megabytes.
func (c *CgroupReader) MemoryCurrentMB(name string) (float64, bool) {
	if c.basePath == "" {
		return 0, false
	}
	data, err := os.ReadFile(filepath.Join(c.basePath, name, "memory.current"))
	if err != nil {
		return 0, false
	}
	bytes, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(bytes) / (1024 * 1024), true
}
