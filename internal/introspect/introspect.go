// Package introspect reads /proc/<pid> on demand to answer "what is this
// supervised process actually doing right now" — an operator diagnostic,
// not something the scheduler or monitor loop consults. It is wired to
// SIGUSR1 on the supervisor façade: adapted from the teacher's procfs
// parsing (kornnellio-gosv/proc.go), trimmed to the fields worth printing
// on an ad hoc dump rather than tracked continuously.
package introspect

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Info is a snapshot of one process's procfs-visible state.
type Info struct {
	PID     int
	Name    string
	State   string
	PPID    int
	Threads int
	VmRSSKB int64
	FDs     []FD
}

// FD is one open file descriptor, resolved to its target where readable.
type FD struct {
	Num    int
	Target string
}

// Read reads /proc/<pid>/status and /proc/<pid>/fd for pid. Returns an
// error if the process no longer exists.
func Read(pid int) (Info, error) {
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); err != nil {
		return Info{}, fmt.Errorf("introspect: process %d: %w", pid, err)
	}

	info := Info{PID: pid}
	if err := info.readStatus(procPath); err != nil {
		return Info{}, err
	}
	info.FDs = readFDs(procPath)
	return info, nil
}

func (info *Info) readStatus(procPath string) error {
	data, err := os.ReadFile(filepath.Join(procPath, "status"))
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "Name":
			info.Name = val
		case "State":
			info.State = val
		case "PPid":
			info.PPID, _ = strconv.Atoi(val)
		case "Threads":
			info.Threads, _ = strconv.Atoi(val)
		case "VmRSS":
			if fields := strings.Fields(val); len(fields) > 0 {
				info.VmRSSKB, _ = strconv.ParseInt(fields[0], 10, 64)
			}
		}
	}
	return nil
}

func readFDs(procPath string) []FD {
	entries, err := os.ReadDir(filepath.Join(procPath, "fd"))
	if err != nil {
		return nil
	}
	fds := make([]FD, 0, len(entries))
	for _, e := range entries {
		num, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		target, err := os.Readlink(filepath.Join(procPath, "fd", e.Name()))
		if err != nil {
			continue
		}
		fds = append(fds, FD{Num: num, Target: target})
	}
	return fds
}

// String formats Info for an operator dump (spec.md carries no wire
// contract for this; it's printed, not parsed).
func (info Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d name=%s state=%s ppid=%d threads=%d rss_kb=%d\n",
		info.PID, info.Name, info.State, info.PPID, info.Threads, info.VmRSSKB)
	for _, fd := range info.FDs {
		fmt.Fprintf(&b, "  fd %d -> %s\n", fd.Num, fd.Target)
	}
	return b.String()
}
