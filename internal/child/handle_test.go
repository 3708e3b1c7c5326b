package child

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/engineerjames/process-pilot/internal/clock"
	"github.com/engineerjames/process-pilot/internal/manifest"
	"github.com/engineerjames/process-pilot/internal/stats"
)

type stubCollector struct {
	forgotten []int
}

func (c *stubCollector) Collect(pid int, name string) (stats.Snapshot, error) {
	return stats.Snapshot{Name: name, PID: pid, MemoryMB: 1}, nil
}

func (c *stubCollector) Forget(pid int) { c.forgotten = append(c.forgotten, pid) }

func TestSpawnAndWaitExit(t *testing.T) {
	h := New(manifest.ProcessSpec{Name: "true", Path: "/bin/true"}, clock.Real{}, &stubCollector{})
	if err := h.Spawn(); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if h.State() != Starting {
		t.Fatalf("state after spawn = %v, want STARTING", h.State())
	}

	code, timedOut := h.Wait(time.After(2 * time.Second))
	if timedOut {
		t.Fatal("wait timed out")
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestPollAliveAndRequestStop(t *testing.T) {
	h := New(manifest.ProcessSpec{Name: "sleep", Path: "/bin/sleep", Args: []string{"5"}}, clock.Real{}, &stubCollector{})
	if err := h.Spawn(); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if !h.PollAlive() {
		t.Fatal("expected process to be alive immediately after spawn")
	}

	escalated, err := h.RequestStop(time.Second)
	if err != nil {
		t.Fatalf("RequestStop: %v", err)
	}
	if escalated {
		t.Error("did not expect escalation to SIGKILL for a process that honors SIGTERM")
	}
	if h.PollAlive() {
		t.Error("expected process to be gone after RequestStop")
	}
}

func TestRequestStopEscalatesOnIgnoredSigterm(t *testing.T) {
	h := New(manifest.ProcessSpec{
		Name: "trap", Path: "/bin/sh",
		Args: []string{"-c", "trap '' TERM; sleep 5"},
	}, clock.Real{}, &stubCollector{})
	if err := h.Spawn(); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the trap register

	escalated, err := h.RequestStop(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("RequestStop: %v", err)
	}
	if !escalated {
		t.Error("expected escalation to SIGKILL for a process that ignores SIGTERM")
	}
}

func TestCollectStatsNotRunning(t *testing.T) {
	h := New(manifest.ProcessSpec{Name: "x", Path: "/bin/true"}, clock.Real{}, &stubCollector{})
	if _, err := h.CollectStats(); err == nil {
		t.Fatal("expected error collecting stats for an unspawned handle")
	}
}

func TestSpawnForgetsPreviousPID(t *testing.T) {
	c := &stubCollector{}
	h := New(manifest.ProcessSpec{Name: "x", Path: "/bin/true"}, clock.Real{}, c)
	if err := h.Spawn(); err != nil {
		t.Fatalf("first Spawn: %v", err)
	}
	firstPID := h.PID()
	h.Wait(time.After(2 * time.Second))

	if err := h.Spawn(); err != nil {
		t.Fatalf("second Spawn: %v", err)
	}
	h.Wait(time.After(2 * time.Second))

	if len(c.forgotten) != 1 || c.forgotten[0] != firstPID {
		t.Errorf("forgotten = %v, want [%d]", c.forgotten, firstPID)
	}
}

func TestSignal(t *testing.T) {
	h := New(manifest.ProcessSpec{Name: "sleep", Path: "/bin/sleep", Args: []string{"5"}}, clock.Real{}, &stubCollector{})
	if err := h.Spawn(); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := h.Signal(syscall.SIGKILL); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	code, timedOut := h.Wait(time.After(2 * time.Second))
	if timedOut {
		t.Fatal("wait timed out after SIGKILL")
	}
	if code == 0 {
		t.Error("expected non-zero exit code after SIGKILL")
	}
}

func TestPreparePipeNoopWithoutPipeStrategy(t *testing.T) {
	h := New(manifest.ProcessSpec{Name: "x", Path: "/bin/true"}, clock.Real{}, &stubCollector{})
	if err := h.PreparePipe(); err != nil {
		t.Fatalf("PreparePipe: %v", err)
	}
	if h.pipePath != "" {
		t.Errorf("pipePath = %q, want empty for a spec with no pipe readiness strategy", h.pipePath)
	}
}

func TestPreparePipeCreatesFIFOAndCleanupRemovesIt(t *testing.T) {
	base := filepath.Join(t.TempDir(), "ready")
	spec := manifest.ProcessSpec{
		Name:          "x",
		Path:          "/bin/true",
		ReadyStrategy: "pipe",
		ReadyParams:   map[string]any{"path": base},
	}
	h := New(spec, clock.Real{}, &stubCollector{})

	if err := h.PreparePipe(); err != nil {
		t.Fatalf("PreparePipe: %v", err)
	}
	if h.pipePath == "" || !strings.HasPrefix(h.pipePath, base+".") {
		t.Fatalf("pipePath = %q, want a sibling of %q", h.pipePath, base)
	}
	info, err := os.Stat(h.pipePath)
	if err != nil {
		t.Fatalf("stat FIFO: %v", err)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		t.Errorf("expected a FIFO, got mode %v", info.Mode())
	}

	created := h.pipePath
	h.CleanupPipe()
	if h.pipePath != "" {
		t.Errorf("pipePath = %q after CleanupPipe, want empty", h.pipePath)
	}
	if _, err := os.Stat(created); !os.IsNotExist(err) {
		t.Errorf("expected %s removed after CleanupPipe, stat err = %v", created, err)
	}
}

func TestSpawnInjectsPipeEnvVar(t *testing.T) {
	base := filepath.Join(t.TempDir(), "ready")
	spec := manifest.ProcessSpec{
		Name:          "envprinter",
		Path:          "/bin/sh",
		Args:          []string{"-c", "case \"$PROCESS_PILOT_READY_PIPE\" in \"" + base + "\".*) exit 0 ;; esac; exit 1"},
		ReadyStrategy: "pipe",
		ReadyParams:   map[string]any{"path": base},
	}
	h := New(spec, clock.Real{}, &stubCollector{})
	if err := h.PreparePipe(); err != nil {
		t.Fatalf("PreparePipe: %v", err)
	}
	defer h.CleanupPipe()

	if err := h.Spawn(); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	code, timedOut := h.Wait(time.After(2 * time.Second))
	if timedOut {
		t.Fatal("wait timed out")
	}
	if code != 0 {
		t.Errorf("child did not see PROCESS_PILOT_READY_PIPE set to an instance path under %q (exit code %d)", base, code)
	}
}
