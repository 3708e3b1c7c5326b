package registry

import (
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestFileStrategyReadyWhenFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ready")
	view := ChildView{Name: "x", ReadyParams: map[string]any{"path": path}}

	ready, err := FileStrategy(view, 0.1)
	if err != nil {
		t.Fatalf("FileStrategy: %v", err)
	}
	if ready {
		t.Fatal("expected not ready before file exists")
	}

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ready, err = FileStrategy(view, 0.1)
	if err != nil {
		t.Fatalf("FileStrategy: %v", err)
	}
	if !ready {
		t.Fatal("expected ready once file exists")
	}
}

func TestFileStrategyMissingParam(t *testing.T) {
	if _, err := FileStrategy(ChildView{Name: "x"}, 0.1); err == nil {
		t.Fatal("expected error for missing path param")
	}
}

func TestTCPStrategyConnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	view := ChildView{Name: "x", ReadyParams: map[string]any{"port": port}}
	ready, err := TCPStrategy(view, 0.1)
	if err != nil {
		t.Fatalf("TCPStrategy: %v", err)
	}
	if !ready {
		t.Fatal("expected ready once listener is up")
	}
}

func TestTCPStrategyNotListening(t *testing.T) {
	view := ChildView{Name: "x", ReadyParams: map[string]any{"port": 1}}
	ready, err := TCPStrategy(view, 0.1)
	if err != nil {
		t.Fatalf("TCPStrategy: %v", err)
	}
	if ready {
		t.Fatal("expected not ready when nothing is listening")
	}
}

func TestTCPStrategyMissingPort(t *testing.T) {
	if _, err := TCPStrategy(ChildView{Name: "x"}, 0.1); err == nil {
		t.Fatal("expected error for missing port param")
	}
}

func TestPipeStrategyTransientBeforeWriterOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ready.pipe")
	if err := syscall.Mkfifo(path, 0o600); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	view := ChildView{Name: "x", ReadyParams: map[string]any{"path": path}}

	ready, err := PipeStrategy(view, 0.1)
	if err != nil {
		t.Fatalf("PipeStrategy: %v", err)
	}
	if ready {
		t.Fatal("expected not ready with no writer yet")
	}
}

func TestPipeStrategyReadyOnToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ready.pipe")
	if err := syscall.Mkfifo(path, 0o600); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	view := ChildView{Name: "x", ReadyParams: map[string]any{"path": path}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return
		}
		defer w.Close()
		w.WriteString("ready\n")
	}()

	var ready bool
	for i := 0; i < 50 && !ready; i++ {
		var err error
		ready, err = PipeStrategy(view, 0.01)
		if err != nil {
			t.Fatalf("PipeStrategy: %v", err)
		}
	}
	<-done
	if !ready {
		t.Fatal("expected ready once writer sends the \"ready\" token")
	}
}

func TestPipeStrategyMissingParam(t *testing.T) {
	if _, err := PipeStrategy(ChildView{Name: "x"}, 0.1); err == nil {
		t.Fatal("expected error for missing path param")
	}
}
