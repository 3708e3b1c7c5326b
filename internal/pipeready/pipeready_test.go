package pipeready

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/engineerjames/process-pilot/internal/manifest"
)

func TestBasePath(t *testing.T) {
	cases := []struct {
		name    string
		spec    manifest.ProcessSpec
		wantOK  bool
		wantVal string
	}{
		{
			name:   "not pipe strategy",
			spec:   manifest.ProcessSpec{ReadyStrategy: "tcp", ReadyParams: map[string]any{"path": "/tmp/x"}},
			wantOK: false,
		},
		{
			name:   "missing path",
			spec:   manifest.ProcessSpec{ReadyStrategy: "pipe"},
			wantOK: false,
		},
		{
			name:   "non-string path",
			spec:   manifest.ProcessSpec{ReadyStrategy: "pipe", ReadyParams: map[string]any{"path": 5}},
			wantOK: false,
		},
		{
			name:    "valid",
			spec:    manifest.ProcessSpec{ReadyStrategy: "pipe", ReadyParams: map[string]any{"path": "/tmp/x.pipe"}},
			wantOK:  true,
			wantVal: "/tmp/x.pipe",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := BasePath(tc.spec)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got != tc.wantVal {
				t.Errorf("path = %q, want %q", got, tc.wantVal)
			}
		})
	}
}

func TestInstancePathIsUniquePerCall(t *testing.T) {
	base := "/tmp/process-pilot-test"
	a := InstancePath(base)
	b := InstancePath(base)
	if a == b {
		t.Fatalf("expected distinct instance paths, got %q twice", a)
	}
	if filepath.Dir(a) != filepath.Dir(base) {
		t.Errorf("instance path %q lost base directory of %q", a, base)
	}
}

func TestCreateAndUnlink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ready.pipe")

	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat after Create: %v", err)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		t.Errorf("expected a FIFO at %s, got mode %v", path, info.Mode())
	}

	if err := Unlink(path); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be gone after Unlink, stat err = %v", path, err)
	}

	// Unlinking a path that no longer exists is not an error.
	if err := Unlink(path); err != nil {
		t.Errorf("Unlink of already-removed path: %v", err)
	}
}
