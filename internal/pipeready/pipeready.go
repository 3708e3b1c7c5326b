// Package pipeready manages the lifecycle of the named pipe (FIFO) backing
// the "pipe" readiness strategy (spec.md §4.2, §4.7): the supervisor
// creates the pipe before PRE_START and unlinks it after the child has
// EXITED; internal/registry's PipeStrategy only ever reads from a path
// this package already created. Each spawn gets its own FIFO pathname
// suffixed with a uuid (github.com/google/uuid, also pulled in by
// jrepp-prism-data-layer and other_examples/warren) so a restarted
// process's pipe can never be confused with a stale token left behind by
// the instance it replaced (SPEC_FULL.md "DOMAIN STACK").
package pipeready

import (
	"fmt"
	"os"
	"syscall"

	"github.com/google/uuid"

	"github.com/engineerjames/process-pilot/internal/manifest"
)

// BasePath returns the ready_params.path configured for spec, and whether
// pipe lifecycle management applies to it at all (ready_strategy == "pipe"
// with a non-empty string path).
func BasePath(spec manifest.ProcessSpec) (string, bool) {
	if spec.ReadyStrategy != "pipe" {
		return "", false
	}
	raw, ok := spec.ReadyParams["path"]
	if !ok {
		return "", false
	}
	path, ok := raw.(string)
	if !ok || path == "" {
		return "", false
	}
	return path, true
}

// InstancePath derives this spawn's actual FIFO pathname from the
// manifest's configured base path. A fresh uuid suffix per call means a
// restart never reads the predecessor's leftover "ready" token off the
// same inode.
func InstancePath(basePath string) string {
	return basePath + "." + uuid.NewString()
}

// Create makes the FIFO at path. Called once per spawn, before PRE_START,
// per spec.md §4.2 ("The pipe lifetime is tied to the child; the
// supervisor creates it before PRE_START").
func Create(path string) error {
	if err := syscall.Mkfifo(path, 0o600); err != nil {
		return fmt.Errorf("pipeready: mkfifo %s: %w", path, err)
	}
	return nil
}

// Unlink removes the FIFO at path, called once the child has reached
// EXITED (spec.md §4.2 "unlinks it after EXITED"). A missing file is not
// an error: Create may never have run, or Unlink may already have.
func Unlink(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pipeready: unlink %s: %w", path, err)
	}
	return nil
}
