package child

import (
	"syscall"

	"github.com/engineerjames/process-pilot/internal/registry"
)

// View projects a Handle into the read-mostly registry.ChildView passed to
// plugin callables (spec.md §3 "Ownership": plugins must not retain it).
func (h *Handle) View() registry.ChildView {
	h.mu.Lock()
	defer h.mu.Unlock()
	params := h.Spec.ReadyParams
	if h.pipePath != "" {
		params = make(map[string]any, len(h.Spec.ReadyParams)+1)
		for k, v := range h.Spec.ReadyParams {
			params[k] = v
		}
		params["path"] = h.pipePath
	}
	return registry.ChildView{
		Name:        h.Spec.Name,
		Path:        h.Spec.Path,
		Args:        h.Spec.Args,
		Env:         h.Spec.Env,
		PID:         h.pid,
		State:       h.state.String(),
		ExitCode:    h.exitCode,
		Restarts:    h.restarts,
		ReadyParams: params,
	}
}

// osHandle adapts *Handle to registry.OSHandle for hook callables.
type osHandle struct{ h *Handle }

func (o osHandle) Signal(sig int) error { return o.h.Signal(syscall.Signal(sig)) }

// OSHandle returns the narrow signal-only surface plugin hooks receive.
func (h *Handle) OSHandle() registry.OSHandle { return osHandle{h: h} }
