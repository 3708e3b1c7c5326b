package supervisor

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/engineerjames/process-pilot/internal/child"
	"github.com/engineerjames/process-pilot/internal/errs"
	"github.com/engineerjames/process-pilot/internal/registry"
)

// hookRunner resolves a spec's declared hook groups against the registry
// and invokes them at the right lifecycle transition (spec.md §5 ordering:
// all PRE_START complete before spawn; POST_START after spawn; ON_SHUTDOWN
// after EXITED and before any restart; ON_RESTART after ON_SHUTDOWN and
// before the new spawn). It implements both scheduler.Hooks and
// monitor.Hooks.
type hookRunner struct {
	reg    *registry.Registry
	logger hclog.Logger
}

func newHookRunner(reg *registry.Registry, logger hclog.Logger) *hookRunner {
	return &hookRunner{reg: reg, logger: logger.Named("hooks")}
}

func (r *hookRunner) RunPreStart(h *child.Handle) error {
	for _, group := range h.Spec.Hooks {
		fns, err := r.reg.ResolveHooks(group, registry.PreStart)
		if err != nil {
			return err
		}
		view, os := h.View(), h.OSHandle()
		for _, fn := range fns {
			if err := callHook(fn, view, os); err != nil {
				return &errs.PluginError{Phase: errs.PhasePreStart, Name: group, Cause: err}
			}
		}
	}
	return nil
}

// callHook invokes fn, converting a panic into an error so a misbehaving
// plugin can never take the supervisor down with it (spec.md §7: "the loop
// never dies silently").
func callHook(fn registry.HookFunc, view registry.ChildView, os registry.OSHandle) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(view, os)
}

func (r *hookRunner) RunPostStart(h *child.Handle) {
	r.runSwallowed(h, registry.PostStart, errs.PhasePostStart)
}

func (r *hookRunner) RunOnShutdown(h *child.Handle) {
	r.runSwallowed(h, registry.OnShutdown, errs.PhaseOnShutdown)
}

func (r *hookRunner) RunOnRestart(h *child.Handle) {
	r.runSwallowed(h, registry.OnRestart, errs.PhaseOnRestart)
}

// runSwallowed invokes every hook of kind across h.Spec.Hooks, logging and
// continuing on any failure — these phases are never fatal (spec.md §6).
func (r *hookRunner) runSwallowed(h *child.Handle, kind registry.HookKind, phase errs.PluginErrorPhase) {
	view, os := h.View(), h.OSHandle()
	for _, group := range h.Spec.Hooks {
		fns, err := r.reg.ResolveHooks(group, kind)
		if err != nil {
			r.logger.Warn("hook group resolution failed", "group", group, "kind", kind, "error", err)
			continue
		}
		for _, fn := range fns {
			if err := callHook(fn, view, os); err != nil {
				pluginErr := &errs.PluginError{Phase: phase, Name: group, Cause: err}
				r.logger.Error("plugin hook failed", "process", h.Spec.Name, "error", pluginErr)
			}
		}
	}
}
