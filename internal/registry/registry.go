package registry

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/engineerjames/process-pilot/internal/errs"
)

// Registry maps plugin-provided names to capabilities: hook groups,
// readiness strategies and stats handlers (spec.md §4.1). It is stateless
// after registration — safe for concurrent reads once Start() begins.
type Registry struct {
	logger hclog.Logger

	hookGroups map[string]map[HookKind][]HookFunc
	strategies map[string]StrategyFunc
	stats      map[string]StatsFunc

	// sourceOf remembers which plugin object registered a given name so
	// re-registration of the *same* plugin is idempotent while a different
	// plugin claiming the same name is rejected (spec.md §4.1).
	sourceOf map[string]Plugin
}

// New builds a Registry with the three built-in readiness strategies
// (tcp, pipe, file) already registered, per spec.md §4.1.
func New(logger hclog.Logger) *Registry {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	r := &Registry{
		logger:     logger.Named("registry"),
		hookGroups: make(map[string]map[HookKind][]HookFunc),
		strategies: make(map[string]StrategyFunc),
		stats:      make(map[string]StatsFunc),
		sourceOf:   make(map[string]Plugin),
	}
	r.strategies["tcp"] = TCPStrategy
	r.strategies["file"] = FileStrategy
	r.strategies["pipe"] = PipeStrategy
	return r
}

// Register pulls a plugin's declared hooks/strategies/handlers into the
// registry. Re-registering the identical plugin object under a name it
// already owns is a no-op; a different plugin claiming an already-taken
// name fails with DuplicateRegistration.
func (r *Registry) Register(p Plugin) error {
	name := p.Name()
	if existing, ok := r.sourceOf[name]; ok {
		if existing == p {
			return nil // idempotent re-registration
		}
		return errs.NewManifestError(errs.DuplicateRegistration, name,
			fmt.Sprintf("%q already registered by a different plugin", name))
	}
	r.sourceOf[name] = p

	for group, kinds := range p.Hooks() {
		dst, ok := r.hookGroups[group]
		if !ok {
			dst = make(map[HookKind][]HookFunc)
			r.hookGroups[group] = dst
		}
		for kind, fns := range kinds {
			dst[kind] = append(dst[kind], fns...)
		}
	}
	for stratName, fn := range p.Strategies() {
		if _, exists := r.strategies[stratName]; exists {
			return errs.NewManifestError(errs.DuplicateRegistration, stratName,
				fmt.Sprintf("duplicate strategy registration: %q", stratName))
		}
		r.strategies[stratName] = fn
	}
	for handlerName, fn := range p.StatsHandlers() {
		if _, exists := r.stats[handlerName]; exists {
			return errs.NewManifestError(errs.DuplicateRegistration, handlerName,
				fmt.Sprintf("duplicate stats handler registration: %q", handlerName))
		}
		r.stats[handlerName] = fn
	}

	r.logger.Debug("registered plugin", "name", name)
	return nil
}

// ResolveStrategy looks up a named readiness strategy.
func (r *Registry) ResolveStrategy(name string) (StrategyFunc, error) {
	fn, ok := r.strategies[name]
	if !ok {
		return nil, errs.NewManifestError(errs.UnknownCapability, name, "unknown readiness strategy")
	}
	return fn, nil
}

// ResolveHooks looks up every hook of a given kind across the named hook
// group. An unknown group name is an error; a group with no hooks of the
// requested kind returns an empty (non-nil-error) slice.
func (r *Registry) ResolveHooks(group string, kind HookKind) ([]HookFunc, error) {
	kinds, ok := r.hookGroups[group]
	if !ok {
		return nil, errs.NewManifestError(errs.UnknownCapability, group, "unknown hook group")
	}
	return kinds[kind], nil
}

// ResolveStats looks up a named stats handler.
func (r *Registry) ResolveStats(name string) (StatsFunc, error) {
	fn, ok := r.stats[name]
	if !ok {
		return nil, errs.NewManifestError(errs.UnknownCapability, name, "unknown stats handler")
	}
	return fn, nil
}

// HasStrategy/HasHookGroup/HasStats are capability-existence checks used by
// manifest validation (spec.md §3 invariants) without needing the resolved
// callable itself.
func (r *Registry) HasStrategy(name string) bool  { _, ok := r.strategies[name]; return ok }
func (r *Registry) HasHookGroup(name string) bool { _, ok := r.hookGroups[name]; return ok }
func (r *Registry) HasStats(name string) bool     { _, ok := r.stats[name]; return ok }
