package scheduler

import (
	"github.com/engineerjames/process-pilot/internal/errs"
	"github.com/engineerjames/process-pilot/internal/manifest"
	"github.com/engineerjames/process-pilot/internal/registry"
)

// requiredReadyParams lists the ready_params keys each built-in strategy
// needs, per spec.md §4.7. Strategies from the registry beyond the three
// built-ins are not checked here since their required params are unknown
// to the core.
var requiredReadyParams = map[string][]string{
	"tcp":  {"port"},
	"file": {"path"},
	"pipe": {"path"},
}

// ValidateStructure checks the manifest-shape invariants that don't depend
// on which plugins end up registered — unique names, known dependencies,
// field constraints, and the DAG property — and populates m.Batches with
// the dependency-ordered start order (spec.md §4.4). This is what
// Supervisor.New runs, since RegisterPlugins hasn't been called yet.
func ValidateStructure(m *manifest.ProcessManifest) error {
	if err := checkUniqueNames(m); err != nil {
		return err
	}
	if err := checkDependenciesExist(m); err != nil {
		return err
	}
	if err := checkFieldConstraints(m); err != nil {
		return err
	}

	batches, err := computeBatches(m)
	if err != nil {
		return err
	}
	m.Batches = batches
	return nil
}

// ValidateCapabilities checks that every ready_strategy/hook group/stats
// handler named in m resolves in reg. Run once all plugins are registered
// (Supervisor.Start, before spawning anything), since built-in-only
// resolution at New() time would reject manifests using plugin-provided
// capabilities that haven't been registered yet.
func ValidateCapabilities(m *manifest.ProcessManifest, reg *registry.Registry) error {
	return checkCapabilities(m, reg)
}

// Validate runs both passes against an already-built registry. Kept for
// callers (and tests) that build everything up front in one shot.
func Validate(m *manifest.ProcessManifest, reg *registry.Registry) error {
	if err := ValidateStructure(m); err != nil {
		return err
	}
	return ValidateCapabilities(m, reg)
}

func checkUniqueNames(m *manifest.ProcessManifest) error {
	seen := make(map[string]bool, len(m.Processes))
	for _, p := range m.Processes {
		if p.Name == "" {
			return errs.NewManifestError(errs.SchemaViolation, "", "process name must not be empty")
		}
		if seen[p.Name] {
			return errs.NewManifestError(errs.DuplicateName, p.Name, "name is not unique within manifest")
		}
		seen[p.Name] = true
	}
	return nil
}

func checkDependenciesExist(m *manifest.ProcessManifest) error {
	names := make(map[string]bool, len(m.Processes))
	for _, p := range m.Processes {
		names[p.Name] = true
	}
	for _, p := range m.Processes {
		for _, dep := range p.Dependencies {
			if !names[dep] {
				return errs.NewManifestError(errs.UnknownDependency, p.Name,
					"depends on unknown process \""+dep+"\"")
			}
		}
	}
	return nil
}

func checkCapabilities(m *manifest.ProcessManifest, reg *registry.Registry) error {
	for _, p := range m.Processes {
		if p.ReadyStrategy != "" && !reg.HasStrategy(p.ReadyStrategy) {
			return errs.NewManifestError(errs.UnknownCapability, p.Name,
				"unknown ready_strategy \""+p.ReadyStrategy+"\"")
		}
		for _, group := range p.Hooks {
			if !reg.HasHookGroup(group) {
				return errs.NewManifestError(errs.UnknownCapability, p.Name,
					"unknown hook group \""+group+"\"")
			}
		}
		for _, handler := range p.StatsHandlers {
			if !reg.HasStats(handler) {
				return errs.NewManifestError(errs.UnknownCapability, p.Name,
					"unknown stats handler \""+handler+"\"")
			}
		}
	}
	return nil
}

func checkFieldConstraints(m *manifest.ProcessManifest) error {
	for _, p := range m.Processes {
		if p.TimeoutSec < 0 {
			return errs.NewManifestError(errs.SchemaViolation, p.Name, "timeout must be >= 0")
		}
		if p.ReadyStrategy != "" {
			if p.ReadyTimeoutSec <= 0 {
				return errs.NewManifestError(errs.SchemaViolation, p.Name,
					"ready_timeout_sec is required and must be > 0 when ready_strategy is set")
			}
			for _, key := range requiredReadyParams[p.ReadyStrategy] {
				if _, ok := p.ReadyParams[key]; !ok {
					return errs.NewManifestError(errs.MissingReadyParam, p.Name,
						"ready_params missing required key \""+key+"\" for strategy \""+p.ReadyStrategy+"\"")
				}
			}
		}
		switch p.ShutdownStrategy {
		case manifest.Restart, manifest.DoNotRestart, manifest.ShutdownEverything:
		default:
			return errs.NewManifestError(errs.SchemaViolation, p.Name,
				"unknown shutdown_strategy \""+string(p.ShutdownStrategy)+"\"")
		}
	}
	return nil
}

// computeBatches runs Kahn's algorithm over the dependency→dependent edges,
// rejecting cycles, and groups nodes by topological rank into batches.
// Within a batch, order follows original manifest declaration order
// (spec.md §4.4 step 3).
func computeBatches(m *manifest.ProcessManifest) ([][]string, error) {
	inDegree := make(map[string]int, len(m.Processes))
	dependents := make(map[string][]string, len(m.Processes))
	for _, p := range m.Processes {
		inDegree[p.Name] = len(p.Dependencies)
		for _, dep := range p.Dependencies {
			dependents[dep] = append(dependents[dep], p.Name)
		}
	}

	var batches [][]string
	remaining := len(m.Processes)
	ready := make(map[string]bool)

	for remaining > 0 {
		var batch []string
		for _, p := range m.Processes {
			if inDegree[p.Name] == 0 && !ready[p.Name] {
				batch = append(batch, p.Name)
			}
		}
		if len(batch) == 0 {
			return nil, errs.NewManifestError(errs.CycleDetected, "",
				"dependency graph contains a cycle")
		}
		for _, name := range batch {
			ready[name] = true
			inDegree[name] = -1 // consumed, never re-selected
			remaining--
		}
		for _, name := range batch {
			for _, dependent := range dependents[name] {
				inDegree[dependent]--
			}
		}
		batches = append(batches, batch)
	}

	return batches, nil
}
