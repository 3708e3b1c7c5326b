// Package manifest holds the declarative description of a fleet of
// supervised processes: the ProcessSpec/ProcessManifest data model
// (spec.md §3) and JSON/YAML loading. Manifest loading itself is an
// out-of-core-scope collaborator (spec.md §1). The validation pass that
// must succeed before any process starts (names, dependencies, DAG,
// capabilities) lives in internal/scheduler, not here.
package manifest

// ShutdownStrategy decides what the monitor loop does when a child exits.
type ShutdownStrategy string

const (
	Restart           ShutdownStrategy = "restart"
	DoNotRestart       ShutdownStrategy = "do_not_restart"
	ShutdownEverything ShutdownStrategy = "shutdown_everything"
)

// ProcessSpec is one immutable manifest entry (spec.md §3).
type ProcessSpec struct {
	Name        string            `json:"name" yaml:"name"`
	Path        string            `json:"path" yaml:"path"`
	Args        []string          `json:"args" yaml:"args"`
	Env         map[string]string `json:"env" yaml:"env"`
	WorkingDir  string            `json:"working_dir" yaml:"working_dir"`
	TimeoutSec  float64           `json:"timeout" yaml:"timeout"`
	ShutdownStrategy ShutdownStrategy `json:"shutdown_strategy" yaml:"shutdown_strategy"`

	ReadyStrategy   string            `json:"ready_strategy" yaml:"ready_strategy"`
	ReadyTimeoutSec float64           `json:"ready_timeout_sec" yaml:"ready_timeout_sec"`
	ReadyParams     map[string]any    `json:"ready_params" yaml:"ready_params"`

	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Hooks        []string `json:"hooks" yaml:"hooks"`
	StatsHandlers []string `json:"stats_handlers" yaml:"stats_handlers"`

	// RestartDelaySec / BackoffFactor / StableAfterSec are optional knobs
	// carried over from the teacher's backoff mechanics (SPEC_FULL.md
	// "Supplemented features"). Zero value means immediate restart with no
	// backoff, which is spec.md §4.5's default behavior.
	RestartDelaySec float64 `json:"restart_delay_sec" yaml:"restart_delay_sec"`
	BackoffFactor   float64 `json:"backoff_factor" yaml:"backoff_factor"`
	StableAfterSec  float64 `json:"stable_after_sec" yaml:"stable_after_sec"`
	MaxRestarts     int     `json:"max_restarts" yaml:"max_restarts"` // 0 = unlimited
}

// DefaultShutdownStrategy is applied when a spec omits shutdown_strategy.
const DefaultShutdownStrategy = Restart

// ProcessManifest is the ordered sequence of specs plus the derived start
// order computed by scheduler.ValidateStructure.
type ProcessManifest struct {
	Processes []ProcessSpec

	// Batches is the precomputed start order: each batch is a list of spec
	// names whose dependencies are all satisfied by earlier batches.
	// Populated by scheduler.ValidateStructure.
	Batches [][]string
}

// ByName returns the spec with the given name, and whether it was found.
func (m *ProcessManifest) ByName(name string) (ProcessSpec, bool) {
	for _, p := range m.Processes {
		if p.Name == name {
			return p, true
		}
	}
	return ProcessSpec{}, false
}
