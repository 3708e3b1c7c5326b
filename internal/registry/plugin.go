package registry

// HookKind names a lifecycle transition a plugin can hook (spec.md §6).
type HookKind string

const (
	PreStart   HookKind = "pre_start"
	PostStart  HookKind = "post_start"
	OnShutdown HookKind = "on_shutdown"
	OnRestart  HookKind = "on_restart"
)

// ChildView is the read-mostly view of a running child passed to plugin
// callables. Plugins must not retain it past the call (spec.md §3
// "Ownership").
type ChildView struct {
	Name        string
	Path        string
	Args        []string
	Env         map[string]string
	PID         int
	State       string
	ExitCode    int
	Restarts    int
	ReadyParams map[string]any
}

// OSHandle is the narrow process-control surface a hook is allowed to use.
// It deliberately exposes nothing the scheduler/monitor doesn't already
// grant the hook (no raw *os.Process, no channels).
type OSHandle interface {
	Signal(sig int) error
}

// HookFunc is a lifecycle callable. A non-nil error from a PRE_START hook
// aborts that child's start; everywhere else it is logged and supervision
// continues (spec.md §6).
type HookFunc func(child ChildView, os OSHandle) error

// StrategyFunc is a readiness-probe callable registered under a name.
// pollIntervalSec is advisory, mirroring the built-in probes' own polling
// cadence. It returns true once the child is observed ready.
type StrategyFunc func(child ChildView, pollIntervalSec float64) (bool, error)

// StatsFunc consumes one monitor tick's full stats batch. Panics/errors
// from a stats handler are logged and swallowed by the monitor loop
// (spec.md §4.5) so a broken observer cannot crash supervision.
type StatsFunc func(batch []ChildStats) error

// ChildStats is the plugin-facing projection of stats.Snapshot, kept in
// this package (rather than importing internal/stats) so registry has no
// dependency on the stats collector.
type ChildStats struct {
	Name          string
	PID           int
	MemoryMB      float64
	CPUPercent    float64
	NumThreads    int
	NumChildren   int
}

// Plugin is the language-neutral plugin interface from spec.md §6,
// expressed as a Go interface per DESIGN NOTES ("Dynamic plugin dispatch →
// explicit capability interface"). A plugin may return empty maps for any
// capability it doesn't provide.
type Plugin interface {
	Name() string
	Hooks() map[string]map[HookKind][]HookFunc
	Strategies() map[string]StrategyFunc
	StatsHandlers() map[string]StatsFunc
}
