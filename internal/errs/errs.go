// Package errs defines the typed error kinds process-pilot surfaces to
// callers. Per DESIGN NOTES (spec.md §9), validation and startup failures
// are first-class result values, not exceptions, so fleet teardown always
// runs on the same path as success cleanup.
package errs

import "fmt"

// ManifestErrorKind enumerates the sub-kinds of ManifestError.
type ManifestErrorKind string

const (
	SchemaViolation       ManifestErrorKind = "schema_violation"
	DuplicateName         ManifestErrorKind = "duplicate_name"
	UnknownDependency     ManifestErrorKind = "unknown_dependency"
	CycleDetected         ManifestErrorKind = "cycle_detected"
	UnknownCapability     ManifestErrorKind = "unknown_capability"
	MissingReadyParam     ManifestErrorKind = "missing_ready_param"
	DuplicateRegistration ManifestErrorKind = "duplicate_registration"
)

// ManifestError is raised during validation, before any process has
// started. There is never any side effect to clean up when one is returned.
type ManifestError struct {
	Kind    ManifestErrorKind
	Subject string // process name, dependency name, capability name, etc.
	Message string
}

func (e *ManifestError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("manifest error [%s]: %s: %s", e.Kind, e.Subject, e.Message)
	}
	return fmt.Sprintf("manifest error [%s]: %s", e.Kind, e.Message)
}

func NewManifestError(kind ManifestErrorKind, subject, message string) *ManifestError {
	return &ManifestError{Kind: kind, Subject: subject, Message: message}
}

// StartupFailure means a child failed PRE_START, failed to spawn, or failed
// to become ready within its deadline. It is fatal to the entire Start call;
// the façade tears down whatever already started before returning it.
type StartupFailure struct {
	ProcessName string
	Reason      string
	Cause       error
}

func (e *StartupFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("startup failure for %q: %s: %v", e.ProcessName, e.Reason, e.Cause)
	}
	return fmt.Sprintf("startup failure for %q: %s", e.ProcessName, e.Reason)
}

func (e *StartupFailure) Unwrap() error { return e.Cause }

// PluginErrorPhase is the lifecycle phase in which plugin code raised.
type PluginErrorPhase string

const (
	PhasePreStart   PluginErrorPhase = "pre_start"
	PhasePostStart  PluginErrorPhase = "post_start"
	PhaseOnShutdown PluginErrorPhase = "on_shutdown"
	PhaseOnRestart  PluginErrorPhase = "on_restart"
	PhaseStats      PluginErrorPhase = "stats_handler"
)

// PluginError wraps a panic/error raised by plugin code, tagged with the
// phase and the plugin/hook-group name it came from. It is fatal only when
// Phase == PhasePreStart; everywhere else the caller logs and continues.
type PluginError struct {
	Phase   PluginErrorPhase
	Name    string
	Cause   error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin error in %s (%s): %v", e.Name, e.Phase, e.Cause)
}

func (e *PluginError) Unwrap() error { return e.Cause }

func (e *PluginError) Fatal() bool { return e.Phase == PhasePreStart }

// StopTimeout records that a child ignored graceful stop past its timeout
// and was escalated to SIGKILL. The overall stop operation still succeeds;
// this is informational, not an aborting error.
type StopTimeout struct {
	ProcessName string
	Timeout     string
}

func (e *StopTimeout) Error() string {
	return fmt.Sprintf("process %q ignored graceful stop past %s, sent SIGKILL", e.ProcessName, e.Timeout)
}

// UnknownProcess means restart_processes (or similar) received a name not
// present in the manifest.
type UnknownProcess struct {
	Name string
}

func (e *UnknownProcess) Error() string {
	return fmt.Sprintf("unknown process: %q", e.Name)
}

// AlreadyStarted is returned when Start or RegisterPlugins is called after
// the façade has already started.
var ErrAlreadyStarted = fmt.Errorf("supervisor: already started")

// NotStarted is returned when an operation requires a running supervisor.
var ErrNotStarted = fmt.Errorf("supervisor: not started")
