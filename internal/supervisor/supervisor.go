// Package supervisor implements the Supervisor Façade (spec.md §4.6): the
// public surface used to construct a fleet from a validated manifest,
// start it, stop it, restart individual processes, register plugins, and
// own operator signal handling.
package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/engineerjames/process-pilot/internal/child"
	"github.com/engineerjames/process-pilot/internal/clock"
	"github.com/engineerjames/process-pilot/internal/errs"
	"github.com/engineerjames/process-pilot/internal/introspect"
	"github.com/engineerjames/process-pilot/internal/manifest"
	"github.com/engineerjames/process-pilot/internal/monitor"
	"github.com/engineerjames/process-pilot/internal/ready"
	"github.com/engineerjames/process-pilot/internal/registry"
	"github.com/engineerjames/process-pilot/internal/scheduler"
	"github.com/engineerjames/process-pilot/internal/stats"
)

// Options configures a Supervisor. Every field is optional; defaults match
// production behavior. Tests override Clock/Collector to run without
// wall-clock time or real stats collection (spec.md §9 "Global-ish state →
// explicit dependencies"); children are still spawned as real OS processes.
type Options struct {
	Logger       hclog.Logger
	Clock        clock.Clock
	Collector    stats.Collector
	TickInterval time.Duration
	PollInterval time.Duration
}

// Supervisor is the public façade. It exclusively owns the set of
// ChildHandles for the lifetime of a Start/Stop pair (spec.md §3
// "Ownership").
type Supervisor struct {
	logger   hclog.Logger
	clk      clock.Clock
	reg      *registry.Registry
	manifest *manifest.ProcessManifest
	prober   *ready.Prober
	sched    *scheduler.Scheduler
	hooks    *hookRunner

	// tickInterval is a user override for the monitor loop's tick cadence;
	// Start() falls back to monitor.DefaultTickInterval when zero.
	tickInterval time.Duration

	mu       sync.Mutex
	started  bool
	handles  map[string]*child.Handle
	loop     *monitor.Loop
	loopDone chan struct{}

	sigCh     chan os.Signal
	sigOnce   sync.Once
	forceKill sync.Once
}

// New validates the manifest's structure (names, dependencies, field
// constraints, DAG) and builds a Supervisor ready for RegisterPlugins then
// Start. It registers the three built-in readiness strategies but not any
// user plugin, so manifest entries referencing a plugin-provided
// capability are only checked at Start time (see scheduler.ValidateCapabilities).
func New(m *manifest.ProcessManifest, opts Options) (*Supervisor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	collector := opts.Collector
	if collector == nil {
		collector = stats.NewGopsutilCollector()
	}

	if err := scheduler.ValidateStructure(m); err != nil {
		return nil, err
	}

	reg := registry.New(logger)
	prober := ready.New(reg, clk, opts.PollInterval)
	hooks := newHookRunner(reg, logger)
	sched := scheduler.New(logger, reg, prober, clk, hooks)

	handles := make(map[string]*child.Handle, len(m.Processes))
	for _, spec := range m.Processes {
		handles[spec.Name] = child.New(spec, clk, collector)
	}

	s := &Supervisor{
		logger:       logger.Named("supervisor"),
		clk:          clk,
		reg:          reg,
		manifest:     m,
		prober:       prober,
		sched:        sched,
		hooks:        hooks,
		handles:      handles,
		tickInterval: opts.TickInterval,
		sigCh:        make(chan os.Signal, 4),
	}
	return s, nil
}

// RegisterPlugins pulls hooks/strategies/stats handlers from each plugin
// into the registry. Legal only before Start.
func (s *Supervisor) RegisterPlugins(plugins ...registry.Plugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errs.ErrAlreadyStarted
	}
	for _, p := range plugins {
		if err := s.reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Start validates capability references against the now-fully-registered
// registry, then launches the manifest's start batches in dependency
// order. On success every child is READY/RUNNING and the monitor loop is
// driving the fleet in the background. On StartupFailure, whatever
// started is torn down in reverse start order before the error is
// returned (spec.md §4.4 "Startup failure policy").
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errs.ErrAlreadyStarted
	}
	s.mu.Unlock()

	if err := scheduler.ValidateCapabilities(s.manifest, s.reg); err != nil {
		return err
	}

	started, err := s.sched.Run(s.manifest, s.handles)
	if err != nil {
		s.logger.Error("startup failed, tearing down", "error", err)
		s.teardownPartialStart(started)
		return err
	}

	s.mu.Lock()
	s.started = true
	s.loopDone = make(chan struct{})
	active := make(map[string]*child.Handle, len(s.handles))
	for k, v := range s.handles {
		active[k] = v
	}
	statsHandlerNames := collectStatsHandlerNames(s.manifest)
	statsHandlers := make(map[string]registry.StatsFunc, len(statsHandlerNames))
	for name := range statsHandlerNames {
		if fn, err := s.reg.ResolveStats(name); err == nil {
			statsHandlers[name] = fn
		}
	}
	s.loop = monitor.New(s.logger, s.clk, s.prober, s.hooks, s.tickInterval,
		reverseOrder(s.manifest), active, statsHandlers)
	loop := s.loop
	loopDone := s.loopDone
	s.mu.Unlock()

	s.setupSignals()

	go func() {
		loop.Run()
		close(loopDone)
	}()

	return nil
}

// teardownPartialStart stops whatever already started, in reverse start
// order, firing ON_SHUTDOWN for each, without requiring the monitor loop
// to have been constructed (Start() failed before that point).
func (s *Supervisor) teardownPartialStart(started []*child.Handle) {
	byName := make(map[string]*child.Handle, len(started))
	for _, h := range started {
		byName[h.Spec.Name] = h
	}
	for _, name := range reverseOrder(s.manifest) {
		h, ok := byName[name]
		if !ok {
			continue
		}
		timeout := time.Duration(h.Spec.TimeoutSec * float64(time.Second))
		if _, err := h.RequestStop(timeout); err != nil {
			s.logger.Error("teardown stop failed", "process", name, "error", err)
		}
		h.MarkTerminatedByPolicy()
		h.CleanupPipe()
		s.hooks.RunOnShutdown(h)
	}
}

// Stop initiates fleet teardown and blocks until complete. Idempotent.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errs.ErrNotStarted
	}
	loop := s.loop
	loopDone := s.loopDone
	s.mu.Unlock()

	loop.Stop()
	<-loopDone
	return nil
}

// Wait blocks until fleet teardown completes, however it was triggered —
// an explicit Stop call, an operator signal, or a shutdown_everything
// policy. Safe to call concurrently with Stop.
func (s *Supervisor) Wait() {
	s.mu.Lock()
	done := s.loopDone
	s.mu.Unlock()
	if done == nil {
		return
	}
	<-done
}

// RestartProcesses validates every name is known and currently RUNNING,
// then restarts each: STOPPING -> ON_RESTART hooks -> spawn -> readiness.
// Fails with UnknownProcess before any side effects if any name is invalid.
func (s *Supervisor) RestartProcesses(names []string) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errs.ErrNotStarted
	}
	loop := s.loop
	s.mu.Unlock()

	return loop.RestartNames(names)
}

// setupSignals wires SIGINT/SIGTERM to Stop() exactly once; a second SIGINT
// after teardown has begun forces immediate SIGKILL on any stragglers
// (spec.md §4.6).
func (s *Supervisor) setupSignals() {
	signal.Notify(s.sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	go func() {
		stopping := false
		for sig := range s.sigCh {
			switch sig {
			case syscall.SIGUSR1:
				s.dumpIntrospection()
			case syscall.SIGTERM, syscall.SIGINT:
				if stopping && sig == syscall.SIGINT {
					s.forceKill.Do(s.killStragglers)
					continue
				}
				stopping = true
				s.sigOnce.Do(func() {
					s.logger.Info("signal received, stopping", "signal", sig)
					go func() {
						if err := s.Stop(); err != nil {
							s.logger.Error("stop failed", "error", err)
						}
					}()
				})
			}
		}
	}()
}

// dumpIntrospection logs /proc-derived detail for every currently-running
// child, triggered by SIGUSR1 — an operator diagnostic carried over from
// the teacher's Introspect(), never consulted by scheduling or monitoring.
func (s *Supervisor) dumpIntrospection() {
	s.mu.Lock()
	handles := make([]*child.Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		pid := h.PID()
		if pid == 0 {
			continue
		}
		info, err := introspect.Read(pid)
		if err != nil {
			s.logger.Warn("introspection failed", "process", h.Spec.Name, "error", err)
			continue
		}
		s.logger.Info("introspection", "process", h.Spec.Name, "detail", info.String())
	}
}

// killStragglers sends SIGKILL directly to every child that hasn't exited
// yet, bypassing the monitor loop's graceful-stop sequencing entirely. It
// is the operator's escape hatch when a second SIGINT arrives mid-teardown.
func (s *Supervisor) killStragglers() {
	s.logger.Warn("second interrupt received, force-killing stragglers")
	s.mu.Lock()
	handles := make([]*child.Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		switch h.State() {
		case child.Exited, child.TerminatedByPolicy:
			continue
		}
		if err := h.Signal(syscall.SIGKILL); err != nil {
			s.logger.Error("force-kill failed", "process", h.Spec.Name, "error", err)
		}
	}
}

func collectStatsHandlerNames(m *manifest.ProcessManifest) map[string]bool {
	names := make(map[string]bool)
	for _, p := range m.Processes {
		for _, h := range p.StatsHandlers {
			names[h] = true
		}
	}
	return names
}

// reverseOrder flattens m.Batches and reverses it, giving the teardown
// order (spec.md §4.5 "Compute reverse topological order").
func reverseOrder(m *manifest.ProcessManifest) []string {
	var flat []string
	for _, batch := range m.Batches {
		flat = append(flat, batch...)
	}
	order := make([]string, len(flat))
	for i, name := range flat {
		order[len(flat)-1-i] = name
	}
	return order
}
