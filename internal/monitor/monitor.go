// Package monitor implements the Monitor Loop (spec.md §4.5): the single
// driving loop that polls children, collects stats, invokes stats
// handlers, detects exits, and runs the shutdown-policy state machine.
package monitor

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/engineerjames/process-pilot/internal/child"
	"github.com/engineerjames/process-pilot/internal/clock"
	"github.com/engineerjames/process-pilot/internal/errs"
	"github.com/engineerjames/process-pilot/internal/manifest"
	"github.com/engineerjames/process-pilot/internal/ready"
	"github.com/engineerjames/process-pilot/internal/registry"
)

// DefaultTickInterval is the monitor loop's polling cadence (spec.md §4.5).
const DefaultTickInterval = 100 * time.Millisecond

// Hooks is the lifecycle-hook surface the monitor loop needs beyond the
// scheduler's PRE_START/POST_START (spec.md §4.5, §6).
type Hooks interface {
	RunOnShutdown(h *child.Handle)
	RunOnRestart(h *child.Handle)
}

// command is a control message drained once per tick (spec.md §4.5 step 3).
type command struct {
	kind    commandKind
	names   []string // restart target names
	reply   chan error
}

type commandKind int

const (
	cmdStop commandKind = iota
	cmdRestart
)

// Loop is the Supervisor Façade's single control path once Start() has
// returned successfully.
type Loop struct {
	logger       hclog.Logger
	clk          clock.Clock
	prober       *ready.Prober
	hooks        Hooks
	tickInterval time.Duration

	active map[string]*child.Handle // façade-owned; monitor mutates only from its own goroutine
	order  []string                 // reverse topological order for teardown

	statsHandlers map[string]registry.StatsFunc

	commands chan command
	done     chan struct{}
	stopped  chan struct{}
}

// New builds a Loop. reverseOrder is the full set of process names in
// reverse-topological (teardown) order; active is the initial set of
// handles that reached READY during Start().
func New(
	logger hclog.Logger,
	clk clock.Clock,
	prober *ready.Prober,
	hooks Hooks,
	tickInterval time.Duration,
	reverseOrder []string,
	active map[string]*child.Handle,
	statsHandlers map[string]registry.StatsFunc,
) *Loop {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Loop{
		logger:        logger.Named("monitor"),
		clk:           clk,
		prober:        prober,
		hooks:         hooks,
		tickInterval:  tickInterval,
		active:        active,
		order:         reverseOrder,
		statsHandlers: statsHandlers,
		commands:      make(chan command, 8),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Run blocks until a stop command, a shutdown_everything policy, or an
// unexpected internal error triggers fleet teardown. It never returns an
// error itself; any internal failure is logged and still results in
// teardown per spec.md §7 ("the loop never dies silently").
func (l *Loop) Run() {
	defer close(l.stopped)
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("monitor loop panicked, tearing down fleet", "panic", r)
			l.teardown()
		}
	}()

	ticker := l.clk.NewTicker(l.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			if l.tick() {
				return
			}
		case cmd := <-l.commands:
			switch cmd.kind {
			case cmdStop:
				l.teardown()
				cmd.reply <- nil
				return
			case cmdRestart:
				cmd.reply <- l.restartByName(cmd.names)
			}
		}
	}
}

// Stop requests fleet teardown and blocks until it completes. Calling Stop
// twice is equivalent to calling it once (spec.md §4.6 idempotence).
func (l *Loop) Stop() {
	select {
	case <-l.stopped:
		return
	default:
	}

	reply := make(chan error, 1)
	select {
	case l.commands <- command{kind: cmdStop, reply: reply}:
		<-reply
	case <-l.stopped:
		// Run exited between our pre-check and the send; nothing to wait on.
	}
	<-l.stopped
}

// RestartNames asks the loop to restart the given currently-RUNNING
// processes. Returns UnknownProcess before any side effects if any name is
// invalid.
func (l *Loop) RestartNames(names []string) error {
	select {
	case <-l.stopped:
		return errs.ErrNotStarted
	default:
	}

	reply := make(chan error, 1)
	select {
	case l.commands <- command{kind: cmdRestart, names: names, reply: reply}:
		return <-reply
	case <-l.stopped:
		return errs.ErrNotStarted
	}
}

// tick runs one monitor iteration. Returns true if fleet teardown
// completed and the loop should exit.
func (l *Loop) tick() bool {
	batch := make([]registry.ChildStats, 0, len(l.active))

	for name, h := range l.active {
		if h.State() == child.Exited {
			if l.handleExit(name, h) {
				return true // shutdown_everything initiated and completed
			}
			continue
		}
		if !h.PollAlive() {
			continue // race: wait() goroutine hasn't flipped state yet
		}
		h.MarkRunning()
		snap, err := h.CollectStats()
		if err != nil {
			l.logger.Warn("collect stats failed", "process", name, "error", err)
			continue
		}
		batch = append(batch, registry.ChildStats{
			Name: snap.Name, PID: snap.PID, MemoryMB: snap.MemoryMB,
			CPUPercent: snap.CPUPercent, NumThreads: snap.NumThreads, NumChildren: snap.NumChildren,
		})
	}

	l.invokeStatsHandlers(batch)
	return false
}

func (l *Loop) invokeStatsHandlers(batch []registry.ChildStats) {
	for name, fn := range l.statsHandlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error("stats handler panicked", "handler", name, "panic", r)
				}
			}()
			if err := fn(batch); err != nil {
				l.logger.Error("stats handler failed", "handler", name, "error", err)
			}
		}()
	}
}

// handleExit runs ON_SHUTDOWN for a newly-exited child then consults its
// shutdown_strategy. Returns true if this triggered fleet teardown (the
// loop should now exit).
func (l *Loop) handleExit(name string, h *child.Handle) bool {
	l.logger.Info("process exited", "process", name, "exit_code", h.ExitCode())
	l.hooks.RunOnShutdown(h)

	switch h.Spec.ShutdownStrategy {
	case manifest.ShutdownEverything:
		l.logger.Warn("shutdown_everything triggered", "process", name)
		h.CleanupPipe()
		delete(l.active, name)
		l.teardown()
		return true

	case manifest.DoNotRestart:
		h.CleanupPipe()
		delete(l.active, name)
		return false

	default: // manifest.Restart
		if limit := h.Spec.MaxRestarts; limit > 0 && h.Restarts() >= limit {
			l.logger.Error("max_restarts reached, demoting to do_not_restart", "process", name, "max_restarts", limit)
			h.CleanupPipe()
			delete(l.active, name)
			return false
		}
		l.restartOne(name, h)
		return false
	}
}

// restartOne fires ON_RESTART, spawns a replacement process, and re-runs
// readiness. If readiness fails, per spec.md §9 Open Question resolution,
// the child is demoted to do_not_restart behavior and the failure logged.
func (l *Loop) restartOne(name string, h *child.Handle) {
	applyBackoff(l.clk, h)

	h.CleanupPipe() // the exited spawn's FIFO, if any, is stale now
	l.hooks.RunOnRestart(h)
	h.IncrementRestarts()

	if err := h.PreparePipe(); err != nil {
		l.logger.Error("restart pipe creation failed, demoting to do_not_restart", "process", name, "error", err)
		delete(l.active, name)
		return
	}

	if err := h.Spawn(); err != nil {
		l.logger.Error("restart spawn failed, demoting to do_not_restart", "process", name, "error", err)
		delete(l.active, name)
		return
	}

	view := h.View()
	deadline := l.clk.Now().Add(time.Duration(h.Spec.ReadyTimeoutSec * float64(time.Second)))
	result, err := l.prober.Probe(h.Spec.ReadyStrategy, view, deadline)
	if err != nil || result != ready.ResultReady {
		l.logger.Error("restart readiness failed, demoting to do_not_restart", "process", name, "error", err)
		if _, stopErr := stopHandle(h); stopErr != nil {
			l.logger.Warn("stop after failed restart reported error", "process", name, "error", stopErr)
		}
		h.CleanupPipe()
		delete(l.active, name)
		return
	}

	h.MarkReady()
	l.logger.Info("process restarted", "process", name, "restarts", h.Restarts())
}

// applyBackoff sleeps for the spec's configured restart delay/backoff, the
// mechanics kept from the teacher (kornnellio-gosv/supervisor.go
// handleRestarts). Zero-valued knobs mean immediate restart, spec.md
// §4.5's default.
func applyBackoff(clk clock.Clock, h *child.Handle) {
	if h.Spec.RestartDelaySec <= 0 {
		return
	}
	delay := h.Spec.RestartDelaySec
	if h.Spec.StableAfterSec > 0 && h.LastUptime() > time.Duration(h.Spec.StableAfterSec*float64(time.Second)) {
		return // stable long enough, teacher's StableAfter reset: skip backoff entirely
	}
	factor := h.Spec.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	wait := delay
	for i := 1; i < h.Restarts(); i++ {
		wait *= factor
	}
	clk.Sleep(time.Duration(wait * float64(time.Second)))
}

// restartByName validates all names first (no side effects on failure),
// then restarts each: STOPPING -> ON_RESTART -> spawn -> readiness.
func (l *Loop) restartByName(names []string) error {
	for _, name := range names {
		h, ok := l.active[name]
		if !ok {
			return &errs.UnknownProcess{Name: name}
		}
		if h.State() != child.Running {
			return &errs.UnknownProcess{Name: name}
		}
	}

	for _, name := range names {
		h := l.active[name]
		if _, err := stopHandle(h); err != nil {
			l.logger.Warn("stop before restart reported error", "process", name, "error", err)
		}
		l.restartOne(name, h)
	}
	return nil
}

func stopHandle(h *child.Handle) (escalated bool, err error) {
	timeoutDur := time.Duration(h.Spec.TimeoutSec * float64(time.Second))
	return h.RequestStop(timeoutDur)
}

// teardown stops every still-running child in reverse topological order,
// firing ON_SHUTDOWN after each exits (spec.md §4.5 "Fleet teardown").
func (l *Loop) teardown() {
	l.logger.Info("fleet teardown starting")
	for _, name := range l.order {
		h, ok := l.active[name]
		if !ok {
			continue
		}
		if h.State() == child.Exited || h.State() == child.TerminatedByPolicy {
			delete(l.active, name)
			continue
		}
		escalated, err := stopHandle(h)
		if err != nil {
			l.logger.Error("stop failed", "process", name, "error", err)
		} else if escalated {
			l.logger.Warn("graceful stop timed out, escalated to SIGKILL", "process", name)
		}
		h.MarkTerminatedByPolicy()
		h.CleanupPipe()
		l.hooks.RunOnShutdown(h)
		delete(l.active, name)
	}
	l.logger.Info("fleet teardown complete")
}
