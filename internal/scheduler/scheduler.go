// Package scheduler implements the Dependency Scheduler (spec.md §4.4): it
// validates the manifest's dependency graph, computes the batched start
// order via Kahn's algorithm, and — through Run — orchestrates
// PRE_START/spawn/POST_START/readiness per spec so that a dependent never
// begins PRE_START before every one of its dependencies has reached READY.
package scheduler

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

// Hooks abstracts lifecycle hook execution so Scheduler doesn't need to
// know about the façade's hook-invocation bookkeeping (logging, error
// wrapping). PreStart returning an error aborts that spec's start.
type Hooks interface {
	RunPreStart(h *child.Handle) error
	RunPostStart(h *child.Handle)
}

// Scheduler drives one Start() call's worth of dependency-ordered launch.
type Scheduler struct {
	logger hclog.Logger
	reg    *registry.Registry
	prober *ready.Prober
	clk    clock.Clock
	hooks  Hooks
}

// New builds a Scheduler.
func New(logger hclog.Logger, reg *registry.Registry, prober *ready.Prober, clk clock.Clock, hooks Hooks) *Scheduler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Scheduler{logger: logger.Named("scheduler"), reg: reg, prober: prober, clk: clk, hooks: hooks}
}

// Run launches m.Batches in order, returning the handles started so far and
// the first StartupFailure encountered (nil on full success). On failure
// the caller is responsible for tearing down the returned handles
// (spec.md §4.4 "Startup failure policy"); Run itself never stops anything.
func (s *Scheduler) Run(m *manifest.ProcessManifest, handles map[string]*child.Handle) ([]*child.Handle, error) {
	started := make([]*child.Handle, 0, len(m.Processes))

	for _, batch := range m.Batches {
		results := make(chan batchResult, len(batch))
		for _, name := range batch {
			h := handles[name]
			go s.startOne(h, results)
		}

		var firstErr error
		for range batch {
			res := <-results
			if res.handle != nil {
				started = append(started, res.handle)
			}
			if res.err != nil && firstErr == nil {
				firstErr = res.err
			}
		}
		if firstErr != nil {
			return started, firstErr
		}
	}

	return started, nil
}

type batchResult struct {
	handle *child.Handle
	err    error
}

func (s *Scheduler) startOne(h *child.Handle, results chan<- batchResult) {
	spec := h.Spec
	log := s.logger.With("process", spec.Name)

	if err := h.PreparePipe(); err != nil {
		log.Error("pipe creation failed, aborting start", "error", err)
		results <- batchResult{handle: nil, err: &errs.StartupFailure{ProcessName: spec.Name, Reason: "pipe creation failed", Cause: err}}
		return
	}

	if err := s.hooks.RunPreStart(h); err != nil {
		log.Error("pre_start hook failed, aborting start", "error", err)
		results <- batchResult{handle: h, err: &errs.StartupFailure{ProcessName: spec.Name, Reason: "pre_start hook failed", Cause: err}}
		return
	}

	if err := h.Spawn(); err != nil {
		log.Error("spawn failed", "error", err)
		h.CleanupPipe()
		results <- batchResult{handle: nil, err: &errs.StartupFailure{ProcessName: spec.Name, Reason: "spawn failed", Cause: err}}
		return
	}

	s.hooks.RunPostStart(h)

	view := h.View()

	deadline := s.clk.Now().Add(time.Duration(spec.ReadyTimeoutSec * float64(time.Second)))
	result, err := s.prober.Probe(spec.ReadyStrategy, view, deadline)
	if err != nil {
		log.Error("readiness probe errored", "error", err)
		results <- batchResult{handle: h, err: &errs.StartupFailure{ProcessName: spec.Name, Reason: "readiness probe error", Cause: err}}
		return
	}
	if result == ready.ResultTimeout {
		log.Error("readiness timed out", "ready_timeout_sec", spec.ReadyTimeoutSec)
		results <- batchResult{handle: h, err: &errs.StartupFailure{ProcessName: spec.Name, Reason: "readiness timeout"}}
		return
	}

	h.MarkReady()
	log.Info("process ready")
	results <- batchResult{handle: h, err: nil}
}
