// Package ready implements the Readiness Prober (spec.md §4.2): given a
// spec and a named strategy resolved from the Plugin Registry, block until
// the child is ready or a deadline elapses, re-checking the deadline before
// every sleep so a slow probe cannot overrun by more than one interval plus
// the probe's own blocking cost (DESIGN NOTES: "Polling loops with sleep →
// deadline-driven suspension").
package ready

import (
	"fmt"
	"time"

	"github.com/engineerjames/process-pilot/internal/clock"
	"github.com/engineerjames/process-pilot/internal/registry"
)

// DefaultPollInterval is the constant polling cadence (spec.md §4.2).
const DefaultPollInterval = 100 * time.Millisecond

// Result is the outcome of a Probe call.
type Result int

const (
	ResultReady Result = iota
	ResultTimeout
	ResultError
)

// Prober drives a named strategy to completion against a deadline.
type Prober struct {
	registry     *registry.Registry
	clock        clock.Clock
	pollInterval time.Duration
}

// New builds a Prober. pollInterval <= 0 uses DefaultPollInterval.
func New(reg *registry.Registry, clk clock.Clock, pollInterval time.Duration) *Prober {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Prober{registry: reg, clock: clk, pollInterval: pollInterval}
}

// Probe blocks until child is ready or deadline passes. An empty strategyName
// means the process has no readiness strategy and is immediately ready
// (spec.md §4.2).
func (p *Prober) Probe(strategyName string, child registry.ChildView, deadline time.Time) (Result, error) {
	if strategyName == "" {
		return ResultReady, nil
	}

	strategy, err := p.registry.ResolveStrategy(strategyName)
	if err != nil {
		return ResultError, err
	}

	pollSec := p.pollInterval.Seconds()
	for {
		ready, err := callStrategy(strategy, child, pollSec)
		if err != nil {
			return ResultError, err
		}
		if ready {
			return ResultReady, nil
		}

		now := p.clock.Now()
		if !now.Before(deadline) {
			return ResultTimeout, nil
		}

		sleep := p.pollInterval
		if remaining := deadline.Sub(now); remaining < sleep {
			sleep = remaining
		}
		select {
		case <-p.clock.After(sleep):
		}

		if !p.clock.Now().Before(deadline) {
			return ResultTimeout, nil
		}
	}
}

// callStrategy invokes strategy, converting a panic into an error so a
// misbehaving plugin-provided probe fails this child's start instead of
// crashing the supervisor (spec.md §7: "the loop never dies silently").
func callStrategy(strategy registry.StrategyFunc, child registry.ChildView, pollIntervalSec float64) (ready bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return strategy(child, pollIntervalSec)
}
