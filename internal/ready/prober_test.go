package ready

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/engineerjames/process-pilot/internal/clock"
	"github.com/engineerjames/process-pilot/internal/registry"
)

func TestProbeNoStrategyIsImmediatelyReady(t *testing.T) {
	reg := registry.New(nil)
	p := New(reg, clock.Real{}, time.Millisecond)
	result, err := p.Probe("", registry.ChildView{}, time.Now().Add(time.Second))
	if err != nil || result != ResultReady {
		t.Fatalf("got (%v, %v), want (ResultReady, nil)", result, err)
	}
}

func TestProbeUnknownStrategyErrors(t *testing.T) {
	reg := registry.New(nil)
	p := New(reg, clock.Real{}, time.Millisecond)
	result, err := p.Probe("does-not-exist", registry.ChildView{}, time.Now().Add(time.Second))
	if err == nil || result != ResultError {
		t.Fatalf("got (%v, %v), want (ResultError, non-nil)", result, err)
	}
}

func TestProbeReadyAfterNPolls(t *testing.T) {
	reg := registry.New(nil)
	var calls int32
	mustRegister(t, reg, "probe-test", map[string]registry.StrategyFunc{
		"countdown": func(registry.ChildView, float64) (bool, error) {
			return atomic.AddInt32(&calls, 1) >= 3, nil
		},
	})

	fc := clock.NewFake(time.Unix(0, 0))
	p := New(reg, fc, 10*time.Millisecond)

	done := make(chan struct{})
	var result Result
	var err error
	go func() {
		result, err = p.Probe("countdown", registry.ChildView{}, fc.Now().Add(time.Second))
		close(done)
	}()

	for i := 0; i < 5 && atomic.LoadInt32(&calls) < 3; i++ {
		time.Sleep(time.Millisecond)
		fc.Advance(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Probe never returned")
	}
	if err != nil || result != ResultReady {
		t.Fatalf("got (%v, %v), want (ResultReady, nil)", result, err)
	}
}

func TestProbeTimesOut(t *testing.T) {
	reg := registry.New(nil)
	mustRegister(t, reg, "probe-timeout-test", map[string]registry.StrategyFunc{
		"never": func(registry.ChildView, float64) (bool, error) { return false, nil },
	})

	fc := clock.NewFake(time.Unix(0, 0))
	p := New(reg, fc, 10*time.Millisecond)

	done := make(chan struct{})
	var result Result
	go func() {
		result, _ = p.Probe("never", registry.ChildView{}, fc.Now().Add(50*time.Millisecond))
		close(done)
	}()

	for i := 0; i < 10; i++ {
		time.Sleep(time.Millisecond)
		fc.Advance(10 * time.Millisecond)
		select {
		case <-done:
			goto finished
		default:
		}
	}
finished:
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Probe never returned")
	}
	if result != ResultTimeout {
		t.Fatalf("got %v, want ResultTimeout", result)
	}
}

type stubStrategyPlugin struct {
	name   string
	strats map[string]registry.StrategyFunc
}

func (p *stubStrategyPlugin) Name() string { return p.name }
func (p *stubStrategyPlugin) Hooks() map[string]map[registry.HookKind][]registry.HookFunc {
	return nil
}
func (p *stubStrategyPlugin) Strategies() map[string]registry.StrategyFunc { return p.strats }
func (p *stubStrategyPlugin) StatsHandlers() map[string]registry.StatsFunc { return nil }

func mustRegister(t *testing.T, reg *registry.Registry, name string, strats map[string]registry.StrategyFunc) {
	t.Helper()
	if err := reg.Register(&stubStrategyPlugin{name: name, strats: strats}); err != nil {
		t.Fatalf("register %q: %v", name, err)
	}
}
