// Package metrics provides a built-in stats-handler plugin (spec.md §6
// stats_handlers()) that republishes each monitor tick's ProcessStats
// batch as Prometheus gauges, using github.com/prometheus/client_golang —
// the metrics library other_examples/kahi and other_examples/warren both
// pull in for exactly this kind of egress.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/engineerjames/process-pilot/internal/registry"
)

const pluginName = "prometheus"

// Plugin exposes per-process memory/CPU/thread/children gauges. It
// implements registry.Plugin so it is registered and resolved like any
// other stats handler: a manifest entry opts in by listing "prometheus" in
// its stats_handlers.
type Plugin struct {
	memory   *prometheus.GaugeVec
	cpu      *prometheus.GaugeVec
	threads  *prometheus.GaugeVec
	children *prometheus.GaugeVec
}

// New registers the gauge vectors with reg (a *prometheus.Registry, not to
// be confused with the supervisor's capability Registry) and returns a
// Plugin ready to hand to registry.Registry.Register.
func New(reg *prometheus.Registry) *Plugin {
	p := &Plugin{
		memory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "process_pilot_memory_mb", Help: "Resident memory of a supervised process, in MB.",
		}, []string{"process"}),
		cpu: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "process_pilot_cpu_percent", Help: "CPU utilization of a supervised process, percent.",
		}, []string{"process"}),
		threads: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "process_pilot_threads", Help: "Thread count of a supervised process.",
		}, []string{"process"}),
		children: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "process_pilot_children", Help: "Child process count of a supervised process.",
		}, []string{"process"}),
	}
	reg.MustRegister(p.memory, p.cpu, p.threads, p.children)
	return p
}

func (p *Plugin) Name() string { return pluginName }

func (p *Plugin) Hooks() map[string]map[registry.HookKind][]registry.HookFunc { return nil }

func (p *Plugin) Strategies() map[string]registry.StrategyFunc { return nil }

func (p *Plugin) StatsHandlers() map[string]registry.StatsFunc {
	return map[string]registry.StatsFunc{pluginName: p.report}
}

func (p *Plugin) report(batch []registry.ChildStats) error {
	for _, s := range batch {
		p.memory.WithLabelValues(s.Name).Set(s.MemoryMB)
		p.cpu.WithLabelValues(s.Name).Set(s.CPUPercent)
		p.threads.WithLabelValues(s.Name).Set(float64(s.NumThreads))
		p.children.WithLabelValues(s.Name).Set(float64(s.NumChildren))
	}
	return nil
}
