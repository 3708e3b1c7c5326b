// Package graph implements the Graph Export component (spec.md §2 item 8,
// §4.4 step 1): it builds a directed dependency→dependent graph from a
// manifest and renders it to an image via an external tool. It only reads
// the manifest; it never touches the scheduler, the registry, or any
// running process.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/engineerjames/process-pilot/internal/manifest"
)

// Format is an output image format accepted by the renderer.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
	PDF Format = "pdf"
)

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	switch f {
	case PNG, SVG, PDF:
		return true
	}
	return false
}

// DOT renders m as a Graphviz DOT source describing the dependency graph:
// one node per process, one edge per dependency→dependent pair (spec.md
// §4.4 step 1, "Build a directed graph with edges dependency → dependent").
// When detailed is true each node's label is annotated with its path,
// shutdown strategy, and ready strategy; detailed labels are only
// meaningful for the svg renderer, which is large enough to read them.
func DOT(m *manifest.ProcessManifest, detailed bool) string {
	var b strings.Builder
	b.WriteString("digraph process_pilot {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, fontname=\"monospace\"];\n\n")

	names := make([]string, 0, len(m.Processes))
	for _, p := range m.Processes {
		names = append(names, p.Name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec, _ := m.ByName(name)
		b.WriteString(fmt.Sprintf("  %q [label=%q];\n", name, nodeLabel(spec, detailed)))
	}

	b.WriteString("\n")
	for _, name := range names {
		spec, _ := m.ByName(name)
		deps := append([]string(nil), spec.Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			b.WriteString(fmt.Sprintf("  %q -> %q;\n", dep, name))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func nodeLabel(spec manifest.ProcessSpec, detailed bool) string {
	if !detailed {
		return spec.Name
	}
	var b strings.Builder
	b.WriteString(spec.Name)
	b.WriteString("\\n")
	b.WriteString(spec.Path)
	if len(spec.Args) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(spec.Args, " "))
	}
	b.WriteString("\\nshutdown_strategy=")
	b.WriteString(string(spec.ShutdownStrategy))
	if spec.ReadyStrategy != "" {
		b.WriteString("\\nready_strategy=")
		b.WriteString(spec.ReadyStrategy)
	}
	return b.String()
}
