package graph

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/engineerjames/process-pilot/internal/manifest"
)

// Renderer shells out to the Graphviz "dot" binary to turn DOT source into
// an image, the same os/exec idiom the teacher's cgroup.go uses for its
// systemd-run re-exec: build an argv, wire stdin/stdout, capture stderr for
// the error path.
type Renderer struct {
	// DotPath overrides the binary looked up via exec.LookPath("dot").
	// Tests set this to a fake script; zero value means "look up dot".
	DotPath string
}

// Render writes m's dependency graph, in the requested format, to
// <outputDir>/process-pilot.<format>, and returns that path. detailed is
// only honored for SVG (spec.md §6 "--detailed is honored only for svg");
// it is silently ignored for png/pdf rather than rejected, since a label
// verbosity choice isn't a manifest defect worth failing the whole run
// over.
func (r Renderer) Render(m *manifest.ProcessManifest, format Format, outputDir string, detailed bool) (string, error) {
	if !format.Valid() {
		return "", fmt.Errorf("render: unsupported format %q", format)
	}

	dotBin := r.DotPath
	if dotBin == "" {
		path, err := exec.LookPath("dot")
		if err != nil {
			return "", fmt.Errorf("render: graphviz \"dot\" not found in PATH: %w", err)
		}
		dotBin = path
	}

	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("render: create output dir: %w", err)
	}
	outputPath := filepath.Join(outputDir, "process-pilot."+string(format))

	src := DOT(m, detailed && format == SVG)

	cmd := exec.Command(dotBin, "-T"+string(format), "-o", outputPath)
	cmd.Stdin = bytes.NewBufferString(src)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("render: dot failed: %w: %s", err, stderr.String())
	}
	return outputPath, nil
}
