package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// document is the top-level manifest shape: {"processes": [...]}
// (spec.md §6).
type document struct {
	Processes []ProcessSpec `json:"processes" yaml:"processes"`
}

// Load reads a manifest from path, dispatching on extension. JSON and YAML
// are interchangeable per spec.md §6; both reject unknown top-level and
// per-process fields (strict schema).
func Load(path string) (*ProcessManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	var doc document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("manifest: parse yaml: %w", err)
		}
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("manifest: parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("manifest: unrecognized extension %q", ext)
	}

	for i := range doc.Processes {
		applyDefaults(&doc.Processes[i])
	}

	return &ProcessManifest{Processes: doc.Processes}, nil
}

func applyDefaults(p *ProcessSpec) {
	if p.ShutdownStrategy == "" {
		p.ShutdownStrategy = DefaultShutdownStrategy
	}
}
