package scheduler

import (
	"errors"
	"testing"

	"github.com/engineerjames/process-pilot/internal/errs"
	"github.com/engineerjames/process-pilot/internal/manifest"
	"github.com/engineerjames/process-pilot/internal/registry"
)

func spec(name string, deps ...string) manifest.ProcessSpec {
	return manifest.ProcessSpec{
		Name:             name,
		Path:             "/bin/" + name,
		Dependencies:     deps,
		ShutdownStrategy: manifest.Restart,
	}
}

func TestValidateStructureComputesBatches(t *testing.T) {
	m := &manifest.ProcessManifest{Processes: []manifest.ProcessSpec{
		spec("api", "db", "cache"),
		spec("db"),
		spec("cache"),
	}}

	if err := ValidateStructure(m); err != nil {
		t.Fatalf("ValidateStructure: %v", err)
	}
	if len(m.Batches) != 2 {
		t.Fatalf("got %d batches, want 2: %v", len(m.Batches), m.Batches)
	}
	first := map[string]bool{}
	for _, n := range m.Batches[0] {
		first[n] = true
	}
	if !first["db"] || !first["cache"] {
		t.Errorf("first batch = %v, want db and cache", m.Batches[0])
	}
	if len(m.Batches[1]) != 1 || m.Batches[1][0] != "api" {
		t.Errorf("second batch = %v, want [api]", m.Batches[1])
	}
}

func TestValidateStructureDeclarationOrderTiebreak(t *testing.T) {
	m := &manifest.ProcessManifest{Processes: []manifest.ProcessSpec{
		spec("b"),
		spec("a"),
		spec("c"),
	}}
	if err := ValidateStructure(m); err != nil {
		t.Fatalf("ValidateStructure: %v", err)
	}
	want := []string{"b", "a", "c"}
	for i, name := range want {
		if m.Batches[0][i] != name {
			t.Errorf("batch[0][%d] = %q, want %q", i, m.Batches[0][i], name)
		}
	}
}

func TestValidateStructureDetectsCycle(t *testing.T) {
	m := &manifest.ProcessManifest{Processes: []manifest.ProcessSpec{
		spec("a", "b"),
		spec("b", "a"),
	}}
	err := ValidateStructure(m)
	var mErr *errs.ManifestError
	if !errors.As(err, &mErr) || mErr.Kind != errs.CycleDetected {
		t.Fatalf("got %v, want CycleDetected", err)
	}
}

func TestValidateStructureUnknownDependency(t *testing.T) {
	m := &manifest.ProcessManifest{Processes: []manifest.ProcessSpec{
		spec("a", "ghost"),
	}}
	err := ValidateStructure(m)
	var mErr *errs.ManifestError
	if !errors.As(err, &mErr) || mErr.Kind != errs.UnknownDependency {
		t.Fatalf("got %v, want UnknownDependency", err)
	}
}

func TestValidateStructureDuplicateName(t *testing.T) {
	m := &manifest.ProcessManifest{Processes: []manifest.ProcessSpec{
		spec("a"), spec("a"),
	}}
	err := ValidateStructure(m)
	var mErr *errs.ManifestError
	if !errors.As(err, &mErr) || mErr.Kind != errs.DuplicateName {
		t.Fatalf("got %v, want DuplicateName", err)
	}
}

func TestValidateStructureMissingReadyParam(t *testing.T) {
	s := spec("a")
	s.ReadyStrategy = "tcp"
	s.ReadyTimeoutSec = 5
	m := &manifest.ProcessManifest{Processes: []manifest.ProcessSpec{s}}
	err := ValidateStructure(m)
	var mErr *errs.ManifestError
	if !errors.As(err, &mErr) || mErr.Kind != errs.MissingReadyParam {
		t.Fatalf("got %v, want MissingReadyParam", err)
	}
}

func TestValidateCapabilitiesUnknownStrategy(t *testing.T) {
	s := spec("a")
	s.ReadyStrategy = "made_up"
	s.ReadyTimeoutSec = 5
	s.ReadyParams = map[string]any{"whatever": 1}
	m := &manifest.ProcessManifest{Processes: []manifest.ProcessSpec{s}}

	reg := registry.New(nil)
	err := ValidateCapabilities(m, reg)
	var mErr *errs.ManifestError
	if !errors.As(err, &mErr) || mErr.Kind != errs.UnknownCapability {
		t.Fatalf("got %v, want UnknownCapability", err)
	}
}

func TestValidateCapabilitiesAcceptsBuiltins(t *testing.T) {
	s := spec("a")
	s.ReadyStrategy = "tcp"
	s.ReadyTimeoutSec = 5
	s.ReadyParams = map[string]any{"port": 8080}
	m := &manifest.ProcessManifest{Processes: []manifest.ProcessSpec{s}}

	reg := registry.New(nil)
	if err := ValidateCapabilities(m, reg); err != nil {
		t.Fatalf("ValidateCapabilities: %v", err)
	}
}
