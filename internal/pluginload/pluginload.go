// Package pluginload discovers and loads the process-pilot plugin objects
// described by spec.md §6 from a directory of compiled Go plugin shared
// objects (cmd/process-pilot's --plugins flag). Each .so must export a
// NewPlugin func() registry.Plugin symbol.
//
// No corpus dependency covers this concern: hashicorp/go-plugin (seen
// elsewhere in the retrieval pack) talks to plugins over gRPC in a
// separate process, which doesn't fit a synchronous in-process callable
// contract (child_view, os_handle) -> bool the way spec.md §6 defines it.
// The standard library's plugin package is the only mechanism that loads
// Go code into the same address space, so it's used here directly rather
// than through a third-party wrapper.
package pluginload

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"

	"github.com/engineerjames/process-pilot/internal/registry"
)

// Load opens every *.so file in dir (sorted by name, for deterministic
// registration order) and collects the registry.Plugin each exports via a
// NewPlugin func() registry.Plugin symbol. An empty or missing dir yields
// no plugins and no error.
func Load(dir string) ([]registry.Plugin, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pluginload: read %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".so" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	plugins := make([]registry.Plugin, 0, len(names))
	for _, name := range names {
		p, err := loadOne(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("pluginload: %s: %w", name, err)
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

func loadOne(path string) (registry.Plugin, error) {
	so, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := so.Lookup("NewPlugin")
	if err != nil {
		return nil, err
	}
	ctor, ok := sym.(func() registry.Plugin)
	if !ok {
		return nil, fmt.Errorf("NewPlugin has wrong signature, want func() registry.Plugin")
	}
	return ctor(), nil
}
