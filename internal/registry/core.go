// Package registry discovers reusable HDL cores and their descriptors.
//
// A cores directory holds one subdirectory per core. Each core subdirectory
// carries a core.yaml descriptor declaring the core's sources and the names
// of the cores it depends on. Scanning is read-only and produces an
// immutable Registry snapshot.
package registry

import (
	"path/filepath"
	"sort"
)

// DescriptorFileName is the per-core descriptor the scanner looks for.
const DescriptorFileName = "core.yaml"

// Core is one reusable HDL module as declared by its descriptor.
//
// All path fields are absolute. A Core is never mutated after Scan returns;
// consumers treat the slices as read-only.
type Core struct {
	// Name is the core's identifier, derived from its directory name.
	Name string

	// Dir is the absolute path of the core's directory.
	Dir string

	// Deps are the names of the cores this core depends on, in declared order.
	Deps []string

	// RTLSources are the synthesizable sources, in declared order.
	RTLSources []string

	// SimSources are simulation-only sources (models, helpers), in declared order.
	SimSources []string

	// Prereqs are files that must exist before any of the core's sources are
	// compiled (generated headers, memory images), in declared order.
	Prereqs []string

	// IncludeDirs are the directories holding the core's RTL sources, each
	// listed once, in first-appearance order.
	IncludeDirs []string
}

// Registry is an immutable snapshot of a scanned cores directory.
type Registry struct {
	dir   string
	cores map[string]*Core
	names []string // sorted
}

// Dir returns the cores directory this registry was scanned from.
func (r *Registry) Dir() string { return r.dir }

// Core returns the named core, if present.
func (r *Registry) Core(name string) (*Core, bool) {
	c, ok := r.cores[name]
	return c, ok
}

// Names returns all core names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of cores in the registry.
func (r *Registry) Len() int { return len(r.cores) }

func newRegistry(dir string, cores map[string]*Core) *Registry {
	names := make([]string, 0, len(cores))
	for name := range cores {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Registry{dir: dir, cores: cores, names: names}
}

// includeDirsFor derives a core's include directories from its RTL source
// locations: the directory of every RTL source, deduplicated, in
// first-appearance order.
func includeDirsFor(rtlSources []string) []string {
	seen := make(map[string]struct{}, len(rtlSources))
	var dirs []string
	for _, src := range rtlSources {
		d := filepath.Dir(src)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dirs = append(dirs, d)
	}
	return dirs
}
