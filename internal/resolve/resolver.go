// Package resolve computes the transitive dependency closure of a project
// over a scanned core registry.
//
// The closure is an explicit, side-effect-free computation: each resolution
// walks the registry and returns an immutable ResolvedBuild. A visited set
// keyed by core name gives idempotent union semantics (a core contributes
// its sources exactly once no matter how many paths reach it), and a
// separate on-path marker set distinguishes genuine cycles from
// diamond-shaped re-inclusion.
package resolve

import (
	"github.com/no2fpga/no2build/internal/registry"
)

// Project is the top-level design being built. Supplied by the caller and
// never mutated by resolution.
type Project struct {
	// Name identifies the project; used in diagnostics and artifact names.
	Name string

	// Top is the top-level module name handed to synthesis.
	Top string

	// Deps are the project's direct core dependencies, in declared order.
	Deps []string

	// RTLSources and SimSources are the project's own sources (absolute
	// paths), appended after all core contributions.
	RTLSources []string
	SimSources []string

	// Prereqs are project-level prerequisite files.
	Prereqs []string
}

// ResolvedBuild is the aggregate of a project and its transitive core
// closure. Derived once per resolution; not mutated afterward.
//
// Ordering is deterministic: cores appear in depth-first post-order from
// the project's declared dependency list, so every core precedes anything
// that depends on it, and repeated resolutions of the same inputs yield
// byte-identical slices.
type ResolvedBuild struct {
	// Cores are the resolved core names, dependency-before-dependent.
	Cores []string

	// RTLSources is the aggregated synthesizable file list: every resolved
	// core's RTL sources in closure order, then the project's own.
	RTLSources []string

	// SimSources is the aggregated simulation file list, same ordering rule.
	SimSources []string

	// Prereqs is the aggregated prerequisite file list, deduplicated.
	Prereqs []string

	// IncludeDirs is the aggregated include path list, deduplicated, in
	// closure order.
	IncludeDirs []string
}

// Resolve computes the transitive closure of project's dependencies over
// reg and returns the aggregated build inputs.
//
// Fails with an UnknownCoreError when a declared dependency is absent from
// the registry, or a CycleError when the dependency graph contains a cycle
// reachable from the project.
func Resolve(project *Project, reg *registry.Registry) (*ResolvedBuild, error) {
	r := &resolution{
		reg:     reg,
		visited: make(map[string]struct{}),
		onPath:  make(map[string]struct{}),
	}

	requester := project.Name
	if requester == "" {
		requester = "project"
	}
	for _, dep := range project.Deps {
		if err := r.visit(requester, dep); err != nil {
			return nil, err
		}
	}

	build := &ResolvedBuild{
		Cores:       r.order,
		RTLSources:  appendUnique(r.rtl, project.RTLSources),
		SimSources:  appendUnique(r.sim, project.SimSources),
		Prereqs:     appendUnique(r.prereq, project.Prereqs),
		IncludeDirs: r.includes,
	}
	return build, nil
}

// resolution carries the traversal state for a single Resolve call.
type resolution struct {
	reg *registry.Registry

	visited map[string]struct{} // fully resolved cores
	onPath  map[string]struct{} // cores on the active resolution path
	path    []string            // active path, for cycle reporting

	order    []string
	rtl      []string
	sim      []string
	prereq   []string
	includes []string
}

func (r *resolution) visit(requester, name string) error {
	if _, done := r.visited[name]; done {
		return nil
	}
	if _, active := r.onPath[name]; active {
		return &CycleError{Members: closeCycle(r.path, name)}
	}

	core, ok := r.reg.Core(name)
	if !ok {
		return &UnknownCoreError{Requester: requester, Missing: name}
	}

	r.onPath[name] = struct{}{}
	r.path = append(r.path, name)

	for _, dep := range core.Deps {
		if err := r.visit(name, dep); err != nil {
			return err
		}
	}

	r.path = r.path[:len(r.path)-1]
	delete(r.onPath, name)
	r.visited[name] = struct{}{}

	// Post-order aggregation: a core's dependencies are already in the
	// aggregate by the time the core itself lands, so downstream tool
	// invocations see definitions before uses.
	r.order = append(r.order, name)
	r.rtl = appendUnique(r.rtl, core.RTLSources)
	r.sim = appendUnique(r.sim, core.SimSources)
	r.prereq = appendUnique(r.prereq, core.Prereqs)
	r.includes = appendUnique(r.includes, core.IncludeDirs)
	return nil
}

// closeCycle trims the active path to the segment starting at the repeated
// core and closes it by repeating that core at the end.
func closeCycle(path []string, repeated string) []string {
	start := 0
	for i, name := range path {
		if name == repeated {
			start = i
			break
		}
	}
	out := make([]string, 0, len(path)-start+1)
	out = append(out, path[start:]...)
	out = append(out, repeated)
	return out
}

// appendUnique appends the elements of add to dst, skipping any already
// present in dst.
func appendUnique(dst, add []string) []string {
	for _, v := range add {
		if !contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
