package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/no2fpga/no2build/internal/registry"
)

// scanFixture builds a registry on disk from name -> descriptor content.
// Source files referenced by the descriptors must be created separately if
// a test cares about them; resolution itself never touches the filesystem.
func scanFixture(t *testing.T, descriptors map[string]string) *registry.Registry {
	t.Helper()
	coresDir := t.TempDir()
	for name, desc := range descriptors {
		dir := filepath.Join(coresDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, registry.DescriptorFileName), []byte(desc), 0o644); err != nil {
			t.Fatalf("write descriptor for %s: %v", name, err)
		}
	}
	reg, err := registry.Scan(coresDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	return reg
}

func TestResolve_UartFifoScenario(t *testing.T) {
	reg := scanFixture(t, map[string]string{
		"uart": "rtl:\n  - uart.v\n",
		"fifo": "deps:\n  - uart\nrtl:\n  - fifo.v\n",
	})
	project := &Project{Name: "radio", Top: "top", Deps: []string{"fifo"}}

	build, err := Resolve(project, reg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if !reflect.DeepEqual(build.Cores, []string{"uart", "fifo"}) {
		t.Errorf("cores: expected [uart fifo], got %v", build.Cores)
	}
	if len(build.RTLSources) != 2 {
		t.Fatalf("expected 2 RTL sources, got %d: %v", len(build.RTLSources), build.RTLSources)
	}
	if filepath.Base(build.RTLSources[0]) != "uart.v" || filepath.Base(build.RTLSources[1]) != "fifo.v" {
		t.Errorf("RTL closure order wrong: %v", build.RTLSources)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	reg := scanFixture(t, map[string]string{
		"a": "deps: [b, c]\nrtl: [a.v]\n",
		"b": "deps: [d]\nrtl: [b.v]\n",
		"c": "deps: [d]\nrtl: [c.v]\n",
		"d": "rtl: [d1.v, d2.v]\nsim: [d_tb.v]\n",
	})
	project := &Project{Name: "p", Top: "top", Deps: []string{"a"}}

	first, err := Resolve(project, reg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Resolve(project, reg)
		if err != nil {
			t.Fatalf("Resolve iteration %d failed: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("iteration %d: resolution differs\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

func TestResolve_DiamondIncludedOnce(t *testing.T) {
	reg := scanFixture(t, map[string]string{
		"left":   "deps: [shared]\nrtl: [left.v]\n",
		"right":  "deps: [shared]\nrtl: [right.v]\n",
		"shared": "rtl: [shared.v]\n",
	})
	project := &Project{Name: "p", Top: "top", Deps: []string{"left", "right"}}

	build, err := Resolve(project, reg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if !reflect.DeepEqual(build.Cores, []string{"shared", "left", "right"}) {
		t.Errorf("cores: expected [shared left right], got %v", build.Cores)
	}
	count := 0
	for _, src := range build.RTLSources {
		if filepath.Base(src) == "shared.v" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("shared.v contributed %d times, expected exactly once (%v)", count, build.RTLSources)
	}
}

func TestResolve_UnknownCore(t *testing.T) {
	reg := scanFixture(t, map[string]string{
		"fifo": "deps: [uart]\nrtl: [fifo.v]\n",
	})
	project := &Project{Name: "p", Top: "top", Deps: []string{"fifo"}}

	_, err := Resolve(project, reg)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrUnknownCore) {
		t.Errorf("expected ErrUnknownCore, got %v", err)
	}
	var unknownErr *UnknownCoreError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownCoreError, got %T", err)
	}
	if unknownErr.Missing != "uart" {
		t.Errorf("missing: expected uart, got %s", unknownErr.Missing)
	}
	if unknownErr.Requester != "fifo" {
		t.Errorf("requester: expected fifo, got %s", unknownErr.Requester)
	}
}

func TestResolve_UnknownDirectDepNamesProject(t *testing.T) {
	reg := scanFixture(t, nil)
	project := &Project{Name: "blinky", Top: "top", Deps: []string{"ghost"}}

	_, err := Resolve(project, reg)
	var unknownErr *UnknownCoreError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownCoreError, got %v", err)
	}
	if unknownErr.Requester != "blinky" {
		t.Errorf("requester: expected blinky, got %s", unknownErr.Requester)
	}
}

func TestResolve_CycleDetected(t *testing.T) {
	reg := scanFixture(t, map[string]string{
		"a": "deps: [b]\n",
		"b": "deps: [a]\n",
	})
	project := &Project{Name: "p", Top: "top", Deps: []string{"a"}}

	_, err := Resolve(project, reg)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrDependencyCycle) {
		t.Errorf("expected ErrDependencyCycle, got %v", err)
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %T", err)
	}
	want := []string{"a", "b", "a"}
	if !reflect.DeepEqual(cycleErr.Members, want) {
		t.Errorf("cycle members: expected %v, got %v", want, cycleErr.Members)
	}
}

func TestResolve_DiamondIsNotACycle(t *testing.T) {
	reg := scanFixture(t, map[string]string{
		"top2":   "deps: [left, right]\n",
		"left":   "deps: [shared]\n",
		"right":  "deps: [shared]\n",
		"shared": "",
	})
	project := &Project{Name: "p", Top: "top", Deps: []string{"top2"}}

	if _, err := Resolve(project, reg); err != nil {
		t.Fatalf("diamond wrongly reported as error: %v", err)
	}
}

func TestResolve_SelfDependencyIsACycle(t *testing.T) {
	reg := scanFixture(t, map[string]string{
		"narcissus": "deps: [narcissus]\n",
	})
	project := &Project{Name: "p", Top: "top", Deps: []string{"narcissus"}}

	_, err := Resolve(project, reg)
	if !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("expected ErrDependencyCycle, got %v", err)
	}
}

func TestResolve_ProjectSourcesAppendedLast(t *testing.T) {
	reg := scanFixture(t, map[string]string{
		"uart": "rtl: [uart.v]\n",
	})
	project := &Project{
		Name:       "p",
		Top:        "top",
		Deps:       []string{"uart"},
		RTLSources: []string{"/proj/top.v"},
		SimSources: []string{"/proj/tb_top.v"},
	}

	build, err := Resolve(project, reg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := build.RTLSources[len(build.RTLSources)-1]; got != "/proj/top.v" {
		t.Errorf("project RTL not last: %v", build.RTLSources)
	}
	if got := build.SimSources[len(build.SimSources)-1]; got != "/proj/tb_top.v" {
		t.Errorf("project sim source not last: %v", build.SimSources)
	}
}

func TestResolve_ClosureSupersetInvariant(t *testing.T) {
	reg := scanFixture(t, map[string]string{
		"a": "deps: [b]\n",
		"b": "deps: [c]\n",
		"c": "",
		"x": "",
	})
	project := &Project{Name: "p", Top: "top", Deps: []string{"a", "x"}}

	build, err := Resolve(project, reg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	resolved := make(map[string]bool)
	for _, name := range build.Cores {
		resolved[name] = true
	}
	for _, dep := range project.Deps {
		if !resolved[dep] {
			t.Errorf("direct dep %s missing from resolved set %v", dep, build.Cores)
		}
	}
	for _, name := range build.Cores {
		core, _ := reg.Core(name)
		for _, dep := range core.Deps {
			if !resolved[dep] {
				t.Errorf("resolved set not closed: %s requires %s, set %v", name, dep, build.Cores)
			}
		}
	}
}
