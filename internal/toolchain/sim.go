package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sim builds the named testbenches with iverilog and, when run is set,
// executes each one with vvp. An empty names list means every testbench the
// project declares.
//
// A testbench name tb maps to a simulation source whose basename is tb.v;
// the compiled simulation lands in the build directory under the testbench
// name. Simulation sources see the full RTL aggregate plus the simulation
// aggregate, with SIM defined.
func (d *Driver) Sim(ctx context.Context, names []string, run bool) error {
	if len(names) == 0 {
		names = d.cfg.Testbenches
	}
	if len(names) == 0 {
		return fmt.Errorf("no testbenches requested and none declared in configuration")
	}

	if err := os.MkdirAll(d.cfg.BuildDir, 0o755); err != nil {
		return fmt.Errorf("creating build dir %q: %w", d.cfg.BuildDir, err)
	}
	if err := checkInputsExist("prerequisite", d.build.Prereqs); err != nil {
		return err
	}

	for _, name := range names {
		if err := d.simOne(ctx, name, run); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) simOne(ctx context.Context, name string, run bool) error {
	tbSource, err := d.findTestbench(name)
	if err != nil {
		return err
	}

	out := filepath.Join(d.cfg.BuildDir, name)
	inputs := []string{tbSource}
	inputs = append(inputs, d.build.RTLSources...)
	inputs = append(inputs, d.build.SimSources...)
	inputs = append(inputs, d.build.Prereqs...)

	stale, err := isStale(out, inputs)
	if err != nil {
		return err
	}
	if stale {
		args := []string{"-Wall", "-DSIM=1", "-o", out, "-s", name}
		for _, dir := range d.build.IncludeDirs {
			args = append(args, "-I"+dir)
		}
		args = append(args, tbSource)
		args = append(args, exclude(d.build.SimSources, tbSource)...)
		args = append(args, d.build.RTLSources...)

		d.logger.Printf("building testbench %s", name)
		code, err := d.runner.Run(ctx, d.cfg.Tools.Iverilog, args, "")
		if err != nil {
			return err
		}
		if code != 0 {
			return &ToolError{Stage: StageSim, Tool: d.cfg.Tools.Iverilog.Bin, ExitCode: code}
		}
	} else {
		d.logger.Printf("testbench %s up to date, skipping build", name)
	}

	if !run {
		return nil
	}

	d.logger.Printf("running testbench %s", name)
	code, err := d.runner.Run(ctx, d.cfg.Tools.VVP, []string{out}, "")
	if err != nil {
		return err
	}
	if code != 0 {
		return &ToolError{Stage: StageSim, Tool: d.cfg.Tools.VVP.Bin, ExitCode: code}
	}
	return nil
}

// findTestbench locates the simulation source defining the named testbench.
// Project sources are aggregated after core sources, so the search runs
// back to front to let a project testbench shadow a core's.
func (d *Driver) findTestbench(name string) (string, error) {
	want := name + ".v"
	for i := len(d.build.SimSources) - 1; i >= 0; i-- {
		if filepath.Base(d.build.SimSources[i]) == want {
			return d.build.SimSources[i], nil
		}
	}
	return "", fmt.Errorf("testbench %q: no simulation source named %s (have: %s)",
		name, want, strings.Join(basenames(d.build.SimSources), ", "))
}

func exclude(list []string, drop string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}

func basenames(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Base(p))
	}
	return out
}
