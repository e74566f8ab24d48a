// Package toolchain sequences the external iCE40 flow: yosys synthesis,
// nextpnr place-and-route, icepack bitstream packing, plus the programming
// and simulation entry points.
//
// The driver is single-threaded and synchronous; each stage blocks on its
// external tool. Per-stage mtime staleness (stale -> rebuild, fresh -> skip)
// is the only state. Concurrent builds of different projects must use
// distinct build directories; the driver does not enforce that.
package toolchain

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/no2fpga/no2build/internal/config"
	"github.com/no2fpga/no2build/internal/resolve"
)

// Driver runs the toolchain for one resolved project build.
type Driver struct {
	cfg    *config.Config
	build  *resolve.ResolvedBuild
	runner *Runner
	logger *log.Logger
}

// New creates a Driver for the given configuration and resolved build.
func New(cfg *config.Config, build *resolve.ResolvedBuild) *Driver {
	return &Driver{
		cfg:    cfg,
		build:  build,
		runner: NewRunner(cfg.ProjectDir),
		logger: log.New(os.Stdout, "no2build: ", 0),
	}
}

// Artifact paths, all under the build directory.

func (d *Driver) scriptPath() string  { return filepath.Join(d.cfg.BuildDir, d.cfg.Top+".ys") }
func (d *Driver) netlistPath() string { return filepath.Join(d.cfg.BuildDir, d.cfg.Top+".json") }
func (d *Driver) ascPath() string     { return filepath.Join(d.cfg.BuildDir, d.cfg.Top+".asc") }

// BitstreamPath is the final binary image produced by the pipeline.
func (d *Driver) BitstreamPath() string { return filepath.Join(d.cfg.BuildDir, d.cfg.Top+".bin") }

func (d *Driver) stageLog(stage string) string {
	return filepath.Join(d.cfg.BuildDir, fmt.Sprintf("%s.%s.log", d.cfg.Top, stage))
}

// Synth runs the full pipeline to a bitstream: script emission, synthesis,
// place-and-route, packing. Fresh stages are skipped; the first failing
// stage aborts the pipeline with a ToolError and later stages never run.
func (d *Driver) Synth(ctx context.Context) error {
	if err := os.MkdirAll(d.cfg.BuildDir, 0o755); err != nil {
		return fmt.Errorf("creating build dir %q: %w", d.cfg.BuildDir, err)
	}
	if err := checkInputsExist("prerequisite", d.build.Prereqs); err != nil {
		return err
	}
	if err := checkInputsExist("RTL source", d.build.RTLSources); err != nil {
		return err
	}

	if err := d.emitScript(); err != nil {
		return err
	}
	if err := d.runSynthesis(ctx); err != nil {
		return err
	}
	if err := d.runPNR(ctx); err != nil {
		return err
	}
	return d.runPack(ctx)
}

func (d *Driver) emitScript() error {
	binding := &synthScriptBinding{
		Project:     d.cfg.Name,
		Top:         d.cfg.Top,
		IncludeDirs: d.build.IncludeDirs,
		Sources:     d.build.RTLSources,
		Netlist:     d.netlistPath(),
		DSP:         deviceHasDSP(d.cfg.Board.Device),
	}
	return writeSynthScript(d.scriptPath(), binding)
}

func (d *Driver) runSynthesis(ctx context.Context) error {
	inputs := append([]string{d.scriptPath()}, d.build.RTLSources...)
	inputs = append(inputs, d.build.Prereqs...)
	stale, err := isStale(d.netlistPath(), inputs)
	if err != nil {
		return err
	}
	if !stale {
		d.logger.Printf("synthesis up to date, skipping")
		return nil
	}

	logPath := d.stageLog("synth")
	d.logger.Printf("synthesizing %s (log: %s)", d.cfg.Top, logPath)
	code, err := d.runner.Run(ctx, d.cfg.Tools.Yosys, []string{"-ql", logPath, d.scriptPath()}, "")
	if err != nil {
		return err
	}
	if code != 0 {
		return &ToolError{Stage: StageSynthesis, Tool: d.cfg.Tools.Yosys.Bin, ExitCode: code, LogPath: logPath}
	}
	return nil
}

func (d *Driver) runPNR(ctx context.Context) error {
	if err := checkInputsExist("pin-mapping file", []string{d.cfg.Board.PCF}); err != nil {
		return err
	}
	stale, err := isStale(d.ascPath(), []string{d.netlistPath(), d.cfg.Board.PCF})
	if err != nil {
		return err
	}
	if !stale {
		d.logger.Printf("place-and-route up to date, skipping")
		return nil
	}

	logPath := d.stageLog("pnr")
	args := []string{
		"--" + d.cfg.Board.Device,
		"--package", d.cfg.Board.Package,
		"--json", d.netlistPath(),
		"--pcf", d.cfg.Board.PCF,
		"--asc", d.ascPath(),
		"--placer", d.cfg.PNR.Placer,
		"--log", logPath,
	}
	if d.cfg.PNR.Freq > 0 {
		args = append(args, "--freq", strconv.FormatFloat(d.cfg.PNR.Freq, 'g', -1, 64))
	}

	d.logger.Printf("placing and routing %s (log: %s)", d.cfg.Top, logPath)
	code, err := d.runner.Run(ctx, d.cfg.Tools.NextPNR, args, "")
	if err != nil {
		return err
	}
	if code != 0 {
		return &ToolError{Stage: StagePNR, Tool: d.cfg.Tools.NextPNR.Bin, ExitCode: code, LogPath: logPath}
	}
	return nil
}

func (d *Driver) runPack(ctx context.Context) error {
	stale, err := isStale(d.BitstreamPath(), []string{d.ascPath()})
	if err != nil {
		return err
	}
	if !stale {
		d.logger.Printf("bitstream up to date, skipping")
		return nil
	}

	d.logger.Printf("packing bitstream %s", d.BitstreamPath())
	code, err := d.runner.Run(ctx, d.cfg.Tools.Icepack, []string{d.ascPath(), d.BitstreamPath()}, "")
	if err != nil {
		return err
	}
	if code != 0 {
		return &ToolError{Stage: StagePack, Tool: d.cfg.Tools.Icepack.Bin, ExitCode: code}
	}
	return nil
}

// Clean removes the build directory and everything under it. Cleaning an
// already-clean tree is a successful no-op.
func (d *Driver) Clean() error {
	if err := os.RemoveAll(d.cfg.BuildDir); err != nil {
		return fmt.Errorf("removing build dir %q: %w", d.cfg.BuildDir, err)
	}
	return nil
}
