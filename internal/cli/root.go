// Package cli wires the no2build command tree.
//
// Every build command goes through the same sequence: load configuration,
// scan the core registry, resolve the project's dependency closure, then
// hand the aggregate to the toolchain driver. Commands differ only in which
// driver action they invoke.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/no2fpga/no2build/internal/config"
	"github.com/no2fpga/no2build/internal/registry"
	"github.com/no2fpga/no2build/internal/resolve"
	"github.com/no2fpga/no2build/internal/toolchain"
)

// rootFlags are the persistent flags shared by every command. They override
// the project's no2build.yaml and any NO2BUILD_* environment variables.
type rootFlags struct {
	projectDir string
	coresDir   string
	buildDir   string
	board      string
	device     string
	pkg        string
	pcf        string
	placer     string
}

// App is the assembled command tree.
type App struct {
	root  *cobra.Command
	flags rootFlags

	// parsed flips once cobra has accepted the invocation (command found,
	// flags parsed, arguments validated). Errors raised before that point
	// are invocation errors, not build failures.
	parsed bool
}

// NewApp builds the no2build command tree writing output to out/errOut.
func NewApp(out, errOut io.Writer) *App {
	app := &App{}

	root := &cobra.Command{
		Use:   "no2build",
		Short: "Build orchestrator for the open-source iCE40 FPGA flow",
		Long: `no2build resolves dependencies between reusable HDL cores and drives the
open-source iCE40 toolchain: yosys synthesis, nextpnr place-and-route,
icepack bitstream packing, iceprog/dfu-util programming, and iverilog
simulation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.parsed = true
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&app.flags.projectDir, "project-dir", "C", ".", "project directory (holds no2build.yaml)")
	pf.StringVar(&app.flags.coresDir, "cores-dir", "", "cores directory to scan (default: <project>/cores)")
	pf.StringVar(&app.flags.buildDir, "build-dir", "", "temporary build directory (default: <project>/build-tmp)")
	pf.StringVar(&app.flags.board, "board", "", "target board name")
	pf.StringVar(&app.flags.device, "device", "", "FPGA device (e.g. up5k)")
	pf.StringVar(&app.flags.pkg, "package", "", "device package (e.g. sg48)")
	pf.StringVar(&app.flags.pcf, "pcf", "", "board pin-mapping file")
	pf.StringVar(&app.flags.placer, "placer", "", "nextpnr placer heuristic (heap|sa)")

	root.AddCommand(
		app.synthCmd(),
		app.simCmd(),
		app.progCmd(),
		app.sudoProgCmd(),
		app.dfuProgCmd(),
		app.cleanCmd(),
		app.graphCmd(),
		app.watchCmd(),
	)

	app.root = root
	return app
}

// Execute parses args and runs the selected command, returning the process
// exit code. Errors are printed to the error stream.
func (a *App) Execute(ctx context.Context, args []string) int {
	a.root.SetArgs(args)
	if err := a.root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(a.root.ErrOrStderr(), "no2build:", err)
		if !a.parsed {
			return ExitInvalidInvocation
		}
		return ExitCode(err)
	}
	return ExitSuccess
}

// buildContext is everything a command needs after the common load sequence.
type buildContext struct {
	cfg     *config.Config
	reg     *registry.Registry
	project *resolve.Project
	build   *resolve.ResolvedBuild
	driver  *toolchain.Driver
}

// load runs the common sequence: configuration, registry scan, resolution.
func (a *App) load() (*buildContext, error) {
	cfg, err := config.Load(a.flags.projectDir, config.Overrides{
		CoresDir: a.flags.coresDir,
		BuildDir: a.flags.buildDir,
		Board:    a.flags.board,
		Device:   a.flags.device,
		Package:  a.flags.pkg,
		PCF:      a.flags.pcf,
		Placer:   a.flags.placer,
	})
	if err != nil {
		return nil, err
	}

	reg, err := registry.Scan(cfg.CoresDir)
	if err != nil {
		return nil, err
	}

	project := projectFromConfig(cfg)
	build, err := resolve.Resolve(project, reg)
	if err != nil {
		return nil, err
	}

	return &buildContext{
		cfg:     cfg,
		reg:     reg,
		project: project,
		build:   build,
		driver:  toolchain.New(cfg, build),
	}, nil
}

// loadConfigOnly skips registry scanning and resolution, for commands that
// touch only the build directory.
func (a *App) loadConfigOnly() (*config.Config, error) {
	return config.Load(a.flags.projectDir, config.Overrides{
		CoresDir: a.flags.coresDir,
		BuildDir: a.flags.buildDir,
		Board:    a.flags.board,
		Device:   a.flags.device,
		Package:  a.flags.pkg,
		PCF:      a.flags.pcf,
		Placer:   a.flags.placer,
	})
}

func projectFromConfig(cfg *config.Config) *resolve.Project {
	return &resolve.Project{
		Name:       cfg.Name,
		Top:        cfg.Top,
		Deps:       cfg.Deps,
		RTLSources: cfg.RTL,
		SimSources: cfg.Sim,
		Prereqs:    cfg.Prereq,
	}
}

// Main is the process entry point used by cmd/no2build.
func Main() {
	app := NewApp(os.Stdout, os.Stderr)
	os.Exit(app.Execute(context.Background(), os.Args[1:]))
}
