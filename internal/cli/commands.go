package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/no2fpga/no2build/internal/resolve"
	"github.com/no2fpga/no2build/internal/toolchain"
	"github.com/no2fpga/no2build/internal/watch"
)

func dirOf(p string) string { return filepath.Dir(p) }

func (a *App) synthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "synth",
		Short: "Run the full pipeline to a bitstream (synthesis, place-and-route, pack)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := a.load()
			if err != nil {
				return err
			}
			if err := bc.driver.Synth(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bitstream: %s\n", bc.driver.BitstreamPath())
			return nil
		},
	}
}

func (a *App) simCmd() *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "sim [testbench...]",
		Short: "Build (and optionally run) simulation testbenches",
		Long: `Builds the named testbenches with iverilog. With no arguments, builds every
testbench the project configuration declares. --run executes each compiled
testbench with vvp.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := a.load()
			if err != nil {
				return err
			}
			return bc.driver.Sim(cmd.Context(), args, run)
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "run each testbench after building it")
	return cmd
}

func (a *App) progCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prog",
		Short: "Flash the bitstream with iceprog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := a.load()
			if err != nil {
				return err
			}
			return bc.driver.Prog(cmd.Context())
		},
	}
}

func (a *App) sudoProgCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sudo-prog",
		Short: "Flash the bitstream with iceprog via sudo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := a.load()
			if err != nil {
				return err
			}
			return bc.driver.SudoProg(cmd.Context())
		},
	}
}

func (a *App) dfuProgCmd() *cobra.Command {
	var serial string
	cmd := &cobra.Command{
		Use:   "dfuprog",
		Short: "Flash the bitstream over the board's DFU bootloader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := a.load()
			if err != nil {
				return err
			}
			return bc.driver.DFUProg(cmd.Context(), serial)
		},
	}
	cmd.Flags().StringVar(&serial, "serial", "", "select the board with this DFU serial number")
	return cmd
}

func (a *App) cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the temporary build directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Cleaning must work even when a core descriptor is broken,
			// so only the configuration is loaded.
			cfg, err := a.loadConfigOnly()
			if err != nil {
				return err
			}
			return toolchain.New(cfg, &resolve.ResolvedBuild{}).Clean()
		},
	}
}

func (a *App) graphCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Write the resolved core dependency graph in Graphviz DOT format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := a.load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %q: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return resolve.WriteDOT(w, bc.project, bc.reg, bc.build)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write DOT to this file instead of stdout")
	return cmd
}

func (a *App) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the bitstream whenever a source file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := a.load()
			if err != nil {
				return err
			}

			dirs := watchDirs(bc)
			loop := &watch.Loop{Dirs: dirs}
			return loop.Run(cmd.Context(), bc.driver.Synth)
		},
	}
}

// watchDirs collects every directory that can hold build inputs: the
// resolved include dirs (core RTL locations) plus the directories of the
// project's own sources and the pin-mapping file.
func watchDirs(bc *buildContext) []string {
	var dirs []string
	dirs = append(dirs, bc.build.IncludeDirs...)
	for _, src := range bc.build.RTLSources {
		dirs = append(dirs, dirOf(src))
	}
	for _, src := range bc.build.SimSources {
		dirs = append(dirs, dirOf(src))
	}
	dirs = append(dirs, dirOf(bc.cfg.Board.PCF))
	return dirs
}
