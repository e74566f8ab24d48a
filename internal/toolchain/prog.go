package toolchain

import (
	"context"
	"strconv"

	"github.com/no2fpga/no2build/internal/config"
)

// Prog flashes the bitstream with the primary programmer (iceprog). The
// bitstream is built first if stale.
func (d *Driver) Prog(ctx context.Context) error {
	return d.prog(ctx, d.cfg.Tools.Iceprog, nil)
}

// SudoProg is Prog through sudo, for hosts where the programmer needs
// elevated USB access.
func (d *Driver) SudoProg(ctx context.Context) error {
	iceprog := d.cfg.Tools.Iceprog
	sudo := config.Tool{
		Bin:  "sudo",
		Args: append([]string{iceprog.Bin}, iceprog.Args...),
	}
	return d.prog(ctx, sudo, nil)
}

func (d *Driver) prog(ctx context.Context, tool config.Tool, extra []string) error {
	if err := d.Synth(ctx); err != nil {
		return err
	}

	args := append(extra, d.BitstreamPath())
	d.logger.Printf("programming with %s", tool.Bin)
	code, err := d.runner.Run(ctx, tool, args, "")
	if err != nil {
		return err
	}
	if code != 0 {
		return &ToolError{Stage: StageProgram, Tool: tool.Bin, ExitCode: code}
	}
	return nil
}

// DFUProg flashes the bitstream over the board's DFU bootloader protocol.
// serial optionally selects one board when several are attached; empty
// means "whichever dfu-util finds".
func (d *Driver) DFUProg(ctx context.Context, serial string) error {
	if err := d.Synth(ctx); err != nil {
		return err
	}

	dfu := d.cfg.DFU
	args := []string{
		"-d", dfu.Device,
		"-a", strconv.Itoa(dfu.Alt),
	}
	if serial == "" {
		serial = dfu.Serial
	}
	if serial != "" {
		args = append(args, "-S", serial)
	}
	args = append(args, "-D", d.BitstreamPath(), "-R")

	d.logger.Printf("programming via DFU with %s", d.cfg.Tools.DFUUtil.Bin)
	code, err := d.runner.Run(ctx, d.cfg.Tools.DFUUtil, args, "")
	if err != nil {
		return err
	}
	if code != 0 {
		return &ToolError{Stage: StageProgram, Tool: d.cfg.Tools.DFUUtil.Bin, ExitCode: code}
	}
	return nil
}
