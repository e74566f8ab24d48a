package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+".yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad_KnownBoardDefaults(t *testing.T) {
	dir := writeProject(t, `
top: top_blinky
deps: [uart]
rtl: [rtl/top.v]
board:
  name: icebreaker
`)

	cfg, err := Load(dir, Overrides{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Board.Device != "up5k" {
		t.Errorf("device: expected up5k, got %s", cfg.Board.Device)
	}
	if cfg.Board.Package != "sg48" {
		t.Errorf("package: expected sg48, got %s", cfg.Board.Package)
	}
	wantPCF := filepath.Join(dir, "data", "icebreaker.pcf")
	if cfg.Board.PCF != wantPCF {
		t.Errorf("pcf: expected %s, got %s", wantPCF, cfg.Board.PCF)
	}
	if cfg.Name != filepath.Base(dir) {
		t.Errorf("name: expected %s, got %s", filepath.Base(dir), cfg.Name)
	}
}

func TestLoad_ToolAndPNRDefaults(t *testing.T) {
	dir := writeProject(t, "top: t\nboard: {name: icebreaker}\n")

	cfg, err := Load(dir, Overrides{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tools.Yosys.Bin != "yosys" {
		t.Errorf("yosys bin: got %s", cfg.Tools.Yosys.Bin)
	}
	if cfg.Tools.NextPNR.Bin != "nextpnr-ice40" {
		t.Errorf("nextpnr bin: got %s", cfg.Tools.NextPNR.Bin)
	}
	if cfg.Tools.DFUUtil.Bin != "dfu-util" {
		t.Errorf("dfu-util bin: got %s", cfg.Tools.DFUUtil.Bin)
	}
	if cfg.PNR.Placer != "heap" {
		t.Errorf("placer: expected heap, got %s", cfg.PNR.Placer)
	}
	if cfg.DFU.Device != "1d50:6146" {
		t.Errorf("dfu device: got %s", cfg.DFU.Device)
	}
	if cfg.BuildDir != filepath.Join(dir, "build-tmp") {
		t.Errorf("build dir: got %s", cfg.BuildDir)
	}
	if cfg.CoresDir != filepath.Join(dir, "cores") {
		t.Errorf("cores dir: got %s", cfg.CoresDir)
	}
}

func TestLoad_FileValuesRespected(t *testing.T) {
	dir := writeProject(t, `
top: soc
board:
  name: custom
  device: hx8k
  package: ct256
  pcf: pins/custom.pcf
tools:
  yosys:
    bin: /opt/fpga/bin/yosys
    args: ["-v", "2"]
pnr:
  placer: sa
  freq: 48
`)

	cfg, err := Load(dir, Overrides{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Board.Device != "hx8k" || cfg.Board.Package != "ct256" {
		t.Errorf("board: got %+v", cfg.Board)
	}
	if cfg.Board.PCF != filepath.Join(dir, "pins", "custom.pcf") {
		t.Errorf("pcf: got %s", cfg.Board.PCF)
	}
	if cfg.Tools.Yosys.Bin != "/opt/fpga/bin/yosys" {
		t.Errorf("yosys bin: got %s", cfg.Tools.Yosys.Bin)
	}
	if len(cfg.Tools.Yosys.Args) != 2 {
		t.Errorf("yosys args: got %v", cfg.Tools.Yosys.Args)
	}
	if cfg.PNR.Placer != "sa" || cfg.PNR.Freq != 48 {
		t.Errorf("pnr: got %+v", cfg.PNR)
	}
}

func TestLoad_FlagOverridesWin(t *testing.T) {
	dir := writeProject(t, "top: t\nboard: {name: icebreaker}\n")

	cfg, err := Load(dir, Overrides{
		Board:  "icestick",
		Placer: "sa",
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Board.Name != "icestick" {
		t.Errorf("board: expected icestick, got %s", cfg.Board.Name)
	}
	// Switching board must re-derive the hardware identifiers.
	if cfg.Board.Device != "hx1k" || cfg.Board.Package != "tq144" {
		t.Errorf("board defaults not refilled: %+v", cfg.Board)
	}
	if cfg.PNR.Placer != "sa" {
		t.Errorf("placer: expected sa, got %s", cfg.PNR.Placer)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		ov      Overrides
		wantKey string
	}{
		{"missing top", "board: {name: icebreaker}\n", Overrides{}, "top"},
		{"unknown board no device", "top: t\nboard: {name: mystery}\n", Overrides{}, "board.device"},
		{"bad placer", "top: t\nboard: {name: icebreaker}\npnr: {placer: quantum}\n", Overrides{}, "pnr.placer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeProject(t, tt.content)
			_, err := Load(dir, tt.ov)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			var cfgErr *InvalidConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected InvalidConfigError, got %T", err)
			}
			if cfgErr.Key != tt.wantKey {
				t.Errorf("key: expected %s, got %s", tt.wantKey, cfgErr.Key)
			}
		})
	}
}

func TestLoad_NoConfigFileUsesFlags(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir, Overrides{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without a config file, got %v", err)
	}
}

func TestLoad_EnvOnlyProject(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NO2BUILD_TOP", "top_env")
	t.Setenv("NO2BUILD_BOARD_NAME", "icebreaker")
	t.Setenv("NO2BUILD_DEPS", "uart,fifo")

	cfg, err := Load(dir, Overrides{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Top != "top_env" {
		t.Errorf("top: expected top_env, got %s", cfg.Top)
	}
	if cfg.Board.Device != "up5k" || cfg.Board.Package != "sg48" {
		t.Errorf("board defaults not filled from env board name: %+v", cfg.Board)
	}
	if len(cfg.Deps) != 2 || cfg.Deps[0] != "uart" || cfg.Deps[1] != "fifo" {
		t.Errorf("deps: expected [uart fifo], got %v", cfg.Deps)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := writeProject(t, "top: from_file\nboard: {name: icebreaker}\n")
	t.Setenv("NO2BUILD_TOP", "from_env")
	t.Setenv("NO2BUILD_PNR_PLACER", "sa")

	cfg, err := Load(dir, Overrides{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Top != "from_env" {
		t.Errorf("top: expected from_env, got %s", cfg.Top)
	}
	if cfg.PNR.Placer != "sa" {
		t.Errorf("placer: expected sa, got %s", cfg.PNR.Placer)
	}
}

func TestLoad_ProjectSourcesResolved(t *testing.T) {
	dir := writeProject(t, `
top: t
board: {name: icebreaker}
rtl: [rtl/top.v]
sim: [sim/tb_top.v]
prereq: [gen/version.vh]
`)

	cfg, err := Load(dir, Overrides{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RTL[0] != filepath.Join(dir, "rtl", "top.v") {
		t.Errorf("rtl not resolved: %v", cfg.RTL)
	}
	if cfg.Sim[0] != filepath.Join(dir, "sim", "tb_top.v") {
		t.Errorf("sim not resolved: %v", cfg.Sim)
	}
	if cfg.Prereq[0] != filepath.Join(dir, "gen", "version.vh") {
		t.Errorf("prereq not resolved: %v", cfg.Prereq)
	}
}
