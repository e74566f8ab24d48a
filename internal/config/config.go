// Package config loads project, board, and toolchain configuration.
//
// Configuration comes from the project's no2build.yaml, overridable through
// NO2BUILD_* environment variables and CLI flags (flags win). Board
// identifiers for boards this package knows about expand to their device,
// package, and pin-mapping defaults, so a project targeting a stock board
// only names the board.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFileName is the project configuration file, without extension.
const ConfigFileName = "no2build"

// Tool is one external toolchain binary plus any extra arguments inserted
// before the driver's own.
type Tool struct {
	Bin  string   `mapstructure:"bin"`
	Args []string `mapstructure:"args"`
}

// Tools holds the external binaries the driver shells out to.
type Tools struct {
	Yosys    Tool `mapstructure:"yosys"`
	NextPNR  Tool `mapstructure:"nextpnr"`
	Icepack  Tool `mapstructure:"icepack"`
	Iceprog  Tool `mapstructure:"iceprog"`
	DFUUtil  Tool `mapstructure:"dfu_util"`
	Iverilog Tool `mapstructure:"iverilog"`
	VVP      Tool `mapstructure:"vvp"`
}

// Board identifies the target hardware.
type Board struct {
	Name string `mapstructure:"name"`
	// Device is the FPGA device (e.g. up5k, hx8k).
	Device string `mapstructure:"device"`
	// Package is the device package (e.g. sg48, ct256).
	Package string `mapstructure:"package"`
	// PCF is the board's pin-mapping file, consumed opaquely by
	// place-and-route.
	PCF string `mapstructure:"pcf"`
}

// PNR holds placer/router options.
type PNR struct {
	// Placer selects the nextpnr placement heuristic: "heap" or "sa".
	Placer string `mapstructure:"placer"`
	// Freq is the target clock frequency in MHz; 0 leaves it to the tool.
	Freq float64 `mapstructure:"freq"`
}

// DFU holds dfu-util programming options.
type DFU struct {
	// Device is the USB vid:pid filter.
	Device string `mapstructure:"device"`
	// Alt is the altsetting holding the bitstream.
	Alt int `mapstructure:"alt"`
	// Serial optionally selects one board when several are attached.
	Serial string `mapstructure:"serial"`
}

// Config is the fully loaded project configuration. Immutable once Load
// returns.
type Config struct {
	// Name identifies the project; defaults to the project directory name.
	Name string `mapstructure:"name"`
	// Top is the top-level module handed to synthesis. Required.
	Top string `mapstructure:"top"`

	// Deps are the project's direct core dependencies.
	Deps []string `mapstructure:"deps"`
	// RTL, Sim, Prereq are the project's own sources, relative to the
	// project directory.
	RTL    []string `mapstructure:"rtl"`
	Sim    []string `mapstructure:"sim"`
	Prereq []string `mapstructure:"prereq"`
	// Testbenches are the named simulation entry points (top modules of
	// tb_*.v files) runnable via the sim action.
	Testbenches []string `mapstructure:"testbenches"`

	Board Board `mapstructure:"board"`
	Tools Tools `mapstructure:"tools"`
	PNR   PNR   `mapstructure:"pnr"`
	DFU   DFU   `mapstructure:"dfu"`

	// ProjectDir is the directory no2build.yaml was loaded from. Absolute.
	ProjectDir string `mapstructure:"-"`
	// CoresDir is the cores directory to scan. Absolute.
	CoresDir string `mapstructure:"cores_dir"`
	// BuildDir is the temporary build directory. Absolute.
	BuildDir string `mapstructure:"build_dir"`
}

// knownBoards maps stock board names to their device/package defaults. The
// pin-mapping default is data/<board>.pcf under the project directory.
var knownBoards = map[string]Board{
	"icebreaker": {Device: "up5k", Package: "sg48"},
	"bitsy-v0":   {Device: "up5k", Package: "sg48"},
	"bitsy-v1":   {Device: "up5k", Package: "sg48"},
	"fomu-pvt":   {Device: "up5k", Package: "uwg30"},
	"icestick":   {Device: "hx1k", Package: "tq144"},
	"ice40-hx8k": {Device: "hx8k", Package: "ct256"},
}

// Overrides carries CLI-flag values that take precedence over the file and
// the environment. Zero values mean "not set".
type Overrides struct {
	CoresDir string
	BuildDir string
	Board    string
	Device   string
	Package  string
	PCF      string
	Placer   string
}

// Load reads the project configuration from projectDir, applies environment
// and CLI overrides, fills board defaults, and validates the result.
func Load(projectDir string, ov Overrides) (*Config, error) {
	absProject, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project dir %q: %w", projectDir, err)
	}

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(absProject)
	v.SetEnvPrefix("NO2BUILD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	setToolDefaults(v)
	v.SetDefault("pnr.placer", "heap")
	v.SetDefault("dfu.device", "1d50:6146")
	v.SetDefault("dfu.alt", 0)
	v.SetDefault("cores_dir", "cores")
	v.SetDefault("build_dir", "build-tmp")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, invalidf("", "reading %s.yaml in %s: %v", ConfigFileName, projectDir, err)
		}
		// No config file: flags and environment must carry everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, invalidf("", "decoding configuration: %v", err)
	}
	cfg.ProjectDir = absProject

	applyOverrides(&cfg, ov)
	if cfg.Name == "" {
		cfg.Name = filepath.Base(absProject)
	}
	fillBoardDefaults(&cfg)
	resolvePaths(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnvKeys registers every configuration key with viper. AutomaticEnv
// only consults the environment for keys viper already knows from the file
// or the defaults, so keys without a default (top, board.name, ...) must be
// bound explicitly or their NO2BUILD_* variables would be ignored.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"name", "top",
		"deps", "rtl", "sim", "prereq", "testbenches",
		"board.name", "board.device", "board.package", "board.pcf",
		"pnr.placer", "pnr.freq",
		"dfu.device", "dfu.alt", "dfu.serial",
		"cores_dir", "build_dir",
	}
	for _, tool := range []string{"yosys", "nextpnr", "icepack", "iceprog", "dfu_util", "iverilog", "vvp"} {
		keys = append(keys, "tools."+tool+".bin", "tools."+tool+".args")
	}
	for _, key := range keys {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key)
	}
}

func setToolDefaults(v *viper.Viper) {
	v.SetDefault("tools.yosys.bin", "yosys")
	v.SetDefault("tools.nextpnr.bin", "nextpnr-ice40")
	v.SetDefault("tools.icepack.bin", "icepack")
	v.SetDefault("tools.iceprog.bin", "iceprog")
	v.SetDefault("tools.dfu_util.bin", "dfu-util")
	v.SetDefault("tools.iverilog.bin", "iverilog")
	v.SetDefault("tools.vvp.bin", "vvp")
}

func applyOverrides(cfg *Config, ov Overrides) {
	if ov.CoresDir != "" {
		cfg.CoresDir = ov.CoresDir
	}
	if ov.BuildDir != "" {
		cfg.BuildDir = ov.BuildDir
	}
	if ov.Board != "" {
		cfg.Board.Name = ov.Board
		// Switching board invalidates file-supplied hardware identifiers;
		// they are refilled from the board table or later overrides.
		cfg.Board.Device = ""
		cfg.Board.Package = ""
		cfg.Board.PCF = ""
	}
	if ov.Device != "" {
		cfg.Board.Device = ov.Device
	}
	if ov.Package != "" {
		cfg.Board.Package = ov.Package
	}
	if ov.PCF != "" {
		cfg.Board.PCF = ov.PCF
	}
	if ov.Placer != "" {
		cfg.PNR.Placer = ov.Placer
	}
}

func fillBoardDefaults(cfg *Config) {
	defaults, ok := knownBoards[cfg.Board.Name]
	if !ok {
		return
	}
	if cfg.Board.Device == "" {
		cfg.Board.Device = defaults.Device
	}
	if cfg.Board.Package == "" {
		cfg.Board.Package = defaults.Package
	}
	if cfg.Board.PCF == "" {
		cfg.Board.PCF = filepath.Join("data", cfg.Board.Name+".pcf")
	}
}

// resolvePaths anchors all relative paths at the project directory.
func resolvePaths(cfg *Config) {
	cfg.CoresDir = resolveUnder(cfg.ProjectDir, cfg.CoresDir)
	cfg.BuildDir = resolveUnder(cfg.ProjectDir, cfg.BuildDir)
	if cfg.Board.PCF != "" {
		cfg.Board.PCF = resolveUnder(cfg.ProjectDir, cfg.Board.PCF)
	}
	cfg.RTL = resolveAllUnder(cfg.ProjectDir, cfg.RTL)
	cfg.Sim = resolveAllUnder(cfg.ProjectDir, cfg.Sim)
	cfg.Prereq = resolveAllUnder(cfg.ProjectDir, cfg.Prereq)
}

func resolveUnder(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(base, p))
}

func resolveAllUnder(base string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, resolveUnder(base, p))
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.Top == "" {
		return invalidf("top", "top-level module name is required")
	}
	if cfg.Board.Device == "" {
		return invalidf("board.device", "device is required (unknown board %q)", cfg.Board.Name)
	}
	if cfg.Board.Package == "" {
		return invalidf("board.package", "package is required (unknown board %q)", cfg.Board.Name)
	}
	if cfg.Board.PCF == "" {
		return invalidf("board.pcf", "pin-mapping file is required (unknown board %q)", cfg.Board.Name)
	}
	switch cfg.PNR.Placer {
	case "heap", "sa":
	default:
		return invalidf("pnr.placer", "invalid placer %q (expected heap|sa)", cfg.PNR.Placer)
	}
	return nil
}
