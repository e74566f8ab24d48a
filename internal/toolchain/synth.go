package toolchain

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

// synthScriptTpl is the yosys synthesis script. Source ordering follows the
// resolved closure, so every core's definitions are read before its
// dependents'.
var synthScriptTpl = template.Must(template.New("synth").Parse(
	`# GENERATED FILE, DO NOT EDIT
# Synthesis script for project "{{ .Project }}"
# Top module: {{ .Top }}

{{ range .IncludeDirs -}}
verilog_defaults -add -I{{ . }}
{{ end -}}
{{ range .Sources -}}
read_verilog {{ . }}
{{ end }}
synth_ice40{{ if .DSP }} -dsp{{ end }} -top {{ .Top }} -json {{ .Netlist }}
`))

// synthScriptBinding is the template input for synthScriptTpl.
type synthScriptBinding struct {
	Project     string
	Top         string
	IncludeDirs []string
	Sources     []string
	Netlist     string
	// DSP enables DSP block inference on devices that have them.
	DSP bool
}

// deviceHasDSP reports whether the device family provides DSP blocks.
func deviceHasDSP(device string) bool {
	switch device {
	case "up5k", "u4k":
		return true
	}
	return false
}

// writeSynthScript renders the synthesis script to path, leaving the file
// untouched when its content is already current so the mtime-based
// staleness check stays meaningful.
func writeSynthScript(path string, binding *synthScriptBinding) error {
	var buf bytes.Buffer
	if err := synthScriptTpl.Execute(&buf, binding); err != nil {
		return fmt.Errorf("rendering synthesis script: %w", err)
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, buf.Bytes()) {
		return nil
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing synthesis script %q: %w", path, err)
	}
	return nil
}
