package toolchain

import (
	"errors"
	"fmt"
)

// ErrToolFailure marks a pipeline stage whose external tool exited non-zero.
var ErrToolFailure = errors.New("external tool failed")

// Stage names one pipeline stage for diagnostics.
type Stage string

const (
	StageSynthesis Stage = "synthesis"
	StagePNR       Stage = "place-and-route"
	StagePack      Stage = "bitstream-pack"
	StageProgram   Stage = "program"
	StageSim       Stage = "simulation"
)

// ToolError reports a failed external tool invocation: which stage, which
// tool, its exit status, and where its own diagnostics went.
type ToolError struct {
	Stage    Stage
	Tool     string
	ExitCode int
	// LogPath is the tool's log file, empty when output went to the console.
	LogPath string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %s stage: %s exited with status %d",
		ErrToolFailure.Error(), e.Stage, e.Tool, e.ExitCode)
	if e.LogPath != "" {
		msg += fmt.Sprintf(" (see %s)", e.LogPath)
	}
	return msg
}

func (e *ToolError) Unwrap() error { return ErrToolFailure }
