package cli

import (
	"errors"

	"github.com/no2fpga/no2build/internal/config"
	"github.com/no2fpga/no2build/internal/registry"
	"github.com/no2fpga/no2build/internal/resolve"
	"github.com/no2fpga/no2build/internal/toolchain"
)

// Semantic exit codes. External tool failures override these with the
// tool's own exit status when it is meaningful.
const (
	ExitSuccess           = 0
	ExitBuildFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// ExitCode maps an error to the process exit status.
//
// A failing external tool propagates its own exit code so scripts wrapping
// no2build see exactly what they would have seen running the tool by hand.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var toolErr *toolchain.ToolError
	if errors.As(err, &toolErr) {
		if toolErr.ExitCode > 0 {
			return toolErr.ExitCode
		}
		return ExitBuildFailure
	}

	switch {
	case errors.Is(err, config.ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, registry.ErrMalformedDescriptor),
		errors.Is(err, resolve.ErrUnknownCore),
		errors.Is(err, resolve.ErrDependencyCycle):
		return ExitBuildFailure
	}
	return ExitInternalError
}
