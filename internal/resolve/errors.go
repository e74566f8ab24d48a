package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCore marks a dependency name absent from the registry.
var ErrUnknownCore = errors.New("unknown core")

// ErrDependencyCycle marks a dependency cycle among cores.
var ErrDependencyCycle = errors.New("dependency cycle")

// UnknownCoreError reports a dependency on a core the registry does not
// contain, naming whoever asked for it.
type UnknownCoreError struct {
	// Requester is the core (or project) whose dependency list names the
	// missing core.
	Requester string
	// Missing is the name that could not be found.
	Missing string
}

func (e *UnknownCoreError) Error() string {
	return fmt.Sprintf("%s: %q (required by %s)", ErrUnknownCore.Error(), e.Missing, e.Requester)
}

func (e *UnknownCoreError) Unwrap() error { return ErrUnknownCore }

// CycleError reports a dependency cycle. Members lists the cycle in path
// order, closed (first element repeated at the end).
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDependencyCycle.Error(), strings.Join(e.Members, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrDependencyCycle }
