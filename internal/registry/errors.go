package registry

import (
	"errors"
	"fmt"
)

// ErrMalformedDescriptor marks any failure to parse or validate a core
// descriptor. Match with errors.Is.
var ErrMalformedDescriptor = errors.New("malformed core descriptor")

// MalformedDescriptorError reports a descriptor the scanner could not use,
// naming the offending file.
type MalformedDescriptorError struct {
	// Path is the descriptor file that failed.
	Path string
	// Reason describes what was wrong.
	Reason string
	// Err is the underlying parse error, if any.
	Err error
}

func (e *MalformedDescriptorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedDescriptor.Error(), e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedDescriptor.Error(), e.Path, e.Reason)
}

func (e *MalformedDescriptorError) Unwrap() error { return ErrMalformedDescriptor }

func malformedf(path string, format string, args ...any) error {
	return &MalformedDescriptorError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
