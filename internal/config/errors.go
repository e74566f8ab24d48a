package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks any configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// InvalidConfigError names the offending key, when one is identifiable.
type InvalidConfigError struct {
	Key    string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidConfig.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig.Error(), e.Key, e.Reason)
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func invalidf(key, format string, args ...any) error {
	return &InvalidConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}
