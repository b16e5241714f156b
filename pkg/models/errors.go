package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidTransition indicates a task status change the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// ConfigError describes a malformed agent, task or crew definition.
// It is raised at construction or parse time and never silently defaulted.
type ConfigError struct {
	// Field names the offending field, e.g. "agent.role" or "tasks[2].agent".
	Field string
	// Reason is a short human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
