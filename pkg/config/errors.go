package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidYAML indicates YAML parsing failed
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrValidationFailed indicates configuration validation failed
	ErrValidationFailed = errors.New("configuration validation failed")

	// ErrProviderNotFound indicates a provider was not found in the registry
	ErrProviderNotFound = errors.New("provider not found")

	// ErrTierNotFound indicates a production tier has no configured defaults
	ErrTierNotFound = errors.New("tier defaults not found")
)

// ValidationError wraps configuration validation errors with context
type ValidationError struct {
	Component string // Component being validated (system, budget, tier, provider)
	ID        string // ID of the component (optional)
	Field     string // Field name (optional)
	Err       error  // Underlying error
}

// Error returns formatted error message
func (e *ValidationError) Error() string {
	switch {
	case e.ID != "" && e.Field != "":
		return fmt.Sprintf("%s %q field %q: %v", e.Component, e.ID, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s field %q: %v", e.Component, e.Field, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Component, e.Err)
	}
}

// Unwrap returns the underlying error for errors.Is checks
func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(component, id, field string, err error) error {
	return &ValidationError{Component: component, ID: id, Field: field, Err: err}
}
