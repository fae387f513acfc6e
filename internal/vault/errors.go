package vault

import (
	"errors"
	"fmt"
)

// Common errors for Vault operations.
var (
	// ErrSecretNotFound indicates the secret was not found.
	ErrSecretNotFound = errors.New("vault: secret not found")

	// ErrInvalidPath indicates an invalid secret path.
	ErrInvalidPath = errors.New("vault: invalid secret path")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("vault: invalid configuration")

	// ErrSealed indicates the Vault server is sealed.
	ErrSealed = errors.New("vault: sealed")
)

// Error represents a Vault operation failure with context.
type Error struct {
	Op   string // Operation that failed
	Path string // Secret path if applicable
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("vault %s on path %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("vault %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}

// ConfigurationError reports an invalid configuration field.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("vault configuration error: %s: %s", e.Field, e.Message)
	}
	return "vault configuration error: " + e.Message
}

// Is matches ErrInvalidConfig.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}
