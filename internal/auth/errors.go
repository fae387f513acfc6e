package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication operations.
var (
	// ErrNoCredentials indicates that no API key was provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrAuthenticationFailed indicates that the authority rejected the key.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAuthorityUnavailable indicates that the authority could not reach a verdict.
	ErrAuthorityUnavailable = errors.New("authentication authority unavailable")

	// ErrNilAuthority is returned when a gate is built without an authority.
	ErrNilAuthority = errors.New("authority is required")

	// ErrInvalidGrant indicates a granted result without an authenticated token.
	ErrInvalidGrant = errors.New("authority granted without an authenticated token")
)

// AuthenticationError describes why a request was not allowed to proceed.
type AuthenticationError struct {
	Outcome Outcome
	Reason  string
	Cause   error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication %s: %s: %v", e.Outcome, e.Reason, e.Cause)
	}
	return fmt.Sprintf("authentication %s: %s", e.Outcome, e.Reason)
}

// Unwrap returns the underlying error.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the outcome.
func (e *AuthenticationError) Is(target error) bool {
	switch e.Outcome {
	case OutcomeUnauthorized:
		return target == ErrNoCredentials
	case OutcomeForbidden:
		return target == ErrAuthenticationFailed
	case OutcomeUnavailable:
		return target == ErrAuthorityUnavailable
	default:
		return false
	}
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
