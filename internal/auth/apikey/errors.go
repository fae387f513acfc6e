package apikey

import "errors"

// Common errors for API key stores.
var (
	// ErrKeyNotFound indicates that no record matches the key.
	ErrKeyNotFound = errors.New("API key not found")

	// ErrUnsupportedHash indicates an unknown hash algorithm.
	ErrUnsupportedHash = errors.New("unsupported hash algorithm")

	// ErrNonDeterministicHash indicates a hash algorithm that cannot index a store.
	ErrNonDeterministicHash = errors.New("hash algorithm cannot be used for indexed lookups")

	// ErrInvalidKey indicates a record that cannot be stored.
	ErrInvalidKey = errors.New("invalid API key record")
)

// Rejection reasons returned to clients.
const (
	ReasonInvalid     = "Invalid API Key"
	ReasonRevoked     = "API key revoked"
	ReasonDisabled    = "API key disabled"
	ReasonExpired     = "API key expired"
	ReasonRateLimited = "API key rate limit exceeded"
)
