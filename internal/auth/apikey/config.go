package apikey

import (
	"errors"
	"fmt"
	"time"
)

// StaticKey represents an API key declared in configuration.
type StaticKey struct {
	// ID is the unique identifier for the key.
	ID string `yaml:"id" json:"id"`

	// Key is the raw API key value. Either Key or Hash must be set.
	Key string `yaml:"key,omitempty" json:"key,omitempty"`

	// Hash is the pre-computed hash of the key.
	Hash string `yaml:"hash,omitempty" json:"hash,omitempty"`

	// Name is the principal name the key authenticates as.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Scopes is a list of scopes granted to the key.
	Scopes []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`

	// Roles is a list of roles granted to the key.
	Roles []string `yaml:"roles,omitempty" json:"roles,omitempty"`

	// ExpiresAt is when the key expires.
	ExpiresAt *time.Time `yaml:"expiresAt,omitempty" json:"expiresAt,omitempty"`

	// Metadata contains additional metadata.
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`

	// Disabled marks the key as temporarily unusable.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	// Revoked marks the key as permanently withdrawn.
	Revoked bool `yaml:"revoked,omitempty" json:"revoked,omitempty"`
}

// Validate validates the static key.
func (k *StaticKey) Validate() error {
	if k.ID == "" {
		return errors.New("id is required")
	}
	if k.Key == "" && k.Hash == "" {
		return fmt.Errorf("key %q: key or hash is required", k.ID)
	}
	return nil
}

// ToKey converts the static key to a stored record hashed with algorithm.
func (k *StaticKey) ToKey(algorithm string) (*Key, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}

	hash := k.Hash
	if hash == "" {
		var err error
		hash, err = HashKey(k.Key, algorithm)
		if err != nil {
			return nil, err
		}
	}

	return &Key{
		ID:        k.ID,
		Name:      k.Name,
		Hash:      hash,
		Roles:     k.Roles,
		Scopes:    k.Scopes,
		Metadata:  k.Metadata,
		ExpiresAt: k.ExpiresAt,
		Enabled:   !k.Disabled,
		Revoked:   k.Revoked,
		CreatedAt: time.Now(),
	}, nil
}

// BreakerConfig configures the store circuit breaker.
type BreakerConfig struct {
	// Enabled enables the circuit breaker.
	Enabled bool

	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests int
}

// Breaker defaults.
const (
	DefaultBreakerThreshold   = 5
	DefaultBreakerTimeout     = 30 * time.Second
	DefaultBreakerMaxRequests = 1
)

// RateLimitConfig configures per-key rate limiting.
type RateLimitConfig struct {
	// Enabled enables rate limiting.
	Enabled bool

	// RequestsPerSecond is the sustained rate per key.
	RequestsPerSecond float64

	// Burst is the burst size.
	Burst int

	// IdleTTL is how long an unused key keeps its limiter.
	IdleTTL time.Duration
}

// Rate limit defaults.
const (
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 20
	DefaultIdleTTL           = 10 * time.Minute
)
