package vault

import (
	"time"
)

// Client defaults.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
)

// Config represents Vault client configuration.
type Config struct {
	// Address is the Vault server address.
	Address string `yaml:"address" json:"address"`

	// Token is the Vault token.
	Token string `yaml:"token,omitempty" json:"token,omitempty"`

	// Namespace is the Vault namespace (Enterprise feature).
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// Timeout bounds every request.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries is the number of retries on 5xx responses. Negative disables retries.
	MaxRetries int `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return NewConfigurationError("", "configuration is nil")
	}
	if c.Address == "" {
		return NewConfigurationError("address", "address is required")
	}
	if c.Token == "" {
		return NewConfigurationError("token", "token is required")
	}
	if c.Timeout < 0 {
		return NewConfigurationError("timeout", "timeout must be non-negative")
	}
	return nil
}

// GetTimeout returns the effective timeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// GetMaxRetries returns the effective retry count.
func (c *Config) GetMaxRetries() int {
	switch {
	case c.MaxRetries < 0:
		return 0
	case c.MaxRetries == 0:
		return DefaultMaxRetries
	default:
		return c.MaxRetries
	}
}
