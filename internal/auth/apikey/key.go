package apikey

import (
	"time"

	"github.com/vyrodovalexey/keygate/internal/security"
)

// Key is a stored API key record.
type Key struct {
	// ID is the unique identifier for the key.
	ID string `json:"id" yaml:"id"`

	// Name is the principal name. Defaults to ID.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Hash is the hashed key value.
	Hash string `json:"hash" yaml:"hash"`

	// Roles is a list of roles granted to the key.
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`

	// Scopes is a list of scopes granted to the key.
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`

	// Metadata contains additional metadata.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// ExpiresAt is when the key expires.
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`

	// Enabled indicates if the key may be used.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Revoked indicates the key was permanently withdrawn.
	Revoked bool `json:"revoked,omitempty" yaml:"revoked,omitempty"`

	// CreatedAt is when the key was created.
	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// IsExpired returns true if the key has expired at now.
func (k *Key) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// PrincipalName returns the name the key authenticates as.
func (k *Key) PrincipalName() string {
	if k.Name != "" {
		return k.Name
	}
	return k.ID
}

// Principal converts the key to a security principal.
func (k *Key) Principal() security.Principal {
	return security.Principal{
		ID:        k.ID,
		Name:      k.PrincipalName(),
		Roles:     k.Roles,
		Scopes:    k.Scopes,
		Metadata:  k.Metadata,
		ExpiresAt: k.ExpiresAt,
	}
}
