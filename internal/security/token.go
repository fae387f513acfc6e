package security

import (
	"maps"
	"slices"
	"time"
)

// Principal is the identity an authority resolved from a credential.
type Principal struct {
	// ID is the unique identifier of the credential owner (e.g., key ID).
	ID string `json:"id"`

	// Name is the principal name exposed to downstream components.
	Name string `json:"name"`

	// Roles contains the roles granted to the principal.
	Roles []string `json:"roles,omitempty"`

	// Scopes contains the scopes granted to the principal.
	Scopes []string `json:"scopes,omitempty"`

	// Metadata contains additional attributes.
	Metadata map[string]string `json:"metadata,omitempty"`

	// ExpiresAt is when the underlying credential expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Token represents an authentication attempt and, when authenticated, its result.
type Token struct {
	credential string
	principal  *Principal
	authTime   time.Time
}

// NewToken creates an unauthenticated token carrying the raw credential.
func NewToken(credential string) *Token {
	return &Token{credential: credential}
}

// Authenticate returns a new token with the same credential and the given
// principal attached. The receiver is not modified.
func (t *Token) Authenticate(principal Principal) *Token {
	p := principal
	p.Roles = slices.Clone(principal.Roles)
	p.Scopes = slices.Clone(principal.Scopes)
	p.Metadata = maps.Clone(principal.Metadata)

	return &Token{
		credential: t.credential,
		principal:  &p,
		authTime:   time.Now(),
	}
}

// Credential returns the raw credential.
func (t *Token) Credential() string {
	if t == nil {
		return ""
	}
	return t.credential
}

// IsAuthenticated reports whether an authority attached a principal.
func (t *Token) IsAuthenticated() bool {
	return t != nil && t.principal != nil
}

// Principal returns a copy of the resolved principal.
func (t *Token) Principal() (Principal, bool) {
	if !t.IsAuthenticated() {
		return Principal{}, false
	}
	p := *t.principal
	p.Roles = slices.Clone(t.principal.Roles)
	p.Scopes = slices.Clone(t.principal.Scopes)
	p.Metadata = maps.Clone(t.principal.Metadata)
	return p, true
}

// PrincipalName returns the principal name, or "" when unauthenticated.
func (t *Token) PrincipalName() string {
	if !t.IsAuthenticated() {
		return ""
	}
	return t.principal.Name
}

// Roles returns the granted roles.
func (t *Token) Roles() []string {
	if !t.IsAuthenticated() {
		return nil
	}
	return slices.Clone(t.principal.Roles)
}

// Scopes returns the granted scopes.
func (t *Token) Scopes() []string {
	if !t.IsAuthenticated() {
		return nil
	}
	return slices.Clone(t.principal.Scopes)
}

// HasRole checks if the token has a specific role.
func (t *Token) HasRole(role string) bool {
	return t.IsAuthenticated() && slices.Contains(t.principal.Roles, role)
}

// HasScope checks if the token has a specific scope.
func (t *Token) HasScope(scope string) bool {
	return t.IsAuthenticated() && slices.Contains(t.principal.Scopes, scope)
}

// AuthTime returns when the token was authenticated.
func (t *Token) AuthTime() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.authTime
}

// IsExpired returns true if the principal's credential has expired.
func (t *Token) IsExpired() bool {
	if !t.IsAuthenticated() || t.principal.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*t.principal.ExpiresAt)
}
