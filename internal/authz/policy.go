package authz

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy indicates a policy that cannot be compiled.
var ErrInvalidPolicy = errors.New("invalid policy")

// Policy is a CEL authorization rule.
type Policy struct {
	// Name identifies the policy in logs and metrics.
	Name string `yaml:"name" json:"name"`

	// PathPrefix restricts the policy to matching paths. Empty matches all.
	PathPrefix string `yaml:"pathPrefix,omitempty" json:"pathPrefix,omitempty"`

	// Methods restricts the policy to these HTTP methods. Empty matches all.
	Methods []string `yaml:"methods,omitempty" json:"methods,omitempty"`

	// Expression is a CEL expression that must evaluate to bool.
	Expression string `yaml:"expression" json:"expression"`
}

// Validate checks the static fields of the policy.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPolicy)
	}
	if strings.TrimSpace(p.Expression) == "" {
		return fmt.Errorf("%w: %s: expression is required", ErrInvalidPolicy, p.Name)
	}
	if p.PathPrefix != "" && !strings.HasPrefix(p.PathPrefix, "/") {
		return fmt.Errorf("%w: %s: pathPrefix must start with /", ErrInvalidPolicy, p.Name)
	}
	return nil
}

// Applies reports whether the policy covers method and path.
func (p *Policy) Applies(method, path string) bool {
	if p.PathPrefix != "" && !strings.HasPrefix(path, p.PathPrefix) {
		return false
	}
	if len(p.Methods) == 0 {
		return true
	}
	for _, m := range p.Methods {
		if m == "*" || strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
