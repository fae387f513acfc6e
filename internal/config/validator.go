package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/keygate/internal/auth/apikey"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// validator accumulates errors across the whole configuration.
type validator struct {
	errors ValidationErrors
}

func (v *validator) addError(path, format string, args ...interface{}) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateConfig validates cfg and returns ValidationErrors listing every
// problem found.
func ValidateConfig(cfg *Config) error {
	v := &validator{}

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&cfg.Server)
	v.validateAuth(&cfg.Auth)
	v.validateAuthority(&cfg.Authority)
	v.validateAuthz(&cfg.Authz)
	v.validateObservability(&cfg.Observability)
	if err := cfg.Audit.Validate(); err != nil {
		v.addError("audit", "%s", err.Error())
	}

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *validator) validateServer(s *ServerConfig) {
	if s.Address == "" {
		v.addError("server.address", "is required")
	}
	switch s.Router {
	case RouterHTTP, RouterGin:
	default:
		v.addError("server.router", "must be %q or %q, got %q", RouterHTTP, RouterGin, s.Router)
	}
	if s.ShutdownTimeout < 0 {
		v.addError("server.shutdownTimeout", "must not be negative")
	}
	if s.ReadHeaderTimeout < 0 {
		v.addError("server.readHeaderTimeout", "must not be negative")
	}
}

func (v *validator) validateAuth(a *AuthConfig) {
	if a.Header == "" && a.QueryParam == "" {
		v.addError("auth", "header or queryParam is required")
	}
	if a.Sessions.Enabled && a.Sessions.CookieName == "" {
		v.addError("auth.sessions.cookieName", "is required when sessions are enabled")
	}
	if a.Sessions.TTL < 0 {
		v.addError("auth.sessions.ttl", "must not be negative")
	}
}

func (v *validator) validateAuthority(a *AuthorityConfig) {
	if !apikey.IsValidHashAlgorithm(a.HashAlgorithm) {
		v.addError("authority.hashAlgorithm", "unsupported algorithm %q", a.HashAlgorithm)
	}

	v.validateStore(&a.Store, a.HashAlgorithm)

	if a.Breaker.Threshold < 0 {
		v.addError("authority.breaker.threshold", "must not be negative")
	}
	if a.Breaker.Timeout < 0 {
		v.addError("authority.breaker.timeout", "must not be negative")
	}
	if a.RateLimit.RequestsPerSecond < 0 {
		v.addError("authority.rateLimit.requestsPerSecond", "must not be negative")
	}
	if a.RateLimit.Burst < 0 {
		v.addError("authority.rateLimit.burst", "must not be negative")
	}
}

func (v *validator) validateStore(s *StoreConfig, algorithm string) {
	const path = "authority.store"

	switch s.Type {
	case StoreMemory:
		v.validateStaticKeys(s.Keys)
		return
	case StoreRedis:
		if s.Redis == nil || s.Redis.URL == "" {
			v.addError(path+".redis.url", "is required for the redis store")
		}
	case StoreVault:
		if s.Vault == nil || s.Vault.Address == "" {
			v.addError(path+".vault.address", "is required for the vault store")
		} else if s.Vault.Token == "" {
			v.addError(path+".vault.token", "is required for the vault store")
		}
	case StoreSQLite:
		if s.SQLite == nil || s.SQLite.Path == "" {
			v.addError(path+".sqlite.path", "is required for the sqlite store")
		}
	default:
		v.addError(path+".type", "must be one of memory, redis, vault, sqlite, got %q", s.Type)
		return
	}

	if apikey.IsValidHashAlgorithm(algorithm) && !apikey.IsDeterministic(algorithm) {
		v.addError("authority.hashAlgorithm", "%s store requires a deterministic algorithm, got %q", s.Type, algorithm)
	}
	if len(s.Keys) > 0 {
		v.addError(path+".keys", "static keys are only supported by the memory store")
	}
}

func (v *validator) validateStaticKeys(keys []apikey.StaticKey) {
	seen := make(map[string]struct{}, len(keys))
	for i := range keys {
		path := fmt.Sprintf("authority.store.keys[%d]", i)
		if err := keys[i].Validate(); err != nil {
			v.addError(path, "%s", err.Error())
			continue
		}
		if _, dup := seen[keys[i].ID]; dup {
			v.addError(path+".id", "duplicate key id %q", keys[i].ID)
		}
		seen[keys[i].ID] = struct{}{}
	}
}

func (v *validator) validateAuthz(a *AuthzConfig) {
	for i := range a.Policies {
		if err := a.Policies[i].Validate(); err != nil {
			v.addError(fmt.Sprintf("authz.policies[%d]", i), "%s", err.Error())
		}
	}
}

func (v *validator) validateObservability(o *ObservabilityConfig) {
	switch o.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("observability.logging.level", "must be debug, info, warn or error, got %q", o.Logging.Level)
	}
	switch o.Logging.Format {
	case "json", "console":
	default:
		v.addError("observability.logging.format", "must be json or console, got %q", o.Logging.Format)
	}
	switch o.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if o.Logging.File == nil || o.Logging.File.Path == "" {
			v.addError("observability.logging.file.path", "is required for file output")
		}
	default:
		v.addError("observability.logging.output", "must be stdout, stderr or file, got %q", o.Logging.Output)
	}

	if o.Tracing.SamplingRate < 0 || o.Tracing.SamplingRate > 1 {
		v.addError("observability.tracing.samplingRate", "must be between 0 and 1")
	}
	if o.Tracing.Enabled && o.Tracing.Endpoint == "" {
		v.addError("observability.tracing.endpoint", "is required when tracing is enabled")
	}
}
