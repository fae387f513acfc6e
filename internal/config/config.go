package config

import (
	"time"

	"github.com/vyrodovalexey/keygate/internal/audit"
	"github.com/vyrodovalexey/keygate/internal/auth/apikey"
	"github.com/vyrodovalexey/keygate/internal/authz"
)

// Router types.
const (
	RouterHTTP = "http"
	RouterGin  = "gin"
)

// Store types.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreVault  = "vault"
	StoreSQLite = "sqlite"
)

// Config is the root keygate configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Auth          AuthConfig          `yaml:"auth" json:"auth"`
	Authority     AuthorityConfig     `yaml:"authority" json:"authority"`
	Authz         AuthzConfig         `yaml:"authz" json:"authz"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Audit         audit.Config        `yaml:"audit" json:"audit"`
}

// ServerConfig configures the listeners.
type ServerConfig struct {
	// Address is the protected API listen address.
	Address string `yaml:"address" json:"address"`

	// GRPCAddress enables the gRPC server when set.
	GRPCAddress string `yaml:"grpcAddress,omitempty" json:"grpcAddress,omitempty"`

	// MetricsAddress serves /metrics and /healthz. Empty disables it.
	MetricsAddress string `yaml:"metricsAddress,omitempty" json:"metricsAddress,omitempty"`

	// Router selects the HTTP stack: "http" (net/http) or "gin".
	Router string `yaml:"router,omitempty" json:"router,omitempty"`

	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`
	ShutdownTimeout   Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// AuthConfig configures the authentication gate.
type AuthConfig struct {
	// ForceAPIKey rejects requests without a key with 401.
	ForceAPIKey bool `yaml:"forceApiKey" json:"forceApiKey"`

	// Header is the header carrying the key.
	Header string `yaml:"header,omitempty" json:"header,omitempty"`

	// QueryParam is the query parameter checked when the header is absent.
	QueryParam string `yaml:"queryParam,omitempty" json:"queryParam,omitempty"`

	Sessions SessionsConfig `yaml:"sessions" json:"sessions"`
}

// SessionsConfig configures session-scoped security contexts.
type SessionsConfig struct {
	Enabled    bool     `yaml:"enabled" json:"enabled"`
	CookieName string   `yaml:"cookieName,omitempty" json:"cookieName,omitempty"`
	TTL        Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// AuthorityConfig configures the API key authority.
type AuthorityConfig struct {
	// HashAlgorithm is how keys are stored: sha256, sha512, bcrypt or plaintext.
	HashAlgorithm string `yaml:"hashAlgorithm,omitempty" json:"hashAlgorithm,omitempty"`

	Store     StoreConfig     `yaml:"store" json:"store"`
	Breaker   BreakerConfig   `yaml:"breaker" json:"breaker"`
	RateLimit RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`
}

// StoreConfig selects and configures the key store.
type StoreConfig struct {
	// Type is memory, redis, vault or sqlite.
	Type string `yaml:"type" json:"type"`

	// Keys are the static keys of the memory store.
	Keys []apikey.StaticKey `yaml:"keys,omitempty" json:"keys,omitempty"`

	Redis  *RedisStoreConfig  `yaml:"redis,omitempty" json:"redis,omitempty"`
	Vault  *VaultStoreConfig  `yaml:"vault,omitempty" json:"vault,omitempty"`
	SQLite *SQLiteStoreConfig `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
}

// RedisStoreConfig configures the Redis key store.
type RedisStoreConfig struct {
	URL       string `yaml:"url" json:"url"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
}

// VaultStoreConfig configures the Vault key store.
type VaultStoreConfig struct {
	Address    string   `yaml:"address" json:"address"`
	Token      string   `yaml:"token,omitempty" json:"token,omitempty"`
	Namespace  string   `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries int      `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
	Mount      string   `yaml:"mount,omitempty" json:"mount,omitempty"`
	Path       string   `yaml:"path,omitempty" json:"path,omitempty"`
}

// SQLiteStoreConfig configures the SQLite key store.
type SQLiteStoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// BreakerConfig configures the key store circuit breaker.
type BreakerConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Threshold   int      `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRequests int      `yaml:"maxRequests,omitempty" json:"maxRequests,omitempty"`
}

// RateLimitConfig configures per-key rate limiting.
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
	Burst             int      `yaml:"burst,omitempty" json:"burst,omitempty"`
	IdleTTL           Duration `yaml:"idleTTL,omitempty" json:"idleTTL,omitempty"`
}

// AuthzConfig configures downstream authorization.
type AuthzConfig struct {
	Policies []authz.Policy `yaml:"policies,omitempty" json:"policies,omitempty"`
}

// ObservabilityConfig configures logging, tracing and metrics.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string         `yaml:"level,omitempty" json:"level,omitempty"`
	Format string         `yaml:"format,omitempty" json:"format,omitempty"`
	Output string         `yaml:"output,omitempty" json:"output,omitempty"`
	File   *LogFileConfig `yaml:"file,omitempty" json:"file,omitempty"`
}

// LogFileConfig configures a rotating log file.
type LogFileConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty" json:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty" json:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty" json:"maxAgeDays,omitempty"`
	Compress   bool   `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           ":8080",
			MetricsAddress:    ":9090",
			Router:            RouterHTTP,
			ReadHeaderTimeout: Duration(10 * time.Second),
			ShutdownTimeout:   Duration(30 * time.Second),
		},
		Auth: AuthConfig{
			ForceAPIKey: true,
			Header:      "Authorization",
			QueryParam:  "api_key",
			Sessions: SessionsConfig{
				CookieName: "keygate_session",
				TTL:        Duration(30 * time.Minute),
			},
		},
		Authority: AuthorityConfig{
			HashAlgorithm: apikey.HashAlgSHA256,
			Store: StoreConfig{
				Type: StoreMemory,
			},
			Breaker: BreakerConfig{
				Threshold:   apikey.DefaultBreakerThreshold,
				Timeout:     Duration(apikey.DefaultBreakerTimeout),
				MaxRequests: apikey.DefaultBreakerMaxRequests,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: apikey.DefaultRequestsPerSecond,
				Burst:             apikey.DefaultBurst,
				IdleTTL:           Duration(apikey.DefaultIdleTTL),
			},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			Tracing: TracingConfig{
				SamplingRate: 1.0,
				ServiceName:  "keygate",
			},
			Metrics: MetricsConfig{
				Namespace: "keygate",
			},
		},
	}
}
