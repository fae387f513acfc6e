package vault

import (
	"context"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

// Client provides Vault operations.
type Client interface {
	// Health returns Vault health status.
	Health(ctx context.Context) (*HealthStatus, error)

	// KV returns the KV v2 secrets engine client.
	KV() KVClient
}

// HealthStatus represents Vault health status.
type HealthStatus struct {
	Initialized bool
	Sealed      bool
	Standby     bool
	Version     string
}

// vaultClient implements the Client interface.
type vaultClient struct {
	api      *vaultapi.Client
	logger   observability.Logger
	kvClient *kvClient
}

// New creates a new Vault client authenticated with the configured token.
func New(cfg *Config, logger observability.Logger) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	apiConfig := vaultapi.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, NewError("init", "", apiConfig.Error)
	}
	apiConfig.Address = cfg.Address
	apiConfig.Timeout = cfg.GetTimeout()
	apiConfig.MaxRetries = cfg.GetMaxRetries()

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, NewError("init", "", err)
	}
	api.SetToken(cfg.Token)

	if cfg.Namespace != "" {
		api.SetNamespace(cfg.Namespace)
	}

	client := &vaultClient{
		api:    api,
		logger: logger.With(observability.String("component", "vault")),
	}
	client.kvClient = &kvClient{client: client}

	return client, nil
}

// KV returns the KV v2 client.
func (c *vaultClient) KV() KVClient {
	return c.kvClient
}

// Health returns Vault health status. A sealed server is reported with
// ErrSealed alongside the status.
func (c *vaultClient) Health(ctx context.Context) (*HealthStatus, error) {
	health, err := c.api.Sys().HealthWithContext(ctx)
	if err != nil {
		return nil, NewError("health", "", err)
	}

	status := &HealthStatus{
		Initialized: health.Initialized,
		Sealed:      health.Sealed,
		Standby:     health.Standby,
		Version:     health.Version,
	}
	if health.Sealed {
		return status, NewError("health", "", ErrSealed)
	}
	return status, nil
}

var _ Client = (*vaultClient)(nil)
