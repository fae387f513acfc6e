package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vyrodovalexey/keygate/internal/auth"
	"github.com/vyrodovalexey/keygate/internal/auth/apikey"
	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/vault"
)

// rateLimitSweepInterval is how often idle rate limiters are dropped.
const rateLimitSweepInterval = time.Minute

// authorityBundle is an authority together with the resources it owns.
// A config reload builds a new bundle and closes the old one.
type authorityBundle struct {
	authority auth.Authority
	storeName string
	pinger    apikey.Pinger
	closers   []io.Closer
	cancel    context.CancelFunc
}

// Ping checks the key store. Stores without a remote dependency are
// always healthy.
func (b *authorityBundle) Ping(ctx context.Context) error {
	if b == nil || b.pinger == nil {
		return nil
	}
	return b.pinger.Ping(ctx)
}

// Close stops background work and releases the store.
func (b *authorityBundle) Close() error {
	if b == nil {
		return nil
	}
	if b.cancel != nil {
		b.cancel()
	}
	var errs []error
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// authorityDeps are the shared components every bundle is built with.
type authorityDeps struct {
	logger  observability.Logger
	metrics *apikey.Metrics
}

// buildAuthority builds the configured store, its decorators and the
// authority on top.
func buildAuthority(ctx context.Context, cfg *config.AuthorityConfig, deps authorityDeps) (*authorityBundle, error) {
	store, closer, err := buildStore(ctx, &cfg.Store, cfg.HashAlgorithm, deps.logger)
	if err != nil {
		return nil, err
	}

	bundle := &authorityBundle{storeName: cfg.Store.Type}
	if closer != nil {
		bundle.closers = append(bundle.closers, closer)
	}

	if cfg.Breaker.Enabled {
		store = apikey.NewBreakerStore(store, cfg.Store.Type, apikey.BreakerConfig{
			Enabled:     true,
			Threshold:   cfg.Breaker.Threshold,
			Timeout:     cfg.Breaker.Timeout.Duration(),
			MaxRequests: cfg.Breaker.MaxRequests,
		}, apikey.WithBreakerLogger(deps.logger), apikey.WithBreakerMetrics(deps.metrics))
	}

	if p, ok := store.(apikey.Pinger); ok {
		bundle.pinger = p
	}

	var authority auth.Authority = apikey.NewAuthority(store,
		apikey.WithAuthorityLogger(deps.logger),
		apikey.WithAuthorityMetrics(deps.metrics),
		apikey.WithStoreName(cfg.Store.Type),
	)

	if cfg.RateLimit.Enabled {
		limited := apikey.NewRateLimitedAuthority(authority, apikey.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			IdleTTL:           cfg.RateLimit.IdleTTL.Duration(),
		}, apikey.WithRateLimitLogger(deps.logger), apikey.WithRateLimitMetrics(deps.metrics))

		runCtx, cancel := context.WithCancel(context.Background())
		bundle.cancel = cancel
		go limited.Run(runCtx, rateLimitSweepInterval)
		authority = limited
	}

	bundle.authority = authority
	return bundle, nil
}

// buildStore creates the key store selected by cfg.Type. The returned
// closer is nil for stores that hold no connection.
func buildStore(
	ctx context.Context,
	cfg *config.StoreConfig,
	algorithm string,
	logger observability.Logger,
) (apikey.Store, io.Closer, error) {
	switch cfg.Type {
	case config.StoreMemory, "":
		store, err := apikey.NewMemoryStore(cfg.Keys, algorithm)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load static keys: %w", err)
		}
		logger.Info("loaded static API keys", observability.Int("count", store.Len()))
		return store, nil, nil

	case config.StoreRedis:
		client, err := apikey.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		store, err := apikey.NewRedisStore(client, cfg.Redis.KeyPrefix, algorithm,
			apikey.WithRedisLogger(logger),
		)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, store, nil

	case config.StoreVault:
		client, err := vault.New(&vault.Config{
			Address:    cfg.Vault.Address,
			Token:      cfg.Vault.Token,
			Namespace:  cfg.Vault.Namespace,
			Timeout:    cfg.Vault.Timeout.Duration(),
			MaxRetries: cfg.Vault.MaxRetries,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vault client: %w", err)
		}
		store, err := apikey.NewVaultStore(client, cfg.Vault.Mount, cfg.Vault.Path, algorithm)
		if err != nil {
			return nil, nil, err
		}
		// An unreachable Vault is not fatal: lookups report unavailable
		// until it recovers.
		if err := store.Ping(ctx); err != nil {
			logger.Warn("vault is not reachable", observability.Error(err))
		}
		return store, nil, nil

	case config.StoreSQLite:
		store, err := apikey.OpenSQLite(cfg.SQLite.Path, algorithm)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store type %q", cfg.Type)
	}
}
