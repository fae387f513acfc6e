package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/retry"
)

const (
	storeTracerName = "keygate/apikey"

	// DefaultRedisKeyPrefix is the default prefix for key records.
	DefaultRedisKeyPrefix = "keygate:apikey:"

	redisPingTimeout = 5 * time.Second
)

// RedisStore stores key records as JSON in Redis under <prefix><hash>.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	algorithm string
	retry     *retry.Config
	logger    observability.Logger
}

// RedisOption is a functional option for the Redis store.
type RedisOption func(*RedisStore)

// WithRedisLogger sets the logger for the store.
func WithRedisLogger(logger observability.Logger) RedisOption {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

// WithRedisRetry sets the retry policy for transient Redis errors.
func WithRedisRetry(cfg *retry.Config) RedisOption {
	return func(s *RedisStore) {
		s.retry = cfg
	}
}

// NewRedisClient parses url and returns a connected client.
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis URL is required")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := pingRedis(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return client, nil
}

func pingRedis(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

// NewRedisStore creates a store over client. algorithm must be deterministic.
func NewRedisStore(client *redis.Client, keyPrefix, algorithm string, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if !IsDeterministic(algorithm) {
		return nil, fmt.Errorf("%w: %s", ErrNonDeterministicHash, algorithm)
	}
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}

	s := &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		algorithm: algorithm,
		retry:     retry.DefaultConfig(),
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Find returns the record stored under the credential's hash.
func (s *RedisStore) Find(ctx context.Context, credential string) (*Key, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "apikey.redis.Find",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "redis")),
	)
	defer span.End()

	hash, err := indexHash(credential, s.algorithm)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var getErr error
		data, getErr = s.client.Get(ctx, s.keyPrefix+hash).Bytes()
		return getErr
	}, &retry.Options{
		ShouldRetry: isRetryableRedisError,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			s.logger.Debug("retrying redis lookup",
				observability.Int("attempt", attempt),
				observability.Error(err),
			)
		},
	})

	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("apikey.found", false))
		return nil, ErrKeyNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "redis lookup failed")
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var key Key
	if err := json.Unmarshal(data, &key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "corrupt record")
		return nil, fmt.Errorf("decode key record: %w", err)
	}

	span.SetAttributes(attribute.Bool("apikey.found", true))
	return &key, nil
}

// Put stores key under its hash. The record has no TTL so that expired keys
// still resolve and are rejected as expired.
func (s *RedisStore) Put(ctx context.Context, key *Key) error {
	if key == nil || key.Hash == "" {
		return ErrInvalidKey
	}

	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("encode key record: %w", err)
	}

	return s.client.Set(ctx, s.keyPrefix+key.Hash, data, 0).Err()
}

// Delete removes the record stored under hash.
func (s *RedisStore) Delete(ctx context.Context, hash string) error {
	return s.client.Del(ctx, s.keyPrefix+hash).Err()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// isRetryableRedisError reports whether err is a transient connection error.
func isRetryableRedisError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, redis.Nil) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

var (
	_ Store  = (*RedisStore)(nil)
	_ Pinger = (*RedisStore)(nil)
)
