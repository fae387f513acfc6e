package apikey

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

// ErrStoreUnavailable is returned while the store circuit breaker is open.
var ErrStoreUnavailable = errors.New("API key store unavailable")

// BreakerStore protects a Store with a circuit breaker. Only infrastructure
// errors count as failures; unknown keys do not.
type BreakerStore struct {
	store   Store
	name    string
	cb      *gobreaker.CircuitBreaker
	logger  observability.Logger
	metrics *Metrics
}

// BreakerOption is a functional option for the breaker store.
type BreakerOption func(*BreakerStore)

// WithBreakerLogger sets the logger for the breaker.
func WithBreakerLogger(logger observability.Logger) BreakerOption {
	return func(b *BreakerStore) {
		b.logger = logger
	}
}

// WithBreakerMetrics sets the metrics for the breaker.
func WithBreakerMetrics(metrics *Metrics) BreakerOption {
	return func(b *BreakerStore) {
		b.metrics = metrics
	}
}

// NewBreakerStore wraps store with a circuit breaker named name.
func NewBreakerStore(store Store, name string, cfg BreakerConfig, opts ...BreakerOption) *BreakerStore {
	b := &BreakerStore{
		store:  store,
		name:   name,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(b)
	}

	threshold := safeIntToUint32(cfg.Threshold)
	if threshold == 0 {
		threshold = DefaultBreakerThreshold
	}
	maxRequests := safeIntToUint32(cfg.MaxRequests)
	if maxRequests == 0 {
		maxRequests = DefaultBreakerMaxRequests
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrKeyNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: b.onStateChange,
	})

	return b
}

func (b *BreakerStore) onStateChange(name string, from, to gobreaker.State) {
	b.logger.Warn("key store circuit breaker state change",
		observability.String("name", name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)

	if b.metrics != nil {
		b.metrics.RecordBreakerTransition(name, from.String(), to.String(), float64(to))
	}

	_, span := otel.Tracer(storeTracerName).Start(context.Background(),
		"apikey.breaker.state_change",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.AddEvent("state_change", trace.WithAttributes(
		attribute.String("circuitbreaker.name", name),
		attribute.String("circuitbreaker.from", from.String()),
		attribute.String("circuitbreaker.to", to.String()),
	))
	span.End()
}

// Find delegates to the wrapped store unless the breaker is open.
func (b *BreakerStore) Find(ctx context.Context, credential string) (*Key, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.store.Find(ctx, credential)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	case err != nil:
		return nil, err
	}

	key, _ := result.(*Key)
	if key == nil {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// State returns the breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

// Ping delegates to the wrapped store when it supports health checks.
func (b *BreakerStore) Ping(ctx context.Context) error {
	if p, ok := b.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// safeIntToUint32 converts n to uint32, clamping out-of-range values.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if uint64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

var (
	_ Store  = (*BreakerStore)(nil)
	_ Pinger = (*BreakerStore)(nil)
)
