package apikey

import (
	"context"
	"errors"
	"time"

	"github.com/vyrodovalexey/keygate/internal/auth"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

// Authority authenticates raw API keys against a Store.
type Authority struct {
	store     Store
	storeName string
	logger    observability.Logger
	metrics   *Metrics
	now       func() time.Time
}

// AuthorityOption is a functional option for configuring the authority.
type AuthorityOption func(*Authority)

// WithAuthorityLogger sets the logger for the authority.
func WithAuthorityLogger(logger observability.Logger) AuthorityOption {
	return func(a *Authority) {
		a.logger = logger
	}
}

// WithAuthorityMetrics sets the metrics for the authority.
func WithAuthorityMetrics(metrics *Metrics) AuthorityOption {
	return func(a *Authority) {
		a.metrics = metrics
	}
}

// WithStoreName sets the store label used in logs and metrics.
func WithStoreName(name string) AuthorityOption {
	return func(a *Authority) {
		a.storeName = name
	}
}

// WithClock sets the clock used for expiry checks.
func WithClock(now func() time.Time) AuthorityOption {
	return func(a *Authority) {
		a.now = now
	}
}

// NewAuthority creates an API key authority over store.
func NewAuthority(store Store, opts ...AuthorityOption) *Authority {
	a := &Authority{
		store:     store,
		storeName: "memory",
		logger:    observability.NopLogger(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Authenticate looks up the token's credential and returns the verdict.
func (a *Authority) Authenticate(ctx context.Context, token *security.Token) auth.Result {
	credential := token.Credential()
	if credential == "" {
		return auth.Reject(ReasonInvalid)
	}

	start := time.Now()
	key, err := a.store.Find(ctx, credential)
	duration := time.Since(start)

	switch {
	case errors.Is(err, ErrKeyNotFound):
		a.recordLookup(lookupNotFound, duration)
		return auth.Reject(ReasonInvalid)
	case err != nil:
		a.recordLookup(lookupError, duration)
		a.logger.Error("API key lookup failed",
			observability.String("store", a.storeName),
			observability.Error(err),
		)
		return auth.Unavailable(err)
	}

	a.recordLookup(lookupFound, duration)

	logger := a.logger.With(observability.String("key_id", key.ID))

	if reason, ok := a.check(key); !ok {
		logger.Debug("API key rejected", observability.String("reason", reason))
		return auth.Reject(reason)
	}

	logger.Debug("API key accepted", observability.String("principal", key.PrincipalName()))
	return auth.Grant(token.Authenticate(key.Principal()))
}

// check returns the rejection reason for an unusable key.
func (a *Authority) check(key *Key) (string, bool) {
	switch {
	case key.Revoked:
		return ReasonRevoked, false
	case !key.Enabled:
		return ReasonDisabled, false
	case key.IsExpired(a.now()):
		return ReasonExpired, false
	default:
		return "", true
	}
}

func (a *Authority) recordLookup(result string, duration time.Duration) {
	if a.metrics != nil {
		a.metrics.RecordLookup(a.storeName, result, duration)
	}
}

var _ auth.Authority = (*Authority)(nil)
