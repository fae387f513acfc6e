package apikey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/keygate/internal/auth"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/security"
)

// limiterEntry holds a rate limiter and its last access time for TTL-based cleanup.
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimitedAuthority applies a per-key token bucket in front of an
// Authority. Limiters are keyed by the SHA-256 of the raw key.
type RateLimitedAuthority struct {
	next    auth.Authority
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	logger  observability.Logger
	metrics *Metrics

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// RateLimitOption is a functional option for the rate-limited authority.
type RateLimitOption func(*RateLimitedAuthority)

// WithRateLimitLogger sets the logger.
func WithRateLimitLogger(logger observability.Logger) RateLimitOption {
	return func(r *RateLimitedAuthority) {
		r.logger = logger
	}
}

// WithRateLimitMetrics sets the metrics.
func WithRateLimitMetrics(metrics *Metrics) RateLimitOption {
	return func(r *RateLimitedAuthority) {
		r.metrics = metrics
	}
}

// NewRateLimitedAuthority wraps next with per-key rate limiting.
func NewRateLimitedAuthority(next auth.Authority, cfg RateLimitConfig, opts ...RateLimitOption) *RateLimitedAuthority {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	r := &RateLimitedAuthority{
		next:    next,
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		logger:  observability.NopLogger(),
		entries: make(map[string]*limiterEntry),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Authenticate rejects the key when its bucket is empty and delegates otherwise.
func (r *RateLimitedAuthority) Authenticate(ctx context.Context, token *security.Token) auth.Result {
	credential := token.Credential()
	if credential != "" && !r.allow(credential, time.Now()) {
		r.logger.Warn("API key rate limit exceeded")
		if r.metrics != nil {
			r.metrics.RecordRateLimited()
		}
		return auth.Reject(ReasonRateLimited)
	}
	return r.next.Authenticate(ctx, token)
}

func (r *RateLimitedAuthority) allow(credential string, now time.Time) bool {
	sum := sha256.Sum256([]byte(credential))
	id := hex.EncodeToString(sum[:])

	r.mu.Lock()
	entry, ok := r.entries[id]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.entries[id] = entry
	}
	entry.lastAccess = now
	r.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// Sweep drops limiters idle for longer than the configured TTL and returns
// how many were removed.
func (r *RateLimitedAuthority) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.entries {
		if now.Sub(entry.lastAccess) > r.idleTTL {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle limiters every interval until ctx is done.
func (r *RateLimitedAuthority) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.logger.Debug("swept idle rate limiters", observability.Int("count", n))
			}
		}
	}
}

// Len returns the number of tracked keys.
func (r *RateLimitedAuthority) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

var _ auth.Authority = (*RateLimitedAuthority)(nil)
