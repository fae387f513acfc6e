package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Defaults sized for a lookup that sits on the request path.
const (
	DefaultMaxRetries     = 2
	DefaultInitialBackoff = 25 * time.Millisecond
	DefaultMaxBackoff     = 500 * time.Millisecond
	DefaultJitterFactor   = 0.25

	// MaxJitterFactor caps the jitter factor.
	MaxJitterFactor = 1.0
)

// Config contains retry parameters. Zero fields take the defaults.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFactor   float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		JitterFactor:   DefaultJitterFactor,
	}
}

// Attempts returns the total number of calls Do makes before giving up.
func (c *Config) Attempts() int {
	if c == nil || c.MaxRetries < 0 {
		return 1
	}
	if c.MaxRetries == 0 {
		return DefaultMaxRetries + 1
	}
	return c.MaxRetries + 1
}

func (c *Config) initialBackoff() time.Duration {
	if c == nil || c.InitialBackoff <= 0 {
		return DefaultInitialBackoff
	}
	return c.InitialBackoff
}

func (c *Config) maxBackoff() time.Duration {
	if c == nil || c.MaxBackoff <= 0 {
		return DefaultMaxBackoff
	}
	return c.MaxBackoff
}

func (c *Config) jitterFactor() float64 {
	if c == nil || c.JitterFactor <= 0 {
		return DefaultJitterFactor
	}
	return math.Min(c.JitterFactor, MaxJitterFactor)
}

// Options contains optional retry hooks.
type Options struct {
	// ShouldRetry reports whether err is transient. Nil retries everything.
	ShouldRetry func(err error) bool

	// OnRetry is called before sleeping ahead of attempt.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// Do calls fn until it succeeds, returns a permanent error, runs out of
// attempts, or ctx is done. A negative MaxRetries disables retries.
func Do(ctx context.Context, cfg *Config, fn func(ctx context.Context) error, opts *Options) error {
	attempts := cfg.Attempts()

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		if err = fn(ctx); err == nil {
			return nil
		}

		if opts != nil && opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			return err
		}

		if attempt == attempts-1 {
			break
		}

		backoff := Backoff(attempt, cfg.initialBackoff(), cfg.maxBackoff(), cfg.jitterFactor())
		if opts != nil && opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	return err
}

// Backoff returns the delay before retry number attempt (zero based).
func Backoff(attempt int, initial, maxBackoff time.Duration, jitterFactor float64) time.Duration {
	backoff := float64(initial) * math.Pow(2, float64(attempt))

	//nolint:gosec // jitter does not need a cryptographic source
	backoff += backoff * jitterFactor * rand.Float64()

	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}
