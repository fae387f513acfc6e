// Package retry retries key store calls with exponential backoff and jitter.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
//	    return client.Get(ctx, key).Err()
//	}, &retry.Options{ShouldRetry: isTransient})
package retry
