// Package apikey provides API key authorities for the keygate gate.
//
// An Authority looks candidate keys up in a Store and maps the record to an
// authentication result:
//
//   - unknown key: rejected with "Invalid API Key"
//   - revoked, disabled or expired key: rejected with a matching reason
//   - store failure: unavailable, so the gate answers 503
//   - otherwise: granted with a principal built from the record
//
// # Key Storage
//
// Keys are stored hashed (sha256, sha512, bcrypt or plaintext for
// development). Stores are available for static configuration (MemoryStore),
// Redis (RedisStore), Vault KV v2 (VaultStore) and SQLite (SQLiteStore). Only
// MemoryStore supports bcrypt, since the others index records by hash.
//
//	store, err := apikey.NewMemoryStore(cfg.Keys, apikey.HashAlgSHA256)
//	if err != nil {
//	    return err
//	}
//	authority := apikey.NewAuthority(store, apikey.WithAuthorityLogger(logger))
//
// # Decorators
//
// BreakerStore guards a remote store with a circuit breaker, and
// RateLimitedAuthority limits authentication attempts per key.
package apikey
