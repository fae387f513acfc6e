package apikey

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Store looks API key records up by raw key.
type Store interface {
	// Find returns the record for credential. It returns ErrKeyNotFound for
	// unknown keys; any other error is an infrastructure failure.
	Find(ctx context.Context, credential string) (*Key, error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryStore is an in-memory Store for statically configured keys.
type MemoryStore struct {
	mu        sync.RWMutex
	algorithm string
	byHash    map[string]*Key
}

// NewMemoryStore creates a store holding keys hashed with algorithm.
func NewMemoryStore(keys []StaticKey, algorithm string) (*MemoryStore, error) {
	if !IsValidHashAlgorithm(algorithm) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHash, algorithm)
	}

	s := &MemoryStore{
		algorithm: algorithm,
		byHash:    make(map[string]*Key, len(keys)),
	}

	for i := range keys {
		key, err := keys[i].ToKey(algorithm)
		if err != nil {
			return nil, fmt.Errorf("keys[%d]: %w", i, err)
		}
		s.byHash[key.Hash] = key
	}

	return s, nil
}

// Find returns the record for credential. Deterministic algorithms use a
// hash lookup; bcrypt scans all records.
func (s *MemoryStore) Find(_ context.Context, credential string) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if IsDeterministic(s.algorithm) {
		hash, err := HashKey(credential, s.algorithm)
		if err != nil {
			return nil, err
		}
		if key, ok := s.byHash[hash]; ok {
			return cloneKey(key), nil
		}
		return nil, ErrKeyNotFound
	}

	for hash, key := range s.byHash {
		if VerifyKey(credential, hash, s.algorithm) {
			return cloneKey(key), nil
		}
	}
	return nil, ErrKeyNotFound
}

// Put adds or replaces a record. key.Hash must be set.
func (s *MemoryStore) Put(_ context.Context, key *Key) error {
	if key == nil || key.Hash == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[key.Hash] = cloneKey(key)
	return nil
}

// Len returns the number of records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHash)
}

// cloneKey returns a copy of key whose slices and map are not shared.
func cloneKey(key *Key) *Key {
	cp := *key
	cp.Roles = slices.Clone(key.Roles)
	cp.Scopes = slices.Clone(key.Scopes)
	cp.Metadata = maps.Clone(key.Metadata)
	return &cp
}

var _ Store = (*MemoryStore)(nil)
