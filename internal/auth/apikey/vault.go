package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/keygate/internal/vault"
)

// Vault store defaults.
const (
	DefaultVaultMount = "secret"
	DefaultVaultPath  = "keygate/apikeys"
)

// VaultStore reads key records from a Vault KV v2 engine at
// <mount>/data/<path>/<hash>.
type VaultStore struct {
	client    vault.Client
	mount     string
	path      string
	algorithm string
}

// NewVaultStore creates a store over client. algorithm must be deterministic.
func NewVaultStore(client vault.Client, mount, path, algorithm string) (*VaultStore, error) {
	if client == nil {
		return nil, errors.New("vault client is required")
	}
	if !IsDeterministic(algorithm) {
		return nil, fmt.Errorf("%w: %s", ErrNonDeterministicHash, algorithm)
	}
	if mount == "" {
		mount = DefaultVaultMount
	}
	if path == "" {
		path = DefaultVaultPath
	}

	return &VaultStore{
		client:    client,
		mount:     mount,
		path:      strings.Trim(path, "/"),
		algorithm: algorithm,
	}, nil
}

// Find returns the record stored under the credential's hash.
func (s *VaultStore) Find(ctx context.Context, credential string) (*Key, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "apikey.vault.Find",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("vault.mount", s.mount)),
	)
	defer span.End()

	hash, err := indexHash(credential, s.algorithm)
	if err != nil {
		return nil, err
	}

	data, err := s.client.KV().Read(ctx, s.mount, s.secretPath(hash))
	if errors.Is(err, vault.ErrSecretNotFound) {
		span.SetAttributes(attribute.Bool("apikey.found", false))
		return nil, ErrKeyNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vault read failed")
		return nil, err
	}

	key, err := decodeVaultKey(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "corrupt record")
		return nil, err
	}
	if key.Hash == "" {
		key.Hash = hash
	}

	span.SetAttributes(attribute.Bool("apikey.found", true))
	return key, nil
}

// Put writes key under its hash.
func (s *VaultStore) Put(ctx context.Context, key *Key) error {
	if key == nil || key.Hash == "" {
		return ErrInvalidKey
	}

	raw, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("encode key record: %w", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("encode key record: %w", err)
	}

	return s.client.KV().Write(ctx, s.mount, s.secretPath(key.Hash), data)
}

// Ping checks that Vault is reachable and unsealed.
func (s *VaultStore) Ping(ctx context.Context) error {
	_, err := s.client.Health(ctx)
	return err
}

func (s *VaultStore) secretPath(hash string) string {
	return s.path + "/" + hash
}

// decodeVaultKey converts secret data to a Key through its JSON form.
func decodeVaultKey(data map[string]interface{}) (*Key, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode key record: %w", err)
	}

	var key Key
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("decode key record: %w", err)
	}
	return &key, nil
}

var (
	_ Store  = (*VaultStore)(nil)
	_ Pinger = (*VaultStore)(nil)
)
