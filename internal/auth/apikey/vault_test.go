package apikey

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/keygate/internal/vault"
)

// fakeVault is an in-memory vault.Client.
type fakeVault struct {
	mu      sync.Mutex
	secrets map[string]map[string]interface{}
	err     error
}

func newFakeVault() *fakeVault {
	return &fakeVault{secrets: make(map[string]map[string]interface{})}
}

func (f *fakeVault) KV() vault.KVClient { return f }

func (f *fakeVault) Health(context.Context) (*vault.HealthStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &vault.HealthStatus{Initialized: true}, nil
}

func (f *fakeVault) Read(_ context.Context, mount, path string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.secrets[mount+"/"+path]
	if !ok {
		return nil, vault.ErrSecretNotFound
	}
	return data, nil
}

func (f *fakeVault) Write(_ context.Context, mount, path string, data map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.secrets[mount+"/"+path] = data
	return nil
}

func TestVaultStore_PutFind(t *testing.T) {
	t.Parallel()

	fv := newFakeVault()
	store, err := NewVaultStore(fv, "", "/keygate/apikeys/", HashAlgSHA256)
	require.NoError(t, err)

	hash, err := HashKey("vault-key", HashAlgSHA256)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), &Key{
		ID:       "v1",
		Hash:     hash,
		Scopes:   []string{"write"},
		Metadata: map[string]string{"owner": "ops"},
		Enabled:  true,
	}))

	_, ok := fv.secrets["secret/keygate/apikeys/"+hash]
	assert.True(t, ok)

	key, err := store.Find(context.Background(), "vault-key")
	require.NoError(t, err)
	assert.Equal(t, "v1", key.ID)
	assert.Equal(t, []string{"write"}, key.Scopes)
	assert.Equal(t, "ops", key.Metadata["owner"])
	assert.True(t, key.Enabled)

	_, err = store.Find(context.Background(), "missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestVaultStore_HashDefaultsToPath(t *testing.T) {
	t.Parallel()

	fv := newFakeVault()
	hash, err := HashKey("k", HashAlgSHA256)
	require.NoError(t, err)
	fv.secrets["secret/"+DefaultVaultPath+"/"+hash] = map[string]interface{}{
		"id":      "manual",
		"enabled": true,
	}

	store, err := NewVaultStore(fv, "", "", HashAlgSHA256)
	require.NoError(t, err)

	key, err := store.Find(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, hash, key.Hash)
	assert.Equal(t, "manual", key.ID)
}

func TestVaultStore_Errors(t *testing.T) {
	t.Parallel()

	fv := newFakeVault()
	fv.err = errors.New("vault sealed")
	store, err := NewVaultStore(fv, "kv", "keys", HashAlgSHA256)
	require.NoError(t, err)

	_, err = store.Find(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
	assert.Error(t, store.Ping(context.Background()))

	_, err = NewVaultStore(nil, "", "", HashAlgSHA256)
	require.Error(t, err)

	_, err = NewVaultStore(fv, "", "", HashAlgBcrypt)
	require.ErrorIs(t, err, ErrNonDeterministicHash)
}

func TestVaultStore_CorruptRecord(t *testing.T) {
	t.Parallel()

	fv := newFakeVault()
	hash, err := HashKey("k", HashAlgSHA256)
	require.NoError(t, err)
	fv.secrets["secret/"+DefaultVaultPath+"/"+hash] = map[string]interface{}{"roles": "not-a-list"}

	store, err := NewVaultStore(fv, "", "", HashAlgSHA256)
	require.NoError(t, err)

	_, err = store.Find(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decode key record"))
}
