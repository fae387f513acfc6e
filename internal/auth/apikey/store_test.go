package apikey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys() []StaticKey {
	past := time.Now().Add(-time.Hour)
	return []StaticKey{
		{ID: "k1", Key: "valid-key", Name: "user123", Roles: []string{"admin"}, Scopes: []string{"read"}},
		{ID: "k2", Key: "revoked-key", Revoked: true},
		{ID: "k3", Key: "disabled-key", Disabled: true},
		{ID: "k4", Key: "expired-key", ExpiresAt: &past},
	}
}

func TestStaticKey_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		key       StaticKey
		expectErr bool
	}{
		{"raw key", StaticKey{ID: "a", Key: "secret"}, false},
		{"hash only", StaticKey{ID: "a", Hash: "abc"}, false},
		{"missing id", StaticKey{Key: "secret"}, true},
		{"missing key and hash", StaticKey{ID: "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.key.Validate()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaticKey_ToKey(t *testing.T) {
	t.Parallel()

	key, err := (&StaticKey{ID: "a", Key: "abc", Disabled: true}).ToKey(HashAlgSHA256)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", key.Hash)
	assert.False(t, key.Enabled)

	key, err = (&StaticKey{ID: "b", Hash: "precomputed"}).ToKey(HashAlgSHA256)
	require.NoError(t, err)
	assert.Equal(t, "precomputed", key.Hash)
	assert.True(t, key.Enabled)
}

func TestMemoryStore_Find(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{HashAlgSHA256, HashAlgBcrypt} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()

			store, err := NewMemoryStore(testKeys(), alg)
			require.NoError(t, err)
			assert.Equal(t, 4, store.Len())

			key, err := store.Find(context.Background(), "valid-key")
			require.NoError(t, err)
			assert.Equal(t, "k1", key.ID)
			assert.Equal(t, "user123", key.PrincipalName())

			_, err = store.Find(context.Background(), "unknown-key")
			require.ErrorIs(t, err, ErrKeyNotFound)

			_, err = store.Find(context.Background(), "")
			require.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestMemoryStore_FindReturnsCopy(t *testing.T) {
	t.Parallel()

	store, err := NewMemoryStore(testKeys(), HashAlgSHA256)
	require.NoError(t, err)

	key, err := store.Find(context.Background(), "valid-key")
	require.NoError(t, err)
	key.Roles[0] = "tampered"

	again, err := store.Find(context.Background(), "valid-key")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, again.Roles)
}

func TestMemoryStore_Put(t *testing.T) {
	t.Parallel()

	store, err := NewMemoryStore(nil, HashAlgSHA256)
	require.NoError(t, err)

	require.ErrorIs(t, store.Put(context.Background(), &Key{ID: "x"}), ErrInvalidKey)

	hash, err := HashKey("new-key", HashAlgSHA256)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), &Key{ID: "x", Hash: hash, Enabled: true}))

	key, err := store.Find(context.Background(), "new-key")
	require.NoError(t, err)
	assert.Equal(t, "x", key.ID)
}

func TestNewMemoryStore_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewMemoryStore(nil, "md5")
	require.ErrorIs(t, err, ErrUnsupportedHash)

	_, err = NewMemoryStore([]StaticKey{{ID: "a"}}, HashAlgSHA256)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keys[0]")
}

func TestKey_Principal(t *testing.T) {
	t.Parallel()

	expires := time.Now().Add(time.Hour)
	key := &Key{
		ID:        "k1",
		Roles:     []string{"admin"},
		Scopes:    []string{"read"},
		Metadata:  map[string]string{"team": "core"},
		ExpiresAt: &expires,
	}

	p := key.Principal()
	assert.Equal(t, "k1", p.ID)
	assert.Equal(t, "k1", p.Name)
	assert.Equal(t, []string{"admin"}, p.Roles)
	assert.Equal(t, "core", p.Metadata["team"])
	assert.False(t, key.IsExpired(time.Now()))
	assert.True(t, key.IsExpired(expires.Add(time.Second)))
}
