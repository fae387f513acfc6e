package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	t.Parallel()

	tok := NewToken("good-key")

	assert.Equal(t, "good-key", tok.Credential())
	assert.False(t, tok.IsAuthenticated())
	assert.Empty(t, tok.PrincipalName())
	assert.Nil(t, tok.Roles())
	assert.Nil(t, tok.Scopes())
	assert.True(t, tok.AuthTime().IsZero())

	_, ok := tok.Principal()
	assert.False(t, ok)
}

func TestToken_Authenticate(t *testing.T) {
	t.Parallel()

	tok := NewToken("good-key")
	granted := tok.Authenticate(Principal{
		ID:     "key-1",
		Name:   "user123",
		Roles:  []string{"admin"},
		Scopes: []string{"read"},
	})

	require.NotSame(t, tok, granted)
	assert.False(t, tok.IsAuthenticated(), "original token must stay unauthenticated")
	assert.True(t, granted.IsAuthenticated())
	assert.Equal(t, "good-key", granted.Credential())
	assert.Equal(t, "user123", granted.PrincipalName())
	assert.True(t, granted.HasRole("admin"))
	assert.False(t, granted.HasRole("viewer"))
	assert.True(t, granted.HasScope("read"))
	assert.False(t, granted.HasScope("write"))
	assert.False(t, granted.AuthTime().IsZero())

	p, ok := granted.Principal()
	require.True(t, ok)
	assert.Equal(t, "key-1", p.ID)
}

func TestToken_AccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	roles := []string{"admin"}
	granted := NewToken("k").Authenticate(Principal{Name: "p", Roles: roles})

	roles[0] = "mutated"
	assert.Equal(t, []string{"admin"}, granted.Roles())

	got := granted.Roles()
	got[0] = "mutated"
	assert.Equal(t, []string{"admin"}, granted.Roles())
}

func TestToken_PrincipalMetadataIsCopied(t *testing.T) {
	t.Parallel()

	metadata := map[string]string{"tier": "free"}
	granted := NewToken("k").Authenticate(Principal{Name: "p", Metadata: metadata})

	metadata["tier"] = "changed-by-authority"
	p, ok := granted.Principal()
	require.True(t, ok)
	assert.Equal(t, "free", p.Metadata["tier"])

	p.Metadata["tier"] = "admin"
	p.Metadata["extra"] = "x"

	again, ok := granted.Principal()
	require.True(t, ok)
	assert.Equal(t, map[string]string{"tier": "free"}, again.Metadata)
}

func TestToken_IsExpired(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		token *Token
		want  bool
	}{
		{name: "unauthenticated", token: NewToken("k"), want: false},
		{name: "no expiry", token: NewToken("k").Authenticate(Principal{Name: "p"}), want: false},
		{name: "expired", token: NewToken("k").Authenticate(Principal{Name: "p", ExpiresAt: &past}), want: true},
		{name: "not expired", token: NewToken("k").Authenticate(Principal{Name: "p", ExpiresAt: &future}), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.token.IsExpired())
		})
	}
}

func TestToken_NilSafe(t *testing.T) {
	t.Parallel()

	var tok *Token
	assert.Empty(t, tok.Credential())
	assert.False(t, tok.IsAuthenticated())
	assert.False(t, tok.HasRole("admin"))
	assert.True(t, tok.AuthTime().IsZero())
}
