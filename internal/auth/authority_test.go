package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/keygate/internal/security"
)

// fakeAuthority is a configurable Authority that records its calls.
type fakeAuthority struct {
	mu         sync.Mutex
	principals map[string]string
	rejectMsg  string
	err        error
	calls      int
	seen       []*security.Token
}

func (f *fakeAuthority) Authenticate(_ context.Context, token *security.Token) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, token)
	if f.err != nil {
		return Unavailable(f.err)
	}
	if name, ok := f.principals[token.Credential()]; ok {
		return Grant(token.Authenticate(security.Principal{ID: name, Name: name}))
	}
	return Reject(f.rejectMsg)
}

func TestResultConstructors(t *testing.T) {
	t.Parallel()

	token := security.NewToken("k").Authenticate(security.Principal{Name: "user123"})

	granted := Grant(token)
	assert.Equal(t, VerdictGranted, granted.Verdict)
	assert.Same(t, token, granted.Token)

	rejected := Reject("Invalid API Key")
	assert.Equal(t, VerdictRejected, rejected.Verdict)
	assert.Equal(t, "Invalid API Key", rejected.Reason)

	cause := errors.New("redis down")
	unavailable := Unavailable(cause)
	assert.Equal(t, VerdictUnavailable, unavailable.Verdict)
	assert.ErrorIs(t, unavailable.Err, cause)

	assert.ErrorIs(t, Unavailable(nil).Err, ErrAuthorityUnavailable)
}

func TestResult_ZeroValueIsUnavailable(t *testing.T) {
	t.Parallel()

	var r Result
	assert.Equal(t, VerdictUnavailable, r.Verdict)
}

func TestVerdict_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verdict Verdict
		want    string
	}{
		{VerdictGranted, "granted"},
		{VerdictRejected, "rejected"},
		{VerdictUnavailable, "unavailable"},
		{Verdict(42), "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.verdict.String())
		})
	}
}

func TestAuthorityFunc(t *testing.T) {
	t.Parallel()

	var got string
	a := AuthorityFunc(func(_ context.Context, token *security.Token) Result {
		got = token.Credential()
		return Reject("no")
	})

	result := a.Authenticate(context.Background(), security.NewToken("abc"))
	assert.Equal(t, "abc", got)
	assert.Equal(t, VerdictRejected, result.Verdict)
}

func TestAtomicAuthority(t *testing.T) {
	t.Parallel()

	first := &fakeAuthority{principals: map[string]string{"k": "first"}}
	second := &fakeAuthority{principals: map[string]string{"k": "second"}}

	aa := NewAtomicAuthority(first)
	result := aa.Authenticate(context.Background(), security.NewToken("k"))
	require.Equal(t, VerdictGranted, result.Verdict)
	assert.Equal(t, "first", result.Token.PrincipalName())

	aa.Store(second)
	result = aa.Authenticate(context.Background(), security.NewToken("k"))
	require.Equal(t, VerdictGranted, result.Verdict)
	assert.Equal(t, "second", result.Token.PrincipalName())
	assert.Same(t, Authority(second), aa.Load())
}

func TestAtomicAuthority_Empty(t *testing.T) {
	t.Parallel()

	aa := &AtomicAuthority{}
	result := aa.Authenticate(context.Background(), security.NewToken("k"))
	assert.Equal(t, VerdictUnavailable, result.Verdict)
	assert.ErrorIs(t, result.Err, ErrAuthorityUnavailable)

	aa.Store(&fakeAuthority{})
	aa.Store(nil)
	assert.Nil(t, aa.Load())
}

func TestAuthenticationError(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")

	tests := []struct {
		name     string
		err      *AuthenticationError
		sentinel error
		contains string
	}{
		{
			name:     "unauthorized",
			err:      &AuthenticationError{Outcome: OutcomeUnauthorized, Reason: ReasonRequired},
			sentinel: ErrNoCredentials,
			contains: "unauthorized",
		},
		{
			name:     "forbidden",
			err:      &AuthenticationError{Outcome: OutcomeForbidden, Reason: "Invalid API Key"},
			sentinel: ErrAuthenticationFailed,
			contains: "Invalid API Key",
		},
		{
			name:     "unavailable",
			err:      &AuthenticationError{Outcome: OutcomeUnavailable, Reason: ReasonUnavailable, Cause: cause},
			sentinel: ErrAuthorityUnavailable,
			contains: "refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Contains(t, tt.err.Error(), tt.contains)
			assert.True(t, IsAuthenticationError(tt.err))
		})
	}

	assert.ErrorIs(t, &AuthenticationError{Outcome: OutcomeUnavailable, Cause: cause}, cause)
	assert.False(t, IsAuthenticationError(cause))
}
