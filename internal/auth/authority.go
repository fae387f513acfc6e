package auth

import (
	"context"
	"sync/atomic"

	"github.com/vyrodovalexey/keygate/internal/security"
)

// Authority decides whether a candidate token is authentic.
//
// Authenticate receives an unauthenticated token carrying the raw credential.
// On success it returns Grant with a token produced by token.Authenticate.
// A key that is known to be bad yields Reject; a failure to reach a verdict
// (store down, timeout) yields Unavailable.
type Authority interface {
	Authenticate(ctx context.Context, token *security.Token) Result
}

// AuthorityFunc adapts a function to the Authority interface.
type AuthorityFunc func(ctx context.Context, token *security.Token) Result

// Authenticate calls f(ctx, token).
func (f AuthorityFunc) Authenticate(ctx context.Context, token *security.Token) Result {
	return f(ctx, token)
}

// Verdict is the authority's decision on a credential.
type Verdict int

// Verdicts.
const (
	// VerdictUnavailable is the zero value so an empty Result never grants.
	VerdictUnavailable Verdict = iota
	VerdictGranted
	VerdictRejected
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictGranted:
		return "granted"
	case VerdictRejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

// Result is the outcome of an authority call.
type Result struct {
	Verdict Verdict

	// Token is the authenticated token when granted.
	Token *security.Token

	// Reason is the client-facing rejection message when rejected.
	Reason string

	// Err is the internal failure when unavailable. It is never sent to clients.
	Err error
}

// Grant returns a granted result carrying the authenticated token.
func Grant(token *security.Token) Result {
	return Result{Verdict: VerdictGranted, Token: token}
}

// Reject returns a rejected result with a client-facing reason.
func Reject(reason string) Result {
	return Result{Verdict: VerdictRejected, Reason: reason}
}

// Unavailable returns a result for an authority that could not reach a verdict.
func Unavailable(err error) Result {
	if err == nil {
		err = ErrAuthorityUnavailable
	}
	return Result{Verdict: VerdictUnavailable, Err: err}
}

// AtomicAuthority is an Authority whose delegate can be swapped at runtime,
// e.g. on configuration reload. An empty AtomicAuthority is unavailable.
type AtomicAuthority struct {
	current atomic.Pointer[authorityHolder]
}

type authorityHolder struct {
	authority Authority
}

// NewAtomicAuthority creates an AtomicAuthority delegating to a.
func NewAtomicAuthority(a Authority) *AtomicAuthority {
	aa := &AtomicAuthority{}
	aa.Store(a)
	return aa
}

// Store replaces the delegate.
func (a *AtomicAuthority) Store(authority Authority) {
	if authority == nil {
		a.current.Store(nil)
		return
	}
	a.current.Store(&authorityHolder{authority: authority})
}

// Load returns the current delegate.
func (a *AtomicAuthority) Load() Authority {
	h := a.current.Load()
	if h == nil {
		return nil
	}
	return h.authority
}

// Authenticate delegates to the current authority.
func (a *AtomicAuthority) Authenticate(ctx context.Context, token *security.Token) Result {
	delegate := a.Load()
	if delegate == nil {
		return Unavailable(ErrAuthorityUnavailable)
	}
	return delegate.Authenticate(ctx, token)
}

var (
	_ Authority = AuthorityFunc(nil)
	_ Authority = (*AtomicAuthority)(nil)
)
