package security

import (
	"context"
	"sync"
)

// Context holds the current token of a request or session.
// It is safe for concurrent use so a session-scoped Context can be shared by
// parallel requests.
type Context struct {
	mu      sync.RWMutex
	current *Token
}

// NewContext creates an empty security context.
func NewContext() *Context {
	return &Context{}
}

// Current returns the current token.
func (c *Context) Current() (*Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.current != nil
}

// SetCurrent replaces the current token. A nil token clears the context.
func (c *Context) SetCurrent(token *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = token
}

// Clear removes the current token.
func (c *Context) Clear() {
	c.SetCurrent(nil)
}

// ClearIfCredential clears the context when the current token carries the
// given raw credential. It returns true if the context was cleared.
func (c *Context) ClearIfCredential(credential string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.credential != credential {
		return false
	}
	c.current = nil
	return true
}

type securityContextKey struct{}

// WithContext attaches a security context to ctx.
func WithContext(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// FromContext returns the security context attached to ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(*Context)
	return sc, ok && sc != nil
}

// CurrentToken returns the current token of the security context attached to ctx.
func CurrentToken(ctx context.Context) (*Token, bool) {
	sc, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return sc.Current()
}
