package security

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is the default idle lifetime of a session.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore keeps security contexts across requests.
type SessionStore interface {
	// Load returns the context of an existing, unexpired session.
	Load(ctx context.Context, id string) (*Context, bool)

	// Create starts a new session with an empty context.
	Create(ctx context.Context) (string, *Context)

	// Delete ends a session.
	Delete(ctx context.Context, id string)
}

type sessionEntry struct {
	sc         *Context
	lastAccess time.Time
}

// MemorySessions is an in-memory SessionStore with idle expiry.
type MemorySessions struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySessions creates an in-memory session store.
// A non-positive ttl uses DefaultSessionTTL.
func NewMemorySessions(ttl time.Duration) *MemorySessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessions{
		entries: make(map[string]*sessionEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Load returns the context of an existing, unexpired session.
func (s *MemorySessions) Load(_ context.Context, id string) (*Context, bool) {
	if id == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(entry.lastAccess) > s.ttl {
		delete(s.entries, id)
		return nil, false
	}
	entry.lastAccess = now
	return entry.sc, true
}

// Create starts a new session with an empty context.
func (s *MemorySessions) Create(_ context.Context) (string, *Context) {
	id := uuid.NewString()
	sc := NewContext()

	s.mu.Lock()
	s.entries[id] = &sessionEntry{sc: sc, lastAccess: s.now()}
	s.mu.Unlock()

	return id, sc
}

// Delete ends a session.
func (s *MemorySessions) Delete(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Sweep removes expired sessions and returns how many were removed.
func (s *MemorySessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if now.Sub(entry.lastAccess) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (s *MemorySessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Ensure MemorySessions implements SessionStore.
var _ SessionStore = (*MemorySessions)(nil)
