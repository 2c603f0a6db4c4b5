package session

import (
	"context"
	"sync"
	"time"

	"github.com/dreamlink/dreamlinkd/internal/crypto"
)

const challengeLength = 8

// Memory is the in-process Store. Expired sessions are evicted lazily on
// lookup and by CleanExpired.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithTTL overrides the default session TTL.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-process store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		sessions: make(map[string]*Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates a session and returns its token and challenge. Token
// collisions regenerate rather than overwrite.
func (m *Memory) Issue(ctx context.Context, userID, service, branch string) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := crypto.AuthToken()
	for _, exists := m.sessions[token]; exists; _, exists = m.sessions[token] {
		token = crypto.AuthToken()
	}

	challenge := crypto.Challenge(challengeLength)
	m.sessions[token] = &Session{
		UserID:        userID,
		Service:       service,
		Branch:        branch,
		ChallengeHash: crypto.MD5Hex(challenge),
		ExpiresAt:     m.now().Add(m.ttl),
	}
	return Credentials{Token: token, Challenge: challenge}, nil
}

// Get resolves a token for the given service.
func (m *Memory) Get(ctx context.Context, token, service string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	if m.now().After(s.ExpiresAt) {
		delete(m.sessions, token)
		return nil, nil
	}
	if s.Service != service {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// Remove drops a session if present.
func (m *Memory) Remove(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// CleanExpired evicts every expired session and returns how many were
// dropped. Meant to run periodically from the server loop.
func (m *Memory) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for token, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, token)
			dropped++
		}
	}
	return dropped
}

// Count returns the number of live entries, expired ones included until
// eviction.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
