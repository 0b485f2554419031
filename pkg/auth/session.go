package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/psantana5/agencysite/pkg/models"
)

// DefaultSessionTTL is used when a SessionManager is created with a zero TTL
const DefaultSessionTTL = 12 * time.Hour

// Session is an authenticated admin session
type Session struct {
	ID        string
	UserID    string
	Email     string
	Role      models.Role
	CreatedAt time.Time
	ExpiresAt time.Time

	hash [sha256.Size]byte
}

// SessionManager issues and validates session tokens. Tokens have the
// form <id>.<secret>; only a SHA-256 digest of the secret is kept.
type SessionManager struct {
	ttl      time.Duration
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// NewSessionManager creates a session manager
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		ttl:      ttl,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// TTL returns the lifetime of new sessions
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// Create starts a session for user and returns its token
func (sm *SessionManager) Create(user *models.User) (string, *Session, error) {
	id, err := randomString(16)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	secret, err := randomString(32)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session secret: %w", err)
	}

	now := sm.now()
	s := &Session{
		ID:        id,
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
		hash:      sha256.Sum256([]byte(secret)),
	}

	sm.mu.Lock()
	sm.sessions[id] = s
	sm.mu.Unlock()

	return id + "." + secret, s, nil
}

// Validate returns the session a token belongs to
func (sm *SessionManager) Validate(token string) (*Session, error) {
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return nil, ErrInvalidToken
	}

	sm.mu.RLock()
	s, ok := sm.sessions[id]
	sm.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidToken
	}

	sum := sha256.Sum256([]byte(secret))
	if subtle.ConstantTimeCompare(sum[:], s.hash[:]) != 1 {
		return nil, ErrInvalidToken
	}
	if !sm.now().Before(s.ExpiresAt) {
		sm.Revoke(token)
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Revoke ends the session a token belongs to
func (sm *SessionManager) Revoke(token string) {
	id, _, _ := strings.Cut(token, ".")
	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()
}

// RevokeUser ends every session of a user
func (sm *SessionManager) RevokeUser(userID string) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	n := 0
	for id, s := range sm.sessions {
		if s.UserID == userID {
			delete(sm.sessions, id)
			n++
		}
	}
	return n
}

// Sweep removes expired sessions
func (sm *SessionManager) Sweep() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	n := 0
	for id, s := range sm.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(sm.sessions, id)
			n++
		}
	}
	return n
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Run sweeps expired sessions every interval until ctx is cancelled
func (sm *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.Sweep()
		}
	}
}
