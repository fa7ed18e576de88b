// Package session tracks the short-lived server-side record correlating one
// challenge/verification round to a client IP and user-agent.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// TTL is the absolute session lifetime. Expiry is checked on read; a store
// may additionally sweep or rely on backend TTLs, but is not required to.
const TTL = 30 * time.Minute

// ErrNotFound covers both unknown and expired sessions: callers treat the
// two identically and ask the client to start a new round.
var ErrNotFound = errors.New("session not found or expired")

type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Verified  bool      `json:"verified"`
}

// Expired reports whether the session has outlived TTL at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > TTL
}

// Store is the injected persistence boundary for sessions. Implementations
// must be safe for concurrent use and must make Put/Delete atomic per key.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// Manager owns session lifecycle on top of a Store. No other component
// mutates session records directly.
type Manager struct {
	store Store
	now   func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Create generates a fresh 16-byte hex identifier and inserts an unverified
// session. The entropy source makes collision checks unnecessary.
func (m *Manager) Create(ctx context.Context, ip, userAgent string) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:        id,
		CreatedAt: m.now(),
		IP:        ip,
		UserAgent: userAgent,
	}
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the session or ErrNotFound for unknown and logically-expired
// identifiers alike. Expired entries are deleted on detection.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return nil, ErrNotFound
	}
	return s, nil
}

// MarkVerified flips the verified flag. Idempotent, last-writer-wins:
// verification decisions are monotonic in practice, the store only has to
// keep the map uncorrupted under concurrent writers.
func (m *Manager) MarkVerified(ctx context.Context, id string, verified bool) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Verified = verified
	return m.store.Put(ctx, s)
}

func newID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
