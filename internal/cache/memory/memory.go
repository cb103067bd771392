// Package memory provides in-process implementations of the session and
// idempotency stores, used when no Redis endpoint is configured and in
// tests. Expiry is lazy: entries are dropped on the read that finds them
// stale.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

type sessionEntry struct {
	session  domain.Session
	deadline time.Time
}

// SessionStore is a map-backed domain.SessionStore.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
	now     func() time.Time
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{entries: make(map[string]sessionEntry), now: time.Now}
}

func (s *SessionStore) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	if s.now().After(e.deadline) {
		delete(s.entries, id)
		return domain.Session{}, domain.ErrNotFound
	}
	return e.session, nil
}

func (s *SessionStore) Put(_ context.Context, sess domain.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sess.ID] = sessionEntry{session: sess, deadline: s.now().Add(ttl)}
	return nil
}

// ProcessedSet is a map-backed domain.ProcessedSet.
type ProcessedSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewProcessedSet returns an empty set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{entries: make(map[string]time.Time), now: time.Now}
}

func (p *ProcessedSet) Contains(_ context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	deadline, ok := p.entries[key]
	if !ok {
		return false, nil
	}
	if p.now().After(deadline) {
		delete(p.entries, key)
		return false, nil
	}
	return true, nil
}

func (p *ProcessedSet) Add(_ context.Context, key string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[key] = p.now().Add(ttl)
	return nil
}
