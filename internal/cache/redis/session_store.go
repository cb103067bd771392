package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// SessionStore implements domain.SessionStore on Redis with native TTL
// expiry. Cursors survive process restarts, so an in-flight watch session is
// not replayed from an old block after a redeploy.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a SessionStore backed by the given Client.
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{rdb: c.Underlying()}
}

func sessionKey(id string) string {
	return "session:" + id
}

type sessionRecord struct {
	StartBlock uint64 `json:"start_block"`
	CreatedAt  int64  `json:"created_at"`
}

// Get returns the stored session or domain.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (domain.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return domain.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("redis: get session %s: %w", id, err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Session{}, fmt.Errorf("redis: decode session %s: %w", id, err)
	}
	return domain.Session{ID: id, StartBlock: rec.StartBlock, CreatedAt: rec.CreatedAt}, nil
}

// Put stores or replaces the session, refreshing its TTL.
func (s *SessionStore) Put(ctx context.Context, sess domain.Session, ttl time.Duration) error {
	raw, err := json.Marshal(sessionRecord{StartBlock: sess.StartBlock, CreatedAt: sess.CreatedAt})
	if err != nil {
		return fmt.Errorf("redis: encode session %s: %w", sess.ID, err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put session %s: %w", sess.ID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
