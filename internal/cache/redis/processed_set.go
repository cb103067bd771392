package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// ProcessedSet implements the detector's idempotency set as per-key Redis
// entries with a TTL, so terminally classified transfers age out on their
// own instead of needing a sweeper.
type ProcessedSet struct {
	rdb *redis.Client
}

// NewProcessedSet creates a ProcessedSet backed by the given Client.
func NewProcessedSet(c *Client) *ProcessedSet {
	return &ProcessedSet{rdb: c.Underlying()}
}

func processedKey(key string) string {
	return "processed:" + key
}

// Contains reports whether key was already marked.
func (p *ProcessedSet) Contains(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, processedKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check processed %s: %w", key, err)
	}
	return n > 0, nil
}

// Add marks key for ttl.
func (p *ProcessedSet) Add(ctx context.Context, key string, ttl time.Duration) error {
	if err := p.rdb.Set(ctx, processedKey(key), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis: mark processed %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ProcessedSet = (*ProcessedSet)(nil)
