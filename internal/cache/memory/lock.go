package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// LockManager is a map-backed domain.LockManager for single-process
// deployments. Held locks expire at their TTL like the Redis version.
type LockManager struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLockManager returns an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]time.Time), now: time.Now}
}

// Acquire takes the lock or returns ErrLockHeld. The returned release
// function is safe to call more than once.
func (m *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if deadline, ok := m.held[key]; ok && m.now().Before(deadline) {
		return nil, domain.ErrLockHeld
	}
	m.held[key] = m.now().Add(ttl)

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}
	return release, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
