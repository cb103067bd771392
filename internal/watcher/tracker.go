// Package watcher implements inbound transfer detection: per-session scan
// cursors over chain height and a polling detector that classifies ERC-20
// Transfer logs against an expected amount.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// HeadReader supplies the current chain height for new-session cursors.
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Tracker owns watch-session cursors. A session's cursor only ever moves
// forward; re-scanning an already scanned range would re-detect transfers the
// idempotency set has not yet seen as terminal.
type Tracker struct {
	store  domain.SessionStore
	head   HeadReader
	maxAge time.Duration
	now    func() time.Time
}

// NewTracker builds a Tracker. maxAge bounds the watch window; stored
// sessions carry twice that as TTL so expiry can still be reported once
// before the entry ages out.
func NewTracker(store domain.SessionStore, head HeadReader, maxAge time.Duration) *Tracker {
	return &Tracker{store: store, head: head, maxAge: maxAge, now: time.Now}
}

func (t *Tracker) ttl() time.Duration { return 2 * t.maxAge }

// StartOrAdvance returns the session for id, creating it at the current chain
// height on first sight. created is true on the creation poll; the caller
// must not scan that poll, the fresh cursor exists precisely so transfers
// that predate the session are never replayed.
func (t *Tracker) StartOrAdvance(ctx context.Context, id string) (domain.Session, bool, error) {
	s, err := t.store.Get(ctx, id)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, false, fmt.Errorf("loading session %s: %w", id, err)
	}

	head, err := t.head.BlockNumber(ctx)
	if err != nil {
		return domain.Session{}, false, err
	}
	s = domain.Session{ID: id, StartBlock: head, CreatedAt: t.now().Unix()}
	if err := t.store.Put(ctx, s, t.ttl()); err != nil {
		return domain.Session{}, false, fmt.Errorf("storing session %s: %w", id, err)
	}
	return s, true, nil
}

// Expired reports whether the session has outlived its watch window.
func (t *Tracker) Expired(s domain.Session) bool {
	return t.now().Unix()-s.CreatedAt > int64(t.maxAge/time.Second)
}

// AdvanceTo moves the cursor to block, refusing to move it backwards. When
// refreshCreatedAt is set the watch window restarts, used after a matched
// detection so a follow-up transfer gets a full window again.
func (t *Tracker) AdvanceTo(ctx context.Context, s domain.Session, block uint64, refreshCreatedAt bool) error {
	if block > s.StartBlock {
		s.StartBlock = block
	}
	if refreshCreatedAt {
		s.CreatedAt = t.now().Unix()
	}
	if err := t.store.Put(ctx, s, t.ttl()); err != nil {
		return fmt.Errorf("advancing session %s: %w", s.ID, err)
	}
	return nil
}
