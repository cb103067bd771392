package domain

import (
	"context"
	"time"
)

// SessionStore holds watch-session cursors keyed by session id. Entries carry
// a TTL so abandoned sessions age out without explicit deletion. Backed by
// Redis in production and an in-process map otherwise; both must be safe for
// concurrent use.
type SessionStore interface {
	// Get returns the stored session or ErrNotFound.
	Get(ctx context.Context, id string) (Session, error)
	// Put stores or replaces the session, refreshing its TTL.
	Put(ctx context.Context, s Session, ttl time.Duration) error
}

// ProcessedSet is the idempotency set of terminally classified transfers.
// Keys are "(sessionID:txHash:amount)" strings.
type ProcessedSet interface {
	Contains(ctx context.Context, key string) (bool, error)
	Add(ctx context.Context, key string, ttl time.Duration) error
}

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TransactionStore persists TransactionRecord lifecycles.
type TransactionStore interface {
	Create(ctx context.Context, rec TransactionRecord) error
	// UpdateStatus moves a record to status and fills the result columns.
	// Zero-valued fields of upd are left untouched.
	UpdateStatus(ctx context.Context, id string, status string, upd TransactionUpdate) error
	GetByID(ctx context.Context, id string) (TransactionRecord, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]TransactionRecord, error)
	// ListTerminalUnarchived returns completed/failed records not yet
	// shipped to cold storage.
	ListTerminalUnarchived(ctx context.Context, limit int) ([]TransactionRecord, error)
	MarkArchived(ctx context.Context, ids []string) error
}

// TransactionUpdate carries the optional result columns of a status change.
type TransactionUpdate struct {
	TxHash      string
	RouteID     string
	FailureKind string
	Error       string
}

// LockManager provides distributed locks, used to serialize settlements that
// share the single signing wallet.
type LockManager interface {
	// Acquire obtains the lock or returns ErrLockHeld. The returned function
	// releases the lock and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus publishes settlement lifecycle events for push delivery to
// connected clients.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// RateLimiter answers whether a keyed request fits under a sliding window.
type RateLimiter interface {
	// Allow reports whether the request is permitted and, if so, counts it.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
