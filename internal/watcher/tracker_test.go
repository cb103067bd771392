package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ortegaa03/vpnchain-router/internal/cache/memory"
	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

type fakeHead struct {
	head uint64
	err  error
}

func (f *fakeHead) BlockNumber(context.Context) (uint64, error) {
	return f.head, f.err
}

func TestTrackerStartOrAdvanceCreatesAtHead(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(memory.NewSessionStore(), &fakeHead{head: 1200}, 10*time.Minute)

	s, created, err := tr.StartOrAdvance(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(1200), s.StartBlock)

	s2, created, err := tr.StartOrAdvance(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.StartBlock, s2.StartBlock)
	assert.Equal(t, s.CreatedAt, s2.CreatedAt)
}

func TestTrackerAdvanceToNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	tr := NewTracker(store, &fakeHead{head: 500}, 10*time.Minute)

	s, _, err := tr.StartOrAdvance(ctx, "sess-1")
	require.NoError(t, err)

	require.NoError(t, tr.AdvanceTo(ctx, s, 600, false))
	s, err = store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), s.StartBlock)

	require.NoError(t, tr.AdvanceTo(ctx, s, 550, false))
	s, err = store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), s.StartBlock)
}

func TestTrackerAdvanceToRefreshesWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	tr := NewTracker(store, &fakeHead{head: 500}, 10*time.Minute)
	tr.now = func() time.Time { return time.Unix(1000, 0) }

	s, _, err := tr.StartOrAdvance(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), s.CreatedAt)

	tr.now = func() time.Time { return time.Unix(1400, 0) }
	require.NoError(t, tr.AdvanceTo(ctx, s, 501, true))
	s, err = store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1400), s.CreatedAt)
}

func TestTrackerExpired(t *testing.T) {
	tr := NewTracker(memory.NewSessionStore(), &fakeHead{head: 1}, 600*time.Second)
	tr.now = func() time.Time { return time.Unix(2000, 0) }

	assert.False(t, tr.Expired(domain.Session{CreatedAt: 1500}))
	assert.False(t, tr.Expired(domain.Session{CreatedAt: 1400})) // exactly maxAge
	assert.True(t, tr.Expired(domain.Session{CreatedAt: 1399}))
}
