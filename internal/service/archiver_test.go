package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

type fakeSink struct {
	paths  []string
	bodies [][]byte
	types  []string
	err    error
}

func (f *fakeSink) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if f.err != nil {
		return f.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.paths = append(f.paths, path)
	f.bodies = append(f.bodies, body)
	f.types = append(f.types, contentType)
	return nil
}

func TestArchiverShipsTerminalRecords(t *testing.T) {
	records := newFakeRecords()
	ctx := context.Background()
	require.NoError(t, records.Create(ctx, domain.TransactionRecord{ID: "a", Status: domain.TxStatusCompleted}))
	require.NoError(t, records.Create(ctx, domain.TransactionRecord{ID: "b", Status: domain.TxStatusFailed}))
	require.NoError(t, records.Create(ctx, domain.TransactionRecord{ID: "c", Status: domain.TxStatusPending}))

	sink := &fakeSink{}
	arch := NewArchiver(records, sink, time.Minute, newTestLogger())
	arch.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	n, err := arch.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, sink.paths, 1)
	assert.Equal(t, "transactions/2026-03-14/093000.000000000.json", sink.paths[0])
	assert.Equal(t, "application/json", sink.types[0])

	var shipped []domain.TransactionRecord
	require.NoError(t, json.Unmarshal(sink.bodies[0], &shipped))
	assert.Len(t, shipped, 2)

	// Terminal records are now archived; the pending one is untouched.
	recA, _ := records.GetByID(ctx, "a")
	recB, _ := records.GetByID(ctx, "b")
	recC, _ := records.GetByID(ctx, "c")
	assert.True(t, recA.Archived)
	assert.True(t, recB.Archived)
	assert.False(t, recC.Archived)

	// A second pass finds nothing to do.
	n, err = arch.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, sink.paths, 1)
}

func TestArchiverUploadFailureKeepsRecordsHot(t *testing.T) {
	records := newFakeRecords()
	ctx := context.Background()
	require.NoError(t, records.Create(ctx, domain.TransactionRecord{ID: "a", Status: domain.TxStatusCompleted}))

	sink := &fakeSink{err: errors.New("bucket unreachable")}
	arch := NewArchiver(records, sink, time.Minute, newTestLogger())

	_, err := arch.RunOnce(ctx)
	require.Error(t, err)

	rec, _ := records.GetByID(ctx, "a")
	assert.False(t, rec.Archived)
}

func TestArchiverNoTerminalRecords(t *testing.T) {
	records := newFakeRecords()
	sink := &fakeSink{}
	arch := NewArchiver(records, sink, time.Minute, newTestLogger())

	n, err := arch.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sink.paths)
}
