package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// ArchiveSink receives exported record batches. s3blob.Writer implements it.
type ArchiveSink interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// archiveBatchSize caps how many records one export object holds.
const archiveBatchSize = 100

// Archiver periodically ships terminal transaction records to cold storage
// and marks them archived so the hot table stays small.
type Archiver struct {
	records  domain.TransactionStore
	sink     ArchiveSink
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewArchiver creates an Archiver running once per interval.
func NewArchiver(records domain.TransactionStore, sink ArchiveSink, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		records:  records,
		sink:     sink,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run archives on a ticker until ctx is cancelled. Failures are logged and
// retried on the next tick; records stay unarchived until an upload lands.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := a.RunOnce(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed", slog.Any("error", err))
			} else if n > 0 {
				a.logger.InfoContext(ctx, "archived transaction records", slog.Int("count", n))
			}
		}
	}
}

// RunOnce exports one batch of terminal unarchived records and returns how
// many were shipped. Records are marked archived only after the upload
// succeeds.
func (a *Archiver) RunOnce(ctx context.Context) (int, error) {
	recs, err := a.records.ListTerminalUnarchived(ctx, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing archivable records: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(recs)
	if err != nil {
		return 0, fmt.Errorf("encoding archive batch: %w", err)
	}

	ts := a.now().UTC()
	path := fmt.Sprintf("transactions/%s/%s.json", ts.Format("2006-01-02"), ts.Format("150405.000000000"))
	if err := a.sink.Put(ctx, path, bytes.NewReader(body), "application/json"); err != nil {
		return 0, fmt.Errorf("uploading archive batch: %w", err)
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	if err := a.records.MarkArchived(ctx, ids); err != nil {
		// The batch is uploaded but still flagged hot. The next pass will
		// re-export the same records, which is safe: objects are keyed by
		// timestamp and record ids are stable.
		return len(recs), fmt.Errorf("marking records archived: %w", err)
	}
	return len(recs), nil
}
