package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const recordColumns = `
	id, kind, status, session_id, sender, recipient,
	token_address, token_symbol, amount, mode,
	tx_hash, route_id, failure_kind, error, archived,
	created_at, updated_at`

// Create inserts a new transaction record.
func (s *TransactionStore) Create(ctx context.Context, rec domain.TransactionRecord) error {
	const query = `
		INSERT INTO transaction_records (
			id, kind, status, session_id, sender, recipient,
			token_address, token_symbol, amount, mode,
			tx_hash, route_id, failure_kind, error, archived,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, FALSE,
			NOW(), NOW()
		)`

	status := rec.Status
	if status == "" {
		status = domain.TxStatusPending
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Kind, status, rec.SessionID, rec.Sender, rec.Recipient,
		rec.TokenAddress, rec.TokenSymbol, rec.Amount, rec.Mode,
		rec.TxHash, rec.RouteID, rec.FailureKind, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: create transaction record %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateStatus moves a record to status, filling result columns from upd.
// Zero-valued fields of upd leave the existing column untouched.
func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, status string, upd domain.TransactionUpdate) error {
	const query = `
		UPDATE transaction_records SET
			status = $2,
			tx_hash = COALESCE(NULLIF($3, ''), tx_hash),
			route_id = COALESCE(NULLIF($4, ''), route_id),
			failure_kind = COALESCE(NULLIF($5, ''), failure_kind),
			error = COALESCE(NULLIF($6, ''), error),
			updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, status, upd.TxHash, upd.RouteID, upd.FailureKind, upd.Error)
	if err != nil {
		return fmt.Errorf("postgres: update transaction record %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID returns one record or domain.ErrNotFound.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.TransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM transaction_records WHERE id = $1`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TransactionRecord{}, domain.ErrNotFound
		}
		return domain.TransactionRecord{}, fmt.Errorf("postgres: get transaction record %s: %w", id, err)
	}
	return rec, nil
}

// ListRecent returns records ordered newest first.
func (s *TransactionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TransactionRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + recordColumns + `
		FROM transaction_records
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transaction records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListTerminalUnarchived returns completed/failed records not yet shipped to
// cold storage.
func (s *TransactionStore) ListTerminalUnarchived(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + recordColumns + `
		FROM transaction_records
		WHERE NOT archived AND status IN ($1, $2)
		ORDER BY created_at
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, domain.TxStatusCompleted, domain.TxStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unarchived records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// MarkArchived flags records as shipped to cold storage.
func (s *TransactionStore) MarkArchived(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE transaction_records SET archived = TRUE, updated_at = NOW() WHERE id = ANY($1)`
	if _, err := s.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("postgres: mark records archived: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	err := row.Scan(
		&rec.ID, &rec.Kind, &rec.Status, &rec.SessionID, &rec.Sender, &rec.Recipient,
		&rec.TokenAddress, &rec.TokenSymbol, &rec.Amount, &rec.Mode,
		&rec.TxHash, &rec.RouteID, &rec.FailureKind, &rec.Error, &rec.Archived,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

func collectRecords(rows pgx.Rows) ([]domain.TransactionRecord, error) {
	var out []domain.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate transaction records: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
