package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// TxRecordRepository implements txledger.Store using PostgreSQL
type TxRecordRepository struct {
	pool *pgxpool.Pool
}

// NewTxRecordRepository creates a new PostgreSQL ledger store
func NewTxRecordRepository(pool *pgxpool.Pool) *TxRecordRepository {
	return &TxRecordRepository{pool: pool}
}

// LoadAll retrieves every tracked transaction
func (r *TxRecordRepository) LoadAll(ctx context.Context) ([]txledger.Record, error) {
	query := `
		SELECT id, subject, chain_id, account, submitted_at, status, reason, resolved_at
		FROM tracked_transactions
		ORDER BY submitted_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked transactions: %w", err)
	}
	defer rows.Close()

	var records []txledger.Record
	for rows.Next() {
		var (
			rec        txledger.Record
			subject    string
			status     string
			resolvedAt *time.Time
		)
		err := rows.Scan(
			&rec.ID,
			&subject,
			&rec.ChainID,
			&rec.Account,
			&rec.SubmittedAt,
			&status,
			&rec.Reason,
			&resolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked transaction: %w", err)
		}

		rec.Subject = txledger.Subject(subject)
		rec.Status = txledger.Status(status)
		if !rec.Subject.IsValid() || !rec.Status.IsValid() {
			return nil, fmt.Errorf("%w: %s: subject %q status %q", txledger.ErrCorruptRecord, rec.ID, subject, status)
		}
		rec.SubmittedAt = rec.SubmittedAt.UTC()
		if resolvedAt != nil {
			rec.ResolvedAt = resolvedAt.UTC()
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracked transactions: %w", err)
	}

	return records, nil
}

// Put inserts the record, or moves an existing PENDING row to the record's state.
// Terminal rows are never rewritten.
func (r *TxRecordRepository) Put(ctx context.Context, rec txledger.Record) error {
	query := `
		INSERT INTO tracked_transactions (id, subject, chain_id, account, submitted_at, status, reason, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			resolved_at = EXCLUDED.resolved_at
		WHERE tracked_transactions.status = 'PENDING'
	`

	var resolvedAt *time.Time
	if !rec.ResolvedAt.IsZero() {
		t := rec.ResolvedAt.Truncate(time.Millisecond).UTC()
		resolvedAt = &t
	}

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		string(rec.Subject),
		rec.ChainID,
		rec.Account,
		rec.SubmittedAt.Truncate(time.Millisecond).UTC(),
		string(rec.Status),
		rec.Reason,
		resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put tracked transaction %s: %w", rec.ID, err)
	}

	return nil
}

var _ txledger.Store = (*TxRecordRepository)(nil)
