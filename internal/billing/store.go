package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pustaka-labs/backend-pustaka/internal/db"
)

// FeeRecord is the persisted paid/unpaid state for one (author, period).
type FeeRecord struct {
	AuthorID  string
	PeriodKey string
	IsPaid    bool
	PaidAt    time.Time
	Note      string
}

// Store provides pgx-backed access to platform_fee_status.
type Store struct {
	Pool *pgxpool.Pool
}

// SetPaid idempotently upserts the paid flag for an author-period. Repeated
// calls converge on the same single row.
func (s *Store) SetPaid(ctx context.Context, authorID, periodKey string, paid bool, note string) (FeeRecord, error) {
	var paidAt any
	if paid {
		paidAt = time.Now().UTC()
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO platform_fee_status (author_id, period_key, is_paid, paid_at, note)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (author_id, period_key)
		DO UPDATE SET is_paid = EXCLUDED.is_paid,
		              paid_at = EXCLUDED.paid_at,
		              note = EXCLUDED.note,
		              updated_at = now()
		RETURNING author_id, period_key, is_paid, paid_at, note`,
		db.ToUUID(authorID), periodKey, paid, paidAt, note)
	return scanFeeRecord(row)
}

func scanFeeRecord(row pgx.Row) (FeeRecord, error) {
	var (
		rec    FeeRecord
		paidAt pgtype.Timestamptz
	)
	if err := row.Scan(&rec.AuthorID, &rec.PeriodKey, &rec.IsPaid, &paidAt, &rec.Note); err != nil {
		return FeeRecord{}, err
	}
	rec.PaidAt = db.TimeOrZero(paidAt)
	return rec, nil
}

// Get fetches the stored state for an author-period. A missing row is not an
// error: it means unpaid with no note.
func (s *Store) Get(ctx context.Context, authorID, periodKey string) (FeeRecord, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT author_id, period_key, is_paid, paid_at, note
		FROM platform_fee_status WHERE author_id = $1 AND period_key = $2`,
		db.ToUUID(authorID), periodKey)
	rec, err := scanFeeRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return FeeRecord{AuthorID: authorID, PeriodKey: periodKey}, nil
	}
	return rec, err
}

// ListForPeriod returns all stored records for one period key.
func (s *Store) ListForPeriod(ctx context.Context, periodKey string) (map[string]FeeRecord, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT author_id, period_key, is_paid, paid_at, note
		FROM platform_fee_status WHERE period_key = $1`, periodKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]FeeRecord{}
	for rows.Next() {
		rec, err := scanFeeRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.AuthorID] = rec
	}
	return out, rows.Err()
}
