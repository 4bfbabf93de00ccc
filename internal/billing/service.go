package billing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/events"
	"github.com/pustaka-labs/backend-pustaka/internal/obs"
)

// Author is the billing-facing view of an author account.
type Author struct {
	ID          string
	Email       string
	DisplayName string
	JoinedAt    time.Time
}

// AuthorSource resolves author accounts.
type AuthorSource interface {
	GetAuthor(ctx context.Context, id string) (Author, error)
}

// SellerSource lists authors with completed sales in a window.
type SellerSource interface {
	SellingAuthorIDs(ctx context.Context, from, to time.Time) ([]string, error)
}

// FeeStore persists per-period paid state.
type FeeStore interface {
	SetPaid(ctx context.Context, authorID, periodKey string, paid bool, note string) (FeeRecord, error)
	Get(ctx context.Context, authorID, periodKey string) (FeeRecord, error)
	ListForPeriod(ctx context.Context, periodKey string) (map[string]FeeRecord, error)
}

// Service exposes fee reporting and the mark-paid admin flow.
type Service struct {
	Engine   *Engine
	Strategy Strategy
	Authors  AuthorSource
	Sellers  SellerSource
	Fees     FeeStore
	Bus      *events.Bus
	Metrics  *obs.MarketplaceMetrics
	Logger   zerolog.Logger
	Now      func() time.Time
}

var errNotConfigured = errors.New("billing: service not configured")

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Row is one author's liability line in a period report.
type Row struct {
	Author     Author
	Period     Period
	GrossSales int64
	FeeDue     int64
	SalesCount int
	IsPaid     bool
	PaidAt     time.Time
	Note       string
	IsOverdue  bool
	State      string
}

// StatusForPeriod computes every selling author's liability for the period
// identified by key. Authors whose entire window falls inside their trial
// contribute zero and are still listed when they had sales.
func (s *Service) StatusForPeriod(ctx context.Context, periodKey string) ([]Row, Period, error) {
	if s == nil || s.Engine == nil || s.Fees == nil {
		return nil, Period{}, errNotConfigured
	}
	period, err := s.Strategy.ParseKey(periodKey, time.Time{})
	if err != nil {
		return nil, Period{}, common.ValidationError(err.Error())
	}

	authorIDs, err := s.Sellers.SellingAuthorIDs(ctx, period.Start, period.End)
	if err != nil {
		return nil, Period{}, err
	}
	records, err := s.Fees.ListForPeriod(ctx, period.Key)
	if err != nil {
		return nil, Period{}, err
	}

	now := s.now()
	rows := make([]Row, 0, len(authorIDs))
	for _, id := range authorIDs {
		author, err := s.Authors.GetAuthor(ctx, id)
		if err != nil {
			return nil, Period{}, err
		}
		status, err := s.Engine.ComputeFeeStatus(ctx, id, author.JoinedAt, period)
		if err != nil {
			return nil, Period{}, err
		}
		rec := records[id]
		rows = append(rows, Row{
			Author:     author,
			Period:     period,
			GrossSales: status.GrossSales,
			FeeDue:     status.FeeDue,
			SalesCount: status.SalesCount,
			IsPaid:     rec.IsPaid,
			PaidAt:     rec.PaidAt,
			Note:       rec.Note,
			IsOverdue:  status.IsOverdue(now, rec.IsPaid),
			State:      status.State(now, rec.IsPaid),
		})
	}
	if s.Metrics != nil {
		s.Metrics.FeeCycleRuns.Inc()
	}
	return rows, period, nil
}

// CurrentForAuthor computes the author's liability in their current cycle.
func (s *Service) CurrentForAuthor(ctx context.Context, authorID string) (Row, error) {
	if s == nil || s.Engine == nil {
		return Row{}, errNotConfigured
	}
	author, err := s.Authors.GetAuthor(ctx, authorID)
	if err != nil {
		return Row{}, err
	}
	now := s.now()
	period := s.Strategy.CurrentPeriod(now, author.JoinedAt)
	status, err := s.Engine.ComputeFeeStatus(ctx, authorID, author.JoinedAt, period)
	if err != nil {
		return Row{}, err
	}
	rec, err := s.Fees.Get(ctx, authorID, period.Key)
	if err != nil {
		return Row{}, err
	}
	return Row{
		Author:     author,
		Period:     period,
		GrossSales: status.GrossSales,
		FeeDue:     status.FeeDue,
		SalesCount: status.SalesCount,
		IsPaid:     rec.IsPaid,
		PaidAt:     rec.PaidAt,
		Note:       rec.Note,
		IsOverdue:  status.IsOverdue(now, rec.IsPaid),
		State:      status.State(now, rec.IsPaid),
	}, nil
}

// MarkPaid records a manual fee settlement for an author-period. Idempotent.
// Marking paid does not clear an admin block; unblocking is a separate call.
func (s *Service) MarkPaid(ctx context.Context, authorID, periodKey, note string) (FeeRecord, error) {
	return s.setPaid(ctx, authorID, periodKey, true, note, events.TopicFeeMarkedPaid)
}

// MarkUnpaid reverses a settlement record. Idempotent.
func (s *Service) MarkUnpaid(ctx context.Context, authorID, periodKey, note string) (FeeRecord, error) {
	return s.setPaid(ctx, authorID, periodKey, false, note, events.TopicFeeMarkedUnpaid)
}

func (s *Service) setPaid(ctx context.Context, authorID, periodKey string, paid bool, note, topic string) (FeeRecord, error) {
	if s == nil || s.Fees == nil {
		return FeeRecord{}, errNotConfigured
	}
	if _, err := s.Strategy.ParseKey(periodKey, time.Time{}); err != nil {
		return FeeRecord{}, common.ValidationError(err.Error())
	}
	if _, err := s.Authors.GetAuthor(ctx, authorID); err != nil {
		return FeeRecord{}, err
	}
	rec, err := s.Fees.SetPaid(ctx, authorID, periodKey, paid, note)
	if err != nil {
		return FeeRecord{}, err
	}
	s.Logger.Info().
		Str("author_id", authorID).
		Str("period_key", periodKey).
		Bool("is_paid", paid).
		Msg("fee_status_updated")
	s.Bus.Emit(ctx, topic, map[string]any{
		"authorId":  authorID,
		"periodKey": periodKey,
	})
	return rec, nil
}
