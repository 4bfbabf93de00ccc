package billing

import (
	"context"
	"time"

	"github.com/pustaka-labs/backend-pustaka/internal/pricing"
)

// Cycle states for one (author, period).
const (
	StateUnbilled = "unbilled"
	StateAccruing = "accruing"
	StateDue      = "due"
	StateOverdue  = "overdue"
	StatePaid     = "paid"
)

// Earning is one net amount credited to an author by a completed order.
type Earning struct {
	OrderID   string
	NetCents  int64
	CreatedAt time.Time
}

// EarningsSource fetches an author's earnings for orders created in [from, to).
type EarningsSource interface {
	EarningsForAuthor(ctx context.Context, authorID string, from, to time.Time) ([]Earning, error)
}

// Engine aggregates sales into fee liability per author-period.
type Engine struct {
	Earnings   EarningsSource
	FeePercent int64
	TrialDays  int
}

// FeeStatus is the computed liability for one author-period.
type FeeStatus struct {
	AuthorID       string
	Period         Period
	EffectiveStart time.Time
	GrossSales     int64
	FeeDue         int64
	SalesCount     int
}

// TrialEnd returns when an author's fee-free window closes.
func (e *Engine) TrialEnd(joinedAt time.Time) time.Time {
	return joinedAt.Add(time.Duration(e.TrialDays) * 24 * time.Hour)
}

// ComputeFeeStatus aggregates the author's earnings inside the period into
// fee liability. Sales before the trial window closes never accrue fees: the
// aggregation window is clamped to [max(period start, trial end), period end).
// Stored earnings are net of the platform's cut, so the implied fee is
// recovered by grossing up each net amount.
func (e *Engine) ComputeFeeStatus(ctx context.Context, authorID string, joinedAt time.Time, period Period) (FeeStatus, error) {
	status := FeeStatus{AuthorID: authorID, Period: period}

	effective := period.Start
	if trialEnd := e.TrialEnd(joinedAt); trialEnd.After(effective) {
		effective = trialEnd
	}
	status.EffectiveStart = effective
	if !effective.Before(period.End) {
		return status, nil
	}

	earnings, err := e.Earnings.EarningsForAuthor(ctx, authorID, effective, period.End)
	if err != nil {
		return FeeStatus{}, err
	}
	for _, earned := range earnings {
		fee := pricing.GrossUp(earned.NetCents, e.FeePercent)
		status.FeeDue += fee
		status.GrossSales += earned.NetCents + fee
		status.SalesCount++
	}
	return status, nil
}

// State derives the cycle state from the computed liability and the stored
// paid flag.
func (s FeeStatus) State(now time.Time, isPaid bool) string {
	if isPaid {
		return StatePaid
	}
	if s.SalesCount == 0 && s.FeeDue == 0 {
		return StateUnbilled
	}
	if now.Before(s.Period.End) {
		return StateAccruing
	}
	if s.IsOverdue(now, isPaid) {
		return StateOverdue
	}
	return StateDue
}

// IsOverdue reports whether the fee is unpaid past the due date.
func (s FeeStatus) IsOverdue(now time.Time, isPaid bool) bool {
	return !isPaid && !now.Before(s.Period.DueDate) && s.FeeDue > 0
}
