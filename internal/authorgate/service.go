// Package authorgate derives an author's publishing rights from their payout
// configuration and fee-delinquency block status.
package authorgate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pustaka-labs/backend-pustaka/internal/auth"
	"github.com/pustaka-labs/backend-pustaka/internal/catalog"
	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/events"
	"github.com/pustaka-labs/backend-pustaka/internal/lock"
	"github.com/pustaka-labs/backend-pustaka/internal/obs"
)

// Accounts is the user-store surface the gate needs.
type Accounts interface {
	GetByID(ctx context.Context, id string) (auth.User, error)
	SetPayoutEmail(ctx context.Context, id, email string) error
	SetBlocked(ctx context.Context, id string, blocked bool, reason string) error
}

// Books is the catalog surface the gate needs.
type Books interface {
	ShiftAuthorStatus(ctx context.Context, authorID, from, to string) (int64, error)
}

// Service reconciles book visibility with payout configuration and manages
// the admin block flag.
type Service struct {
	Accounts Accounts
	Books    Books
	Locker   lock.Locker
	Bus      *events.Bus
	Metrics  *obs.MarketplaceMetrics
	Logger   zerolog.Logger
}

var errNotConfigured = errors.New("authorgate: service not configured")

// Reconcile synchronizes the author's book statuses with their payout
// configuration: a configured payout email approves pending books, a missing
// one pends approved books. Rejected books are never touched. The operation
// is idempotent and runs under a per-author lock so concurrent triggers do
// not interleave.
func (s *Service) Reconcile(ctx context.Context, authorID string) error {
	if s == nil || s.Accounts == nil || s.Books == nil {
		return errNotConfigured
	}
	run := func(ctx context.Context) error {
		u, err := s.Accounts.GetByID(ctx, authorID)
		if err != nil {
			return err
		}
		var (
			from, to string
		)
		if u.PayoutPayPalEmail != "" {
			from, to = catalog.StatusPending, catalog.StatusApproved
		} else {
			from, to = catalog.StatusApproved, catalog.StatusPending
		}
		moved, err := s.Books.ShiftAuthorStatus(ctx, authorID, from, to)
		if err != nil {
			return err
		}
		if moved > 0 {
			s.Logger.Info().
				Str("author_id", authorID).
				Str("from", from).
				Str("to", to).
				Int64("books", moved).
				Msg("author_books_reconciled")
			s.Bus.Emit(ctx, events.TopicBookStatusChanged, map[string]any{
				"authorId": authorID,
				"from":     from,
				"to":       to,
				"count":    moved,
			})
		}
		return nil
	}
	if s.Locker.R == nil {
		return run(ctx)
	}
	return s.Locker.WithLock(ctx, "authorgate:reconcile:"+authorID, 10*time.Second, run)
}

// Settings is the author's payout view.
type Settings struct {
	PayoutPayPalEmail string
	IsBlocked         bool
	BlockedReason     string
	BlockedAt         time.Time
	JoinedAt          time.Time
	TrialEndsAt       time.Time
}

// GetSettings returns the author's payout settings, reconciling first.
func (s *Service) GetSettings(ctx context.Context, authorID string, trialDays int) (Settings, error) {
	if err := s.Reconcile(ctx, authorID); err != nil {
		return Settings{}, err
	}
	u, err := s.Accounts.GetByID(ctx, authorID)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		PayoutPayPalEmail: u.PayoutPayPalEmail,
		IsBlocked:         u.IsBlocked,
		BlockedReason:     u.BlockedReason,
		BlockedAt:         u.BlockedAt,
		JoinedAt:          u.CreatedAt,
		TrialEndsAt:       u.CreatedAt.Add(time.Duration(trialDays) * 24 * time.Hour),
	}, nil
}

// UpdatePayoutEmail sets or clears the payout destination and reconciles.
func (s *Service) UpdatePayoutEmail(ctx context.Context, authorID, email string) error {
	if s == nil || s.Accounts == nil {
		return errNotConfigured
	}
	if err := s.Accounts.SetPayoutEmail(ctx, authorID, email); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return common.NotFoundError("author not found")
		}
		return err
	}
	return s.Reconcile(ctx, authorID)
}

// Block sets the admin delinquency flag. Marking a fee paid does not clear
// it; Unblock is a separate explicit call.
func (s *Service) Block(ctx context.Context, authorID, reason string) error {
	if s == nil || s.Accounts == nil {
		return errNotConfigured
	}
	if reason == "" {
		return common.ValidationError("a block reason is required")
	}
	if err := s.Accounts.SetBlocked(ctx, authorID, true, reason); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return common.NotFoundError("author not found")
		}
		return err
	}
	if s.Metrics != nil {
		s.Metrics.AuthorsBlocked.Inc()
	}
	s.Bus.Emit(ctx, events.TopicAuthorBlocked, map[string]any{
		"authorId": authorID,
		"reason":   reason,
	})
	return nil
}

// Unblock clears the admin delinquency flag.
func (s *Service) Unblock(ctx context.Context, authorID string) error {
	if s == nil || s.Accounts == nil {
		return errNotConfigured
	}
	if err := s.Accounts.SetBlocked(ctx, authorID, false, ""); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return common.NotFoundError("author not found")
		}
		return err
	}
	if s.Metrics != nil {
		s.Metrics.AuthorsBlocked.Dec()
	}
	s.Bus.Emit(ctx, events.TopicAuthorUnblocked, map[string]any{
		"authorId": authorID,
	})
	return nil
}
