package coupon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/pricing"
)

// Querier is the storage surface the coupon service needs.
type Querier interface {
	GetByCode(ctx context.Context, code string) (Model, error)
	Create(ctx context.Context, m Model) (Model, error)
	List(ctx context.Context) ([]Model, error)
	SetActive(ctx context.Context, code string, active bool) error
}

// ItemSource resolves book IDs into priced cart items.
type ItemSource interface {
	Items(ctx context.Context, ids []string) ([]pricing.Item, error)
}

// Service validates and applies coupons to carts.
type Service struct {
	Q     Querier
	Books ItemSource
	Now   func() time.Time
}

var errNotConfigured = errors.New("coupon: service not configured")

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Resolve fetches and validates a coupon by code without checking cart scope.
func (s *Service) Resolve(ctx context.Context, code string) (Rule, error) {
	if s == nil || s.Q == nil {
		return Rule{}, errNotConfigured
	}
	m, err := s.Q.GetByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return Rule{}, common.NotFoundError("coupon not found")
	}
	if err != nil {
		return Rule{}, err
	}
	rule := RuleFromModel(m)
	if err := rule.Validate(s.now()); err != nil {
		return Rule{}, stateError(err)
	}
	return rule, nil
}

// Price validates the coupon against the cart and returns the quote. An empty
// code prices the cart without a discount.
func (s *Service) Price(ctx context.Context, code string, bookIDs []string) (pricing.Quote, Rule, error) {
	if s == nil || s.Books == nil {
		return pricing.Quote{}, Rule{}, errNotConfigured
	}
	items, err := s.Books.Items(ctx, bookIDs)
	if err != nil {
		return pricing.Quote{}, Rule{}, err
	}
	if code == "" {
		q, err := pricing.Compute(items, 0, nil)
		if err != nil {
			return pricing.Quote{}, Rule{}, common.ValidationError(err.Error())
		}
		return q, Rule{}, nil
	}

	rule, err := s.Resolve(ctx, code)
	if err != nil {
		return pricing.Quote{}, Rule{}, err
	}
	authorIDs := make([]string, 0, len(items))
	for _, it := range items {
		authorIDs = append(authorIDs, it.AuthorID)
	}
	if err := rule.EnsureApplicable(authorIDs); err != nil {
		return pricing.Quote{}, Rule{}, stateError(err)
	}
	q, err := pricing.Compute(items, rule.Percent, func(it pricing.Item) bool {
		return rule.AppliesTo(it.AuthorID)
	})
	if err != nil {
		return pricing.Quote{}, Rule{}, common.ValidationError(err.Error())
	}
	return q, rule, nil
}

// CreateCoupon validates and persists a new coupon.
func (s *Service) CreateCoupon(ctx context.Context, m Model) (Model, error) {
	if s == nil || s.Q == nil {
		return Model{}, errNotConfigured
	}
	if m.Percent < 1 || m.Percent > 100 {
		return Model{}, common.ValidationError("percent must be between 1 and 100")
	}
	switch m.Scope {
	case ScopeAll:
		m.AuthorID = ""
	case ScopeAuthor:
		if m.AuthorID == "" {
			return Model{}, common.ValidationError("author-scoped coupon requires an author")
		}
	default:
		return Model{}, common.ValidationError("scope must be all or author")
	}
	if !m.ValidFrom.IsZero() && !m.ValidTo.IsZero() && m.ValidTo.Before(m.ValidFrom) {
		return Model{}, common.ValidationError("validTo must not precede validFrom")
	}
	m.Code = NormalizeCode(m.Code)
	if m.Code == "" {
		return Model{}, common.ValidationError("code is required")
	}
	return s.Q.Create(ctx, m)
}

func stateError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrExpired):
		return common.NewAppError("COUPON_EXPIRED", "coupon has expired", http.StatusBadRequest, err)
	case errors.Is(err, ErrNotYetValid):
		return common.NewAppError("COUPON_NOT_YET_VALID", "coupon is not valid yet", http.StatusBadRequest, err)
	case errors.Is(err, ErrInactive):
		return common.NewAppError("COUPON_INACTIVE", "coupon is not active", http.StatusBadRequest, err)
	case errors.Is(err, ErrScopeMismatch):
		return common.NewAppError("COUPON_SCOPE_MISMATCH", "coupon does not apply to any item in the cart", http.StatusBadRequest, err)
	default:
		return common.NewAppError("COUPON_INVALID", "coupon cannot be applied", http.StatusBadRequest, err)
	}
}
