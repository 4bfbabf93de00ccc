package order

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/coupon"
	"github.com/pustaka-labs/backend-pustaka/internal/events"
	"github.com/pustaka-labs/backend-pustaka/internal/obs"
	"github.com/pustaka-labs/backend-pustaka/internal/payment"
	"github.com/pustaka-labs/backend-pustaka/internal/pricing"
)

// Ledger is the storage surface the order service needs.
type Ledger interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	HasPurchased(ctx context.Context, customerID, bookID string) (bool, error)
}

// CartPricer prices a cart with an optional coupon.
type CartPricer interface {
	Price(ctx context.Context, code string, bookIDs []string) (pricing.Quote, coupon.Rule, error)
}

// Service coordinates pricing, payment verification and ledger writes.
type Service struct {
	Ledger       Ledger
	Pricer       CartPricer
	Gateway      payment.Gateway
	FeePercent   int64
	Currency     string
	DirectPayout bool
	VerifyWithin time.Duration
	Bus          *events.Bus
	Metrics      *obs.MarketplaceMetrics
	Logger       zerolog.Logger
}

var errNotConfigured = errors.New("order: service not configured")

// PayPalIntent is a registered payment intent for a priced cart. Nothing is
// persisted until the payment is captured and verified.
type PayPalIntent struct {
	PayPalOrderID string
	OriginalCents int64
	DiscountCents int64
	TotalCents    int64
	Currency      string
}

// InitiatePayPal prices the cart and registers a PayPal order for exactly the
// computed total. The client approves and captures it, then submits the id
// back through Create for verification.
func (s *Service) InitiatePayPal(ctx context.Context, bookIDs []string, couponCode string) (PayPalIntent, error) {
	if s == nil || s.Pricer == nil || s.Gateway == nil {
		return PayPalIntent{}, errNotConfigured
	}
	if len(bookIDs) == 0 {
		return PayPalIntent{}, common.ValidationError("at least one book is required")
	}
	quote, _, err := s.Pricer.Price(ctx, couponCode, bookIDs)
	if err != nil {
		return PayPalIntent{}, err
	}
	id, err := s.Gateway.CreateOrder(ctx, quote.FinalTotal)
	if err != nil {
		return PayPalIntent{}, verificationError(err)
	}
	return PayPalIntent{
		PayPalOrderID: id,
		OriginalCents: quote.OriginalTotal,
		DiscountCents: quote.Discount,
		TotalCents:    quote.FinalTotal,
		Currency:      s.Currency,
	}, nil
}

// Create prices the cart, verifies the external payment against the computed
// total, and persists the order with its earnings split. Nothing is written
// when verification fails.
func (s *Service) Create(ctx context.Context, customerID string, bookIDs []string, paypalOrderID, couponCode string) (Order, error) {
	if s == nil || s.Ledger == nil || s.Pricer == nil || s.Gateway == nil {
		return Order{}, errNotConfigured
	}
	if len(bookIDs) == 0 {
		return Order{}, common.ValidationError("at least one book is required")
	}
	if paypalOrderID == "" {
		return Order{}, common.ValidationError("paymentId is required")
	}

	quote, rule, err := s.Pricer.Price(ctx, couponCode, bookIDs)
	if err != nil {
		return Order{}, err
	}

	verifyCtx := ctx
	if s.VerifyWithin > 0 {
		var cancel context.CancelFunc
		verifyCtx, cancel = context.WithTimeout(ctx, s.VerifyWithin)
		defer cancel()
	}
	err = s.Gateway.VerifyOrder(verifyCtx, paypalOrderID, quote.FinalTotal)
	if errors.Is(err, payment.ErrPaymentNotCompleted) {
		// approved but not yet captured: capture server-side, then re-verify
		if _, capErr := s.Gateway.CaptureOrder(verifyCtx, paypalOrderID); capErr != nil {
			s.observeVerification("rejected")
			return Order{}, verificationError(capErr)
		}
		err = s.Gateway.VerifyOrder(verifyCtx, paypalOrderID, quote.FinalTotal)
	}
	if err != nil {
		s.observeVerification("rejected")
		return Order{}, verificationError(err)
	}
	s.observeVerification("verified")

	split, err := SplitEarnings(quote, s.FeePercent, s.DirectPayout)
	if err != nil {
		return Order{}, err
	}

	o := Order{
		CustomerID:      customerID,
		OriginalCents:   quote.OriginalTotal,
		FinalCents:      quote.FinalTotal,
		DiscountCents:   quote.Discount,
		CouponCode:      rule.Code,
		DiscountPercent: rule.Percent,
		PlatformCents:   split.PlatformCents,
		Currency:        s.Currency,
		PayPalOrderID:   paypalOrderID,
		Earnings:        split.Entries,
	}
	for _, l := range quote.Lines {
		o.Items = append(o.Items, Item{
			BookID:     l.BookID,
			AuthorID:   l.AuthorID,
			Title:      l.Title,
			PriceCents: l.Price,
			PaidCents:  l.Paid,
		})
	}

	created, err := s.Ledger.Create(ctx, o)
	if errors.Is(err, ErrDuplicatePayment) {
		return Order{}, common.NewAppError("DUPLICATE_PAYMENT", "payment already used for another order", http.StatusConflict, err)
	}
	if err != nil {
		return Order{}, err
	}

	s.Logger.Info().
		Str("order_id", created.ID).
		Str("customer_id", customerID).
		Int64("final_cents", created.FinalCents).
		Str("coupon", created.CouponCode).
		Msg("order_created")
	if s.Metrics != nil {
		label := "none"
		if created.CouponCode != "" {
			label = "applied"
		}
		s.Metrics.OrdersCreated.WithLabelValues(label).Inc()
		s.Metrics.OrderRevenueCents.Add(float64(created.FinalCents))
	}
	s.Bus.Emit(ctx, events.TopicOrderCreated, map[string]any{
		"orderId":    created.ID,
		"customerId": customerID,
		"finalCents": created.FinalCents,
	})
	return created, nil
}

func (s *Service) observeVerification(outcome string) {
	if s.Metrics != nil {
		s.Metrics.PaymentVerification.WithLabelValues(outcome).Inc()
	}
}

func verificationError(err error) error {
	var (
		mismatch *payment.AmountMismatchError
		currency *payment.CurrencyMismatchError
		external *payment.ExternalError
	)
	switch {
	case errors.As(err, &mismatch):
		return common.NewAppError("PAYMENT_AMOUNT_MISMATCH", "paid amount does not match the computed total", http.StatusBadRequest, err)
	case errors.As(err, &currency):
		return common.NewAppError("PAYMENT_CURRENCY_MISMATCH", "payment settled in an unexpected currency", http.StatusBadRequest, err)
	case errors.Is(err, payment.ErrPaymentNotCompleted):
		return common.NewAppError("PAYMENT_NOT_COMPLETED", "payment is not completed", http.StatusBadRequest, err)
	case errors.As(err, &external):
		return common.NewAppError("PAYMENT_GATEWAY", "payment processor error", http.StatusBadGateway, err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError("PAYMENT_GATEWAY", "payment verification timed out", http.StatusBadGateway, err)
	default:
		return common.NewAppError("PAYMENT_GATEWAY", "payment verification failed", http.StatusBadGateway, err)
	}
}

// Fetch returns one order, enforcing owner-or-admin access.
func (s *Service) Fetch(ctx context.Context, orderID, requesterID string, isAdmin bool) (Order, error) {
	if s == nil || s.Ledger == nil {
		return Order{}, errNotConfigured
	}
	o, err := s.Ledger.Get(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return Order{}, common.NotFoundError("order not found")
	}
	if err != nil {
		return Order{}, err
	}
	if !isAdmin && o.CustomerID != requesterID {
		return Order{}, common.ForbiddenError("not your order")
	}
	return o, nil
}

// ListForCustomer returns the requester's purchase history.
func (s *Service) ListForCustomer(ctx context.Context, customerID string) ([]Order, error) {
	if s == nil || s.Ledger == nil {
		return nil, errNotConfigured
	}
	return s.Ledger.ListByCustomer(ctx, customerID)
}

// CanDownload reports whether the customer may fetch the book's PDF.
func (s *Service) CanDownload(ctx context.Context, customerID, bookID string) (bool, error) {
	if s == nil || s.Ledger == nil {
		return false, errNotConfigured
	}
	return s.Ledger.HasPurchased(ctx, customerID, bookID)
}
