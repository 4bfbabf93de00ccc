package order

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/coupon"
	"github.com/pustaka-labs/backend-pustaka/internal/payment"
	"github.com/pustaka-labs/backend-pustaka/internal/pricing"
)

type mockLedger struct {
	created []Order
	byID    map[string]Order
}

func (m *mockLedger) Create(_ context.Context, o Order) (Order, error) {
	o.ID = "order-1"
	o.PaymentStatus = "completed"
	m.created = append(m.created, o)
	return o, nil
}

func (m *mockLedger) Get(_ context.Context, id string) (Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *mockLedger) ListByCustomer(context.Context, string) ([]Order, error) { return nil, nil }
func (m *mockLedger) ListAll(context.Context) ([]Order, error)               { return nil, nil }
func (m *mockLedger) HasPurchased(context.Context, string, string) (bool, error) {
	return false, nil
}

type mockPricer struct {
	quote pricing.Quote
	rule  coupon.Rule
	err   error
}

func (m *mockPricer) Price(context.Context, string, []string) (pricing.Quote, coupon.Rule, error) {
	return m.quote, m.rule, m.err
}

type mockGateway struct {
	verifyErr error
	verified  []int64
	created   []int64
}

func (m *mockGateway) CreateOrder(_ context.Context, amount int64) (string, error) {
	m.created = append(m.created, amount)
	return "pp-1", nil
}
func (m *mockGateway) CaptureOrder(context.Context, string) (payment.Capture, error) {
	return payment.Capture{}, nil
}
func (m *mockGateway) VerifyOrder(_ context.Context, _ string, expected int64) error {
	m.verified = append(m.verified, expected)
	return m.verifyErr
}

func testQuote(t *testing.T) pricing.Quote {
	t.Helper()
	q, err := pricing.Compute([]pricing.Item{
		{BookID: "b1", AuthorID: "alice", Title: "One", Price: 1000},
	}, 0, nil)
	require.NoError(t, err)
	return q
}

func newTestService(ledger *mockLedger, pricer *mockPricer, gw *mockGateway) *Service {
	return &Service{
		Ledger:     ledger,
		Pricer:     pricer,
		Gateway:    gw,
		FeePercent: 10,
		Currency:   "USD",
		Logger:     zerolog.Nop(),
	}
}

func TestCreatePersistsVerifiedOrder(t *testing.T) {
	ledger := &mockLedger{}
	gw := &mockGateway{}
	svc := newTestService(ledger, &mockPricer{quote: testQuote(t)}, gw)

	o, err := svc.Create(context.Background(), "cust-1", []string{"b1"}, "pp-1", "")
	require.NoError(t, err)
	require.Equal(t, "order-1", o.ID)
	require.Equal(t, []int64{1000}, gw.verified)
	require.Len(t, ledger.created, 1)
	require.Equal(t, int64(900), o.Earnings[0].NetCents)
	require.Equal(t, int64(100), o.PlatformCents)
}

func TestCreateNeverPersistsOnAmountMismatch(t *testing.T) {
	ledger := &mockLedger{}
	gw := &mockGateway{verifyErr: &payment.AmountMismatchError{ExpectedCents: 1000, GotCents: 900}}
	svc := newTestService(ledger, &mockPricer{quote: testQuote(t)}, gw)

	_, err := svc.Create(context.Background(), "cust-1", []string{"b1"}, "pp-1", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PAYMENT_AMOUNT_MISMATCH", appErr.Code)
	require.Empty(t, ledger.created, "no order may exist after failed verification")
}

// approvedGateway models a PayPal order the payer approved but nobody
// captured yet.
type approvedGateway struct {
	mockGateway
	captured bool
}

func (m *approvedGateway) CaptureOrder(context.Context, string) (payment.Capture, error) {
	m.captured = true
	return payment.Capture{Status: "COMPLETED"}, nil
}

func (m *approvedGateway) VerifyOrder(_ context.Context, _ string, expected int64) error {
	if !m.captured {
		return payment.ErrPaymentNotCompleted
	}
	m.verified = append(m.verified, expected)
	return nil
}

func TestCreateCapturesApprovedOrders(t *testing.T) {
	ledger := &mockLedger{}
	gw := &approvedGateway{}
	svc := &Service{
		Ledger:     ledger,
		Pricer:     &mockPricer{quote: testQuote(t)},
		Gateway:    gw,
		FeePercent: 10,
		Currency:   "USD",
		Logger:     zerolog.Nop(),
	}

	o, err := svc.Create(context.Background(), "cust-1", []string{"b1"}, "pp-1", "")
	require.NoError(t, err)
	require.True(t, gw.captured)
	require.Equal(t, []int64{1000}, gw.verified)
	require.Len(t, ledger.created, 1)
	require.Equal(t, "order-1", o.ID)
}

func TestCreateNeverPersistsOnIncompletePayment(t *testing.T) {
	ledger := &mockLedger{}
	gw := &mockGateway{verifyErr: payment.ErrPaymentNotCompleted}
	svc := newTestService(ledger, &mockPricer{quote: testQuote(t)}, gw)

	_, err := svc.Create(context.Background(), "cust-1", []string{"b1"}, "pp-1", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PAYMENT_NOT_COMPLETED", appErr.Code)
	require.Empty(t, ledger.created)
}

func TestInitiatePayPalRegistersComputedTotal(t *testing.T) {
	gw := &mockGateway{}
	svc := newTestService(&mockLedger{}, &mockPricer{quote: testQuote(t)}, gw)

	intent, err := svc.InitiatePayPal(context.Background(), []string{"b1"}, "")
	require.NoError(t, err)
	require.Equal(t, "pp-1", intent.PayPalOrderID)
	require.Equal(t, int64(1000), intent.TotalCents)
	require.Equal(t, "USD", intent.Currency)
	require.Equal(t, []int64{1000}, gw.created)
}

func TestInitiatePayPalPropagatesPricingErrors(t *testing.T) {
	pricerErr := common.NotFoundError("coupon not found")
	svc := newTestService(&mockLedger{}, &mockPricer{err: pricerErr}, &mockGateway{})

	_, err := svc.InitiatePayPal(context.Background(), []string{"b1"}, "BAD")
	require.ErrorIs(t, err, pricerErr)
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	svc := newTestService(&mockLedger{}, &mockPricer{}, &mockGateway{})
	_, err := svc.Create(context.Background(), "cust-1", nil, "pp-1", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION", appErr.Code)
}

func TestCreatePropagatesPricingErrors(t *testing.T) {
	pricerErr := common.NotFoundError("coupon not found")
	svc := newTestService(&mockLedger{}, &mockPricer{err: pricerErr}, &mockGateway{})
	_, err := svc.Create(context.Background(), "cust-1", []string{"b1"}, "pp-1", "BAD")
	require.ErrorIs(t, err, pricerErr)
}

type staticItems struct {
	items []pricing.Item
}

func (s staticItems) Items(context.Context, []string) ([]pricing.Item, error) {
	return s.items, nil
}

type fixedCoupon struct {
	m coupon.Model
}

func (f fixedCoupon) GetByCode(context.Context, string) (coupon.Model, error) { return f.m, nil }
func (f fixedCoupon) Create(_ context.Context, m coupon.Model) (coupon.Model, error) {
	return m, nil
}
func (f fixedCoupon) List(context.Context) ([]coupon.Model, error)  { return nil, nil }
func (f fixedCoupon) SetActive(context.Context, string, bool) error { return nil }

func TestPreviewAndOrderComputeIdenticalTotals(t *testing.T) {
	// the same pricer backs the coupon preview and order creation; a cart
	// with odd prices exercises the per-item rounding on both paths
	pricer := &coupon.Service{
		Q: fixedCoupon{m: coupon.Model{Code: "SAVE15", Percent: 15, Scope: coupon.ScopeAll, Active: true}},
		Books: staticItems{items: []pricing.Item{
			{BookID: "b1", AuthorID: "alice", Title: "One", Price: 3333},
			{BookID: "b2", AuthorID: "bob", Title: "Two", Price: 6667},
		}},
	}
	bookIDs := []string{"b1", "b2"}

	preview, _, err := pricer.Price(context.Background(), "SAVE15", bookIDs)
	require.NoError(t, err)

	ledger := &mockLedger{}
	gw := &mockGateway{}
	svc := &Service{
		Ledger:     ledger,
		Pricer:     pricer,
		Gateway:    gw,
		FeePercent: 10,
		Currency:   "USD",
		Logger:     zerolog.Nop(),
	}
	o, err := svc.Create(context.Background(), "cust-1", bookIDs, "pp-1", "SAVE15")
	require.NoError(t, err)

	require.Equal(t, preview.FinalTotal, o.FinalCents)
	require.Equal(t, preview.OriginalTotal, o.OriginalCents)
	require.Equal(t, preview.Discount, o.DiscountCents)
	require.Equal(t, []int64{preview.FinalTotal}, gw.verified,
		"payment is verified against the previewed total")
}

func TestFetchEnforcesOwnership(t *testing.T) {
	ledger := &mockLedger{byID: map[string]Order{
		"order-1": {ID: "order-1", CustomerID: "cust-1"},
	}}
	svc := newTestService(ledger, &mockPricer{}, &mockGateway{})

	_, err := svc.Fetch(context.Background(), "order-1", "cust-2", false)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	_, err = svc.Fetch(context.Background(), "order-1", "cust-2", true)
	require.NoError(t, err)

	_, err = svc.Fetch(context.Background(), "order-1", "cust-1", false)
	require.NoError(t, err)
}
