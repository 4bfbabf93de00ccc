package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/pricing"
)

type mockQuerier struct {
	byCode map[string]Model
}

func (m *mockQuerier) GetByCode(_ context.Context, code string) (Model, error) {
	c, ok := m.byCode[NormalizeCode(code)]
	if !ok {
		return Model{}, ErrNotFound
	}
	return c, nil
}

func (m *mockQuerier) Create(_ context.Context, c Model) (Model, error) {
	c.ID = "generated"
	m.byCode[c.Code] = c
	return c, nil
}

func (m *mockQuerier) List(context.Context) ([]Model, error) { return nil, nil }
func (m *mockQuerier) SetActive(context.Context, string, bool) error {
	return nil
}

type mockItems struct {
	items []pricing.Item
}

func (m *mockItems) Items(context.Context, []string) ([]pricing.Item, error) {
	return m.items, nil
}

func testService(items []pricing.Item, coupons ...Model) *Service {
	q := &mockQuerier{byCode: map[string]Model{}}
	for _, c := range coupons {
		q.byCode[c.Code] = c
	}
	return &Service{
		Q:     q,
		Books: &mockItems{items: items},
		Now:   func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) },
	}
}

func cart() []pricing.Item {
	return []pricing.Item{
		{BookID: "b1", AuthorID: "alice", Title: "One", Price: 1000},
		{BookID: "b2", AuthorID: "bob", Title: "Two", Price: 2000},
	}
}

func TestPriceWithoutCode(t *testing.T) {
	svc := testService(cart())
	q, rule, err := svc.Price(context.Background(), "", []string{"b1", "b2"})
	require.NoError(t, err)
	require.Equal(t, int64(3000), q.OriginalTotal)
	require.Equal(t, int64(3000), q.FinalTotal)
	require.Empty(t, rule.Code)
}

func TestPriceGlobalCoupon(t *testing.T) {
	svc := testService(cart(), Model{Code: "SAVE20", Percent: 20, Scope: ScopeAll, Active: true})
	q, rule, err := svc.Price(context.Background(), "save20", []string{"b1", "b2"})
	require.NoError(t, err)
	require.Equal(t, "SAVE20", rule.Code)
	require.Equal(t, int64(2400), q.FinalTotal)
	require.Equal(t, int64(600), q.Discount)
}

func TestPriceAuthorScopedDiscountsOnlyThatAuthor(t *testing.T) {
	svc := testService(cart(), Model{
		Code: "ALICE10", Percent: 10, Scope: ScopeAuthor, AuthorID: "alice", Active: true,
	})
	q, _, err := svc.Price(context.Background(), "ALICE10", []string{"b1", "b2"})
	require.NoError(t, err)
	require.Equal(t, int64(900), q.Lines[0].Paid)
	require.Equal(t, int64(2000), q.Lines[1].Paid)
}

func TestPriceScopeMismatch(t *testing.T) {
	svc := testService(cart(), Model{
		Code: "CAROL10", Percent: 10, Scope: ScopeAuthor, AuthorID: "carol", Active: true,
	})
	_, _, err := svc.Price(context.Background(), "CAROL10", []string{"b1", "b2"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "COUPON_SCOPE_MISMATCH", appErr.Code)
}

func TestPriceUnknownCode(t *testing.T) {
	svc := testService(cart())
	_, _, err := svc.Price(context.Background(), "NOPE", []string{"b1"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestPriceExpiredBeatsInactive(t *testing.T) {
	svc := testService(cart(), Model{
		Code: "OLD", Percent: 10, Scope: ScopeAll, Active: false,
		ValidTo: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	_, _, err := svc.Price(context.Background(), "OLD", []string{"b1"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "COUPON_EXPIRED", appErr.Code)
}

func TestCreateCouponScopedRequiresAuthor(t *testing.T) {
	svc := testService(nil)
	_, err := svc.CreateCoupon(context.Background(), Model{
		Code: "X", Percent: 10, Scope: ScopeAuthor,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION", appErr.Code)
}

func TestCreateCouponNormalizesCode(t *testing.T) {
	svc := testService(nil)
	created, err := svc.CreateCoupon(context.Background(), Model{
		Code: " spring25 ", Percent: 25, Scope: ScopeAll, Active: true,
	})
	require.NoError(t, err)
	require.Equal(t, "SPRING25", created.Code)
}
