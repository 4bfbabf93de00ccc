package authorgate

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pustaka-labs/backend-pustaka/internal/auth"
	"github.com/pustaka-labs/backend-pustaka/internal/catalog"
	"github.com/pustaka-labs/backend-pustaka/internal/common"
)

type mockAccounts struct {
	users map[string]*auth.User
}

func (m *mockAccounts) GetByID(_ context.Context, id string) (auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return *u, nil
}

func (m *mockAccounts) SetPayoutEmail(_ context.Context, id, email string) error {
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.PayoutPayPalEmail = email
	return nil
}

func (m *mockAccounts) SetBlocked(_ context.Context, id string, blocked bool, reason string) error {
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.IsBlocked = blocked
	u.BlockedReason = reason
	return nil
}

type shift struct{ from, to string }

type mockBooks struct {
	shifts []shift
	moved  int64
}

func (m *mockBooks) ShiftAuthorStatus(_ context.Context, _ string, from, to string) (int64, error) {
	m.shifts = append(m.shifts, shift{from, to})
	return m.moved, nil
}

func newGate(users map[string]*auth.User, books *mockBooks) *Service {
	return &Service{
		Accounts: &mockAccounts{users: users},
		Books:    books,
		Logger:   zerolog.Nop(),
	}
}

func TestReconcileApprovesWhenPayoutConfigured(t *testing.T) {
	books := &mockBooks{moved: 2}
	gate := newGate(map[string]*auth.User{
		"alice": {ID: "alice", PayoutPayPalEmail: "alice@paypal.com"},
	}, books)

	require.NoError(t, gate.Reconcile(context.Background(), "alice"))
	require.Equal(t, []shift{{catalog.StatusPending, catalog.StatusApproved}}, books.shifts)
}

func TestReconcilePendsWhenPayoutMissing(t *testing.T) {
	books := &mockBooks{moved: 3}
	gate := newGate(map[string]*auth.User{
		"alice": {ID: "alice"},
	}, books)

	require.NoError(t, gate.Reconcile(context.Background(), "alice"))
	require.Equal(t, []shift{{catalog.StatusApproved, catalog.StatusPending}}, books.shifts)
}

func TestUpdatePayoutEmailReconciles(t *testing.T) {
	books := &mockBooks{}
	users := map[string]*auth.User{"alice": {ID: "alice"}}
	gate := newGate(users, books)

	require.NoError(t, gate.UpdatePayoutEmail(context.Background(), "alice", "a@paypal.com"))
	require.Equal(t, "a@paypal.com", users["alice"].PayoutPayPalEmail)
	require.Equal(t, []shift{{catalog.StatusPending, catalog.StatusApproved}}, books.shifts)

	// clearing the email flips approved books back to pending
	require.NoError(t, gate.UpdatePayoutEmail(context.Background(), "alice", ""))
	require.Equal(t, shift{catalog.StatusApproved, catalog.StatusPending}, books.shifts[1])
}

func TestBlockRequiresReason(t *testing.T) {
	gate := newGate(map[string]*auth.User{"alice": {ID: "alice"}}, &mockBooks{})
	err := gate.Block(context.Background(), "alice", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION", appErr.Code)
}

func TestBlockAndUnblock(t *testing.T) {
	users := map[string]*auth.User{"alice": {ID: "alice"}}
	gate := newGate(users, &mockBooks{})
	ctx := context.Background()

	require.NoError(t, gate.Block(ctx, "alice", "overdue fees for 2026-02"))
	require.True(t, users["alice"].IsBlocked)
	require.Equal(t, "overdue fees for 2026-02", users["alice"].BlockedReason)

	require.NoError(t, gate.Unblock(ctx, "alice"))
	require.False(t, users["alice"].IsBlocked)
	require.Empty(t, users["alice"].BlockedReason)
}

func TestBlockUnknownAuthor(t *testing.T) {
	gate := newGate(map[string]*auth.User{}, &mockBooks{})
	err := gate.Block(context.Background(), "ghost", "reason")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestGetSettingsComputesTrialEnd(t *testing.T) {
	joined := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	gate := newGate(map[string]*auth.User{
		"alice": {ID: "alice", CreatedAt: joined, PayoutPayPalEmail: "a@paypal.com"},
	}, &mockBooks{})

	st, err := gate.GetSettings(context.Background(), "alice", 30)
	require.NoError(t, err)
	require.Equal(t, joined.AddDate(0, 0, 30), st.TrialEndsAt)
	require.Equal(t, "a@paypal.com", st.PayoutPayPalEmail)
}
