package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mockEarnings struct {
	rows  []Earning
	calls []struct{ from, to time.Time }
}

func (m *mockEarnings) EarningsForAuthor(_ context.Context, _ string, from, to time.Time) ([]Earning, error) {
	m.calls = append(m.calls, struct{ from, to time.Time }{from, to})
	var out []Earning
	for _, r := range m.rows {
		if !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newEngine(src EarningsSource) *Engine {
	return &Engine{Earnings: src, FeePercent: 10, TrialDays: 30}
}

func TestComputeFeeGrossesUpFromNet(t *testing.T) {
	// author joined 40 days before the period, one sale netting $9.00
	joined := date(2026, 1, 20)
	period := calendarPeriod(2026, time.March)
	src := &mockEarnings{rows: []Earning{
		{OrderID: "o1", NetCents: 900, CreatedAt: date(2026, 3, 5)},
	}}

	status, err := newEngine(src).ComputeFeeStatus(context.Background(), "alice", joined, period)
	require.NoError(t, err)
	require.Equal(t, int64(100), status.FeeDue)
	require.Equal(t, int64(1000), status.GrossSales)
	require.Equal(t, 1, status.SalesCount)
}

func TestComputeFeeClampsToTrialEnd(t *testing.T) {
	// trial runs until March 16; the aggregation window must start there
	joined := date(2026, 2, 14)
	period := calendarPeriod(2026, time.March)
	src := &mockEarnings{rows: []Earning{
		{OrderID: "early", NetCents: 900, CreatedAt: date(2026, 3, 10)},
		{OrderID: "late", NetCents: 1800, CreatedAt: date(2026, 3, 20)},
	}}

	status, err := newEngine(src).ComputeFeeStatus(context.Background(), "alice", joined, period)
	require.NoError(t, err)
	require.Equal(t, date(2026, 3, 16), status.EffectiveStart)
	require.Equal(t, 1, status.SalesCount, "trial-window sale must not accrue fees")
	require.Equal(t, int64(200), status.FeeDue)

	require.Len(t, src.calls, 1)
	require.Equal(t, date(2026, 3, 16), src.calls[0].from)
	require.Equal(t, period.End, src.calls[0].to)
}

func TestComputeFeeEntirePeriodInTrial(t *testing.T) {
	joined := date(2026, 3, 1)
	period := calendarPeriod(2026, time.March)
	src := &mockEarnings{rows: []Earning{
		{OrderID: "o1", NetCents: 900, CreatedAt: date(2026, 3, 29)},
	}}

	status, err := newEngine(src).ComputeFeeStatus(context.Background(), "alice", joined, period)
	require.NoError(t, err)
	require.Zero(t, status.FeeDue)
	require.Zero(t, status.SalesCount)
	require.Empty(t, src.calls, "no query when the window is empty")
}

func TestTrialClampAppliesToAnniversaryCycles(t *testing.T) {
	joined := date(2026, 2, 20)
	period := Anniversary{}.CurrentPeriod(date(2026, 3, 1), joined)
	require.Equal(t, date(2026, 2, 20), period.Start)

	src := &mockEarnings{rows: []Earning{
		{OrderID: "day29", NetCents: 900, CreatedAt: date(2026, 3, 18)},
	}}
	status, err := newEngine(src).ComputeFeeStatus(context.Background(), "alice", joined, period)
	require.NoError(t, err)
	// trial ends March 22; the day-18 sale is inside the trial
	require.Zero(t, status.FeeDue)
}

func TestStateMachine(t *testing.T) {
	period := calendarPeriod(2026, time.March)
	withFee := FeeStatus{Period: period, FeeDue: 100, SalesCount: 1}
	noFee := FeeStatus{Period: period}

	require.Equal(t, StateAccruing, withFee.State(date(2026, 3, 15), false))
	require.Equal(t, StateDue, withFee.State(date(2026, 4, 5), false))
	require.Equal(t, StateOverdue, withFee.State(date(2026, 4, 10), false))
	require.Equal(t, StatePaid, withFee.State(date(2026, 4, 20), true))
	require.Equal(t, StateUnbilled, noFee.State(date(2026, 3, 15), false))
}

func TestIsOverdue(t *testing.T) {
	period := calendarPeriod(2026, time.March)
	s := FeeStatus{Period: period, FeeDue: 100, SalesCount: 1}

	require.False(t, s.IsOverdue(date(2026, 4, 9), false))
	require.True(t, s.IsOverdue(date(2026, 4, 10), false))
	require.False(t, s.IsOverdue(date(2026, 4, 10), true), "paid is never overdue")

	zero := FeeStatus{Period: period}
	require.False(t, zero.IsOverdue(date(2026, 5, 1), false), "no fee, no overdue")
}
