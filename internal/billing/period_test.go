package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalendarMonthPeriods(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	cur := CalendarMonth{}.CurrentPeriod(now, time.Time{})
	require.Equal(t, "2026-03", cur.Key)
	require.Equal(t, date(2026, 3, 1), cur.Start)
	require.Equal(t, date(2026, 4, 1), cur.End)
	require.Equal(t, date(2026, 4, 10), cur.DueDate)

	prev := CalendarMonth{}.PreviousPeriod(now, time.Time{})
	require.Equal(t, "2026-02", prev.Key)
	require.Equal(t, date(2026, 2, 1), prev.Start)
	require.Equal(t, date(2026, 3, 1), prev.End)
}

func TestCalendarMonthYearRollover(t *testing.T) {
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	prev := CalendarMonth{}.PreviousPeriod(now, time.Time{})
	require.Equal(t, "2025-12", prev.Key)
	require.Equal(t, date(2026, 1, 10), prev.DueDate)
}

func TestCalendarParseKeyRoundTrip(t *testing.T) {
	p, err := CalendarMonth{}.ParseKey("2026-03", time.Time{})
	require.NoError(t, err)
	require.Equal(t, date(2026, 3, 1), p.Start)
	require.Equal(t, "2026-03", p.Key)

	_, err = CalendarMonth{}.ParseKey("march", time.Time{})
	require.Error(t, err)
}

func TestBillingDayClampedTo28(t *testing.T) {
	require.Equal(t, 15, BillingDay(date(2025, 6, 15)))
	require.Equal(t, 28, BillingDay(date(2025, 1, 31)))
	require.Equal(t, 28, BillingDay(date(2025, 3, 29)))
	require.Equal(t, 1, BillingDay(date(2025, 3, 1)))
}

func TestAnniversaryCurrentPeriod(t *testing.T) {
	joined := date(2025, 6, 15)

	// before the billing day: cycle started last month
	cur := Anniversary{}.CurrentPeriod(date(2026, 3, 10), joined)
	require.Equal(t, date(2026, 2, 15), cur.Start)
	require.Equal(t, date(2026, 3, 15), cur.End)
	require.Equal(t, "2026-02-15_2026-03-15", cur.Key)
	require.Equal(t, date(2026, 4, 10), cur.DueDate)

	// on/after the billing day: cycle starts this month
	cur = Anniversary{}.CurrentPeriod(date(2026, 3, 15), joined)
	require.Equal(t, date(2026, 3, 15), cur.Start)
	require.Equal(t, date(2026, 4, 15), cur.End)
}

func TestAnniversaryDueDates(t *testing.T) {
	cases := []struct {
		name   string
		joined time.Time
		now    time.Time
		due    time.Time
	}{
		{"mid-month billing day", date(2025, 6, 15), date(2026, 3, 20), date(2026, 5, 10)},
		{"billing day 1 pays the month after the cycle", date(2025, 6, 1), date(2026, 2, 10), date(2026, 3, 10)},
		{"clamped day 28 across february", date(2025, 1, 31), date(2026, 2, 28), date(2026, 4, 10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur := Anniversary{}.CurrentPeriod(tc.now, tc.joined)
			require.Equal(t, tc.due, cur.DueDate)
		})
	}
}

func TestAnniversaryPreviousPeriod(t *testing.T) {
	joined := date(2025, 6, 15)
	prev := Anniversary{}.PreviousPeriod(date(2026, 3, 20), joined)
	require.Equal(t, date(2026, 2, 15), prev.Start)
	require.Equal(t, date(2026, 3, 15), prev.End)
}

func TestAnniversaryKeyStableAndParseable(t *testing.T) {
	joined := date(2025, 1, 31) // clamps to 28
	cur := Anniversary{}.CurrentPeriod(date(2026, 3, 1), joined)
	require.Equal(t, date(2026, 2, 28), cur.Start)

	parsed, err := Anniversary{}.ParseKey(cur.Key, joined)
	require.NoError(t, err)
	require.Equal(t, cur.Start, parsed.Start)
	require.Equal(t, cur.End, parsed.End)
	require.Equal(t, cur.DueDate, parsed.DueDate)

	_, err = Anniversary{}.ParseKey("2026-02-28", joined)
	require.Error(t, err)
}

func TestStrategyByName(t *testing.T) {
	s, err := StrategyByName("calendar")
	require.NoError(t, err)
	require.Equal(t, "calendar", s.Name())

	s, err = StrategyByName("anniversary")
	require.NoError(t, err)
	require.Equal(t, "anniversary", s.Name())

	_, err = StrategyByName("weekly")
	require.Error(t, err)
}

func TestPeriodContains(t *testing.T) {
	p := calendarPeriod(2026, time.March)
	require.True(t, p.Contains(date(2026, 3, 1)))
	require.True(t, p.Contains(date(2026, 3, 31)))
	require.False(t, p.Contains(date(2026, 4, 1)))
	require.False(t, p.Contains(date(2026, 2, 28)))
}
