// Package billing derives per-author billing cycles, aggregates completed
// sales into platform fees owed, and tracks manual paid/unpaid status per
// cycle.
package billing

import (
	"fmt"
	"strings"
	"time"
)

// Period is one billing window. Boundaries are half-open: [Start, End).
type Period struct {
	Start   time.Time
	End     time.Time
	Key     string
	DueDate time.Time
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Strategy derives billing periods for an author. The same inputs must always
// yield the same period key so repeated aggregation is idempotent.
type Strategy interface {
	Name() string
	// CurrentPeriod returns the period containing now.
	CurrentPeriod(now, joinedAt time.Time) Period
	// PreviousPeriod returns the period immediately before the current one.
	PreviousPeriod(now, joinedAt time.Time) Period
	// ParseKey reconstructs a period from its key.
	ParseKey(key string, joinedAt time.Time) (Period, error)
}

// dueDate is the 10th of the month after the period, at UTC midnight. End is
// exclusive, so the month comes from the last day the period contains.
func dueDate(end time.Time) time.Time {
	last := end.AddDate(0, 0, -1)
	return time.Date(last.Year(), last.Month()+1, 10, 0, 0, 0, 0, time.UTC)
}

// CalendarMonth bills on calendar-month boundaries with keys like "2026-03".
type CalendarMonth struct{}

// Name implements Strategy.
func (CalendarMonth) Name() string { return "calendar" }

func calendarPeriod(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return Period{
		Start:   start,
		End:     end,
		Key:     start.Format("2006-01"),
		DueDate: dueDate(end),
	}
}

// CurrentPeriod implements Strategy.
func (CalendarMonth) CurrentPeriod(now, _ time.Time) Period {
	return calendarPeriod(now.UTC().Year(), now.UTC().Month())
}

// PreviousPeriod implements Strategy.
func (CalendarMonth) PreviousPeriod(now, _ time.Time) Period {
	prev := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return calendarPeriod(prev.Year(), prev.Month())
}

// ParseKey implements Strategy for keys of the form "YYYY-MM".
func (CalendarMonth) ParseKey(key string, _ time.Time) (Period, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return Period{}, fmt.Errorf("billing: bad calendar period key %q", key)
	}
	return calendarPeriod(t.Year(), t.Month()), nil
}

// Anniversary bills on monthly cycles anchored to the author's join day,
// clamped to day 28 to sidestep month-length differences. Keys are
// "YYYY-MM-DD_YYYY-MM-DD" (cycle start and end).
type Anniversary struct{}

// Name implements Strategy.
func (Anniversary) Name() string { return "anniversary" }

// BillingDay returns the author's anchored day of month.
func BillingDay(joinedAt time.Time) int {
	day := joinedAt.UTC().Day()
	if day > 28 {
		return 28
	}
	return day
}

func anniversaryPeriodAt(start time.Time) Period {
	end := start.AddDate(0, 1, 0)
	return Period{
		Start:   start,
		End:     end,
		Key:     start.Format("2006-01-02") + "_" + end.Format("2006-01-02"),
		DueDate: dueDate(end),
	}
}

// CurrentPeriod implements Strategy.
func (Anniversary) CurrentPeriod(now, joinedAt time.Time) Period {
	day := BillingDay(joinedAt)
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), day, 0, 0, 0, 0, time.UTC)
	if now.Before(start) {
		start = start.AddDate(0, -1, 0)
	}
	return anniversaryPeriodAt(start)
}

// PreviousPeriod implements Strategy.
func (a Anniversary) PreviousPeriod(now, joinedAt time.Time) Period {
	cur := a.CurrentPeriod(now, joinedAt)
	return anniversaryPeriodAt(cur.Start.AddDate(0, -1, 0))
}

// ParseKey implements Strategy for keys of the form "start_end".
func (Anniversary) ParseKey(key string, _ time.Time) (Period, error) {
	startRaw, endRaw, ok := strings.Cut(key, "_")
	if !ok {
		return Period{}, fmt.Errorf("billing: bad cycle period key %q", key)
	}
	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return Period{}, fmt.Errorf("billing: bad cycle start in key %q", key)
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		return Period{}, fmt.Errorf("billing: bad cycle end in key %q", key)
	}
	return Period{Start: start, End: end, Key: key, DueDate: dueDate(end)}, nil
}

// StrategyByName resolves a configured strategy name.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "calendar", "":
		return CalendarMonth{}, nil
	case "anniversary":
		return Anniversary{}, nil
	default:
		return nil, fmt.Errorf("billing: unknown strategy %q", name)
	}
}
