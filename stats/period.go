package stats

import (
	"fmt"
	"time"
)

// Named reporting periods accepted by PeriodRange.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

// PeriodRange resolves a named period to a concrete [start, end) window
// anchored at now. "all" spans the user's recorded history; with no sessions
// it degrades to today's window.
func (a *Aggregator) PeriodRange(userID int64, period string, now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case PeriodToday:
		return today, today.Add(24 * time.Hour), nil
	case PeriodWeek:
		return today.AddDate(0, 0, -6), today.Add(24 * time.Hour), nil
	case PeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), nil
	case PeriodYear:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0), nil
	case PeriodAll:
		first, last, found, err := a.store.SessionDateBounds(userID)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("PeriodRange: %w", err)
		}
		if !found {
			return today, today.Add(24 * time.Hour), nil
		}
		start := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, now.Location())
		endDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, now.Location())
		return start, endDay.Add(24 * time.Hour), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("PeriodRange: unknown period %q", period)
	}
}
