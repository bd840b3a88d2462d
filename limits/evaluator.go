package limits

import (
	"fmt"
	"time"

	"playwarden/entity"
	"playwarden/tracker"
)

// LimitStore is the slice of the database the evaluator reads.
type LimitStore interface {
	LimitForDay(userID int64, day entity.Weekday) (entity.Limit, bool, error)
	SessionsOverlapping(userID int64, start, end time.Time) ([]entity.GamingSession, error)
}

// ActiveSessionReader exposes the in-memory active set; live sessions count
// their elapsed wall time rather than the last persisted duration.
type ActiveSessionReader interface {
	ActiveSessions() []tracker.ActiveSession
}

// LimitStatus is today's standing against the configured daily limit.
// RemainingSeconds goes negative once the limit is exceeded.
type LimitStatus struct {
	HasLimit         bool           `json:"hasLimit"`
	Day              entity.Weekday `json:"day"`
	LimitSeconds     int64          `json:"limitSeconds"`
	PlayedSeconds    int64          `json:"playedSeconds"`
	RemainingSeconds int64          `json:"remainingSeconds"`
	IsOverLimit      bool           `json:"isOverLimit"`
}

// Evaluator computes limit status from stored sessions plus the live active
// set. It holds no state of its own; every call re-reads storage.
type Evaluator struct {
	store  LimitStore
	active ActiveSessionReader
}

func NewEvaluator(store LimitStore, active ActiveSessionReader) *Evaluator {
	return &Evaluator{store: store, active: active}
}

// Status evaluates the user's standing for the day containing now. Sessions
// that started inside that calendar day count with their stored duration;
// sessions still open count their elapsed wall time instead, so the reading
// never trails a not-yet-written tick.
func (e *Evaluator) Status(userID int64, now time.Time) (LimitStatus, error) {
	day := entity.WeekdayOf(now)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	status := LimitStatus{Day: day}

	limit, found, err := e.store.LimitForDay(userID, day)
	if err != nil {
		return LimitStatus{}, fmt.Errorf("Status: %w", err)
	}
	if found {
		status.HasLimit = true
		status.LimitSeconds = limit.LimitSeconds
	}

	sessions, err := e.store.SessionsOverlapping(userID, dayStart, dayEnd)
	if err != nil {
		return LimitStatus{}, fmt.Errorf("Status: %w", err)
	}

	live := make(map[int64]tracker.ActiveSession)
	for _, s := range e.active.ActiveSessions() {
		live[s.SessionID] = s
	}

	var played int64
	counted := make(map[int64]bool)
	for _, s := range sessions {
		if s.StartTime.Before(dayStart) || !s.StartTime.Before(dayEnd) {
			continue
		}
		if _, ok := live[s.ID]; ok {
			// Still running: the stored duration trails by up to one
			// tick, so measure elapsed wall time instead.
			played += elapsedSeconds(s.StartTime, now)
			counted[s.ID] = true
			continue
		}
		played += s.DurationSeconds
	}
	// An active session the stored query missed still counts.
	for id, s := range live {
		if !counted[id] && !s.StartTime.Before(dayStart) && s.StartTime.Before(dayEnd) {
			played += elapsedSeconds(s.StartTime, now)
		}
	}

	status.PlayedSeconds = played
	if status.HasLimit {
		status.RemainingSeconds = status.LimitSeconds - played
		status.IsOverLimit = status.RemainingSeconds < 0
	}
	return status, nil
}

// elapsedSeconds is the whole seconds between start and now, never negative.
func elapsedSeconds(start, now time.Time) int64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
