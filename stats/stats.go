package stats

import (
	"fmt"
	"sort"
	"time"

	"playwarden/entity"
)

// SessionSource is the slice of the database the aggregator reads.
type SessionSource interface {
	SessionsOverlapping(userID int64, start, end time.Time) ([]entity.GamingSession, error)
	SessionDateBounds(userID int64) (first, last time.Time, found bool, err error)
}

// GameStats is one game's aggregate over a reporting window. Seconds outside
// the window are excluded even when a session straddles its edges.
type GameStats struct {
	GameID                int64   `json:"gameId"`
	GameName              string  `json:"gameName"`
	Platform              string  `json:"platform"`
	TotalSeconds          int64   `json:"totalSeconds"`
	SessionCount          int64   `json:"sessionCount"`
	UniqueDaysPlayed      int64   `json:"uniqueDaysPlayed"`
	DailyAverageSeconds   float64 `json:"dailyAverageSeconds"`
	AverageSessionSeconds float64 `json:"averageSessionSeconds"`
}

// Granularity selects the histogram bucket width.
type Granularity string

const (
	ByDay   Granularity = "day"
	ByMonth Granularity = "month"
)

// Histogram is playtime bucketed over time, one label and value per bucket.
// Empty buckets inside the window are present with a zero value.
type Histogram struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

// Aggregator computes reporting aggregates from stored sessions. Stateless.
type Aggregator struct {
	store SessionSource
}

func NewAggregator(store SessionSource) *Aggregator {
	return &Aggregator{store: store}
}

// Stats aggregates per game over [start, end). Sessions with no recorded
// duration, and sessions whose clamped contribution is zero, are skipped
// entirely, so they inflate no counts.
func (a *Aggregator) Stats(userID int64, start, end time.Time) ([]GameStats, error) {
	sessions, err := a.store.SessionsOverlapping(userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}

	byGame := make(map[int64]*GameStats)
	daysPlayed := make(map[int64]map[string]bool)
	for _, s := range sessions {
		if s.DurationSeconds <= 0 {
			continue
		}
		pieces := splitByDay(s.StartTime, s.EndTime, start, end)
		var total int64
		for _, p := range pieces {
			total += p.seconds
		}
		if total == 0 {
			continue
		}
		gs, ok := byGame[s.GameID]
		if !ok {
			gs = &GameStats{GameID: s.GameID, GameName: s.GameName, Platform: s.Platform}
			byGame[s.GameID] = gs
			daysPlayed[s.GameID] = make(map[string]bool)
		}
		gs.TotalSeconds += total
		gs.SessionCount++
		for _, p := range pieces {
			daysPlayed[s.GameID][p.day] = true
		}
	}

	out := make([]GameStats, 0, len(byGame))
	for gameID, gs := range byGame {
		gs.UniqueDaysPlayed = int64(len(daysPlayed[gameID]))
		gs.DailyAverageSeconds = float64(gs.TotalSeconds) / float64(gs.UniqueDaysPlayed)
		gs.AverageSessionSeconds = float64(gs.TotalSeconds) / float64(gs.SessionCount)
		out = append(out, *gs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalSeconds > out[j].TotalSeconds })
	return out, nil
}

// Histogram buckets playtime over [start, end) by day or month. A session
// reaching across a bucket boundary contributes to each bucket exactly the
// seconds that fall inside it.
func (a *Aggregator) Histogram(userID int64, start, end time.Time, granularity Granularity) (Histogram, error) {
	if granularity != ByDay && granularity != ByMonth {
		return Histogram{}, fmt.Errorf("Histogram: unknown granularity %q", granularity)
	}
	sessions, err := a.store.SessionsOverlapping(userID, start, end)
	if err != nil {
		return Histogram{}, fmt.Errorf("Histogram: %w", err)
	}

	seconds := make(map[string]int64)
	for _, s := range sessions {
		if s.DurationSeconds <= 0 {
			continue
		}
		for _, p := range splitByDay(s.StartTime, s.EndTime, start, end) {
			seconds[bucketLabel(p.dayStart, granularity)] += p.seconds
		}
	}

	var h Histogram
	for cur := bucketStart(start, granularity); cur.Before(end); cur = nextBucket(cur, granularity) {
		label := bucketLabel(cur, granularity)
		h.Labels = append(h.Labels, label)
		h.Values = append(h.Values, seconds[label])
	}
	return h, nil
}

// dayPiece is the part of a session falling on one calendar day.
type dayPiece struct {
	day      string
	dayStart time.Time
	seconds  int64
}

// splitByDay clamps a session to the window and cuts it at midnights.
func splitByDay(sessionStart, sessionEnd, windowStart, windowEnd time.Time) []dayPiece {
	if sessionStart.Before(windowStart) {
		sessionStart = windowStart
	}
	if sessionEnd.After(windowEnd) {
		sessionEnd = windowEnd
	}
	if !sessionStart.Before(sessionEnd) {
		return nil
	}

	var pieces []dayPiece
	cur := sessionStart
	for cur.Before(sessionEnd) {
		dayStart := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, cur.Location())
		dayEnd := dayStart.Add(24 * time.Hour)
		pieceEnd := sessionEnd
		if dayEnd.Before(pieceEnd) {
			pieceEnd = dayEnd
		}
		secs := int64(pieceEnd.Sub(cur) / time.Second)
		if secs > 0 {
			pieces = append(pieces, dayPiece{
				day:      dayStart.Format("2006-01-02"),
				dayStart: dayStart,
				seconds:  secs,
			})
		}
		cur = dayEnd
	}
	return pieces
}

func bucketStart(t time.Time, g Granularity) time.Time {
	if g == ByMonth {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func nextBucket(t time.Time, g Granularity) time.Time {
	if g == ByMonth {
		return t.AddDate(0, 1, 0)
	}
	return t.Add(24 * time.Hour)
}

func bucketLabel(t time.Time, g Granularity) string {
	if g == ByMonth {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}
