package limits

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"playwarden/entity"
	"playwarden/metrics"
	"playwarden/tracker"
)

// TimerState is one immutable snapshot of the countdown.
type TimerState struct {
	HasLimit         bool           `json:"hasLimit"`
	Day              entity.Weekday `json:"day"`
	LimitSeconds     int64          `json:"limitSeconds"`
	PlayedSeconds    int64          `json:"playedSeconds"`
	RemainingSeconds int64          `json:"remainingSeconds"`
	IsOverLimit      bool           `json:"isOverLimit"`
	IsGaming         bool           `json:"isGaming"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// TimerUpdated carries a fresh snapshot to bus subscribers after every
// timer mutation.
type TimerUpdated struct {
	State TimerState
}

func (TimerUpdated) Kind() string { return "timer-updated" }

// OverLimitChanged fires exactly once per flip of the over-limit flag.
type OverLimitChanged struct {
	IsOverLimit      bool
	RemainingSeconds int64
}

func (OverLimitChanged) Kind() string { return "over-limit-changed" }

// StatusSource yields the authoritative limit standing; usually *Evaluator.
type StatusSource interface {
	Status(userID int64, now time.Time) (LimitStatus, error)
}

// Timer counts the remaining daily allowance down once per second while a
// game is running. The local countdown is cheap but drifts, so every
// resyncTicks ticks it re-reads the authoritative value from the evaluator.
type Timer struct {
	evaluator   StatusSource
	bus         *tracker.Bus
	logger      zerolog.Logger
	userID      int64
	resyncTicks int

	ticker *tracker.Ticker
	clock  func() time.Time

	mu             sync.Mutex
	state          TimerState
	ticksSinceSync int
	isGaming       bool
}

func NewTimer(evaluator StatusSource, bus *tracker.Bus, logger zerolog.Logger, userID int64, resyncTicks int) *Timer {
	t := &Timer{
		evaluator:   evaluator,
		bus:         bus,
		logger:      logger.With().Str("component", "limit-timer").Logger(),
		userID:      userID,
		resyncTicks: resyncTicks,
		clock:       time.Now,
	}
	t.ticker = tracker.NewTicker(time.Second, t.tick)
	return t
}

// Start syncs once and launches the countdown loop.
func (t *Timer) Start() {
	t.ForceUpdate()
	t.ticker.Start()
	t.logger.Info().Msg("limit timer started")
}

// Stop halts the loop; the last published state stays valid.
func (t *Timer) Stop() {
	t.ticker.Stop()
	t.logger.Info().Msg("limit timer stopped")
}

// State returns the current snapshot.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetGamingState tells the timer whether a game is running. A change forces
// a resync so the countdown starts or stops from an authoritative value.
func (t *Timer) SetGamingState(gaming bool) {
	t.mu.Lock()
	if t.isGaming == gaming {
		t.mu.Unlock()
		return
	}
	t.isGaming = gaming
	t.mu.Unlock()
	t.ForceUpdate()
}

// ForceUpdate re-reads the evaluator immediately and broadcasts. Called when
// limits change or sessions end, so the display never shows a stale value
// longer than necessary.
func (t *Timer) ForceUpdate() {
	t.mu.Lock()
	t.resync(t.clock())
	state := t.state
	t.mu.Unlock()
	t.bus.Publish(TimerUpdated{State: state})
}

func (t *Timer) tick(now time.Time) {
	t.mu.Lock()
	t.ticksSinceSync++
	if t.ticksSinceSync >= t.resyncTicks {
		t.resync(now)
	} else if t.isGaming && t.state.HasLimit {
		next := t.state
		next.PlayedSeconds++
		next.RemainingSeconds--
		next.IsOverLimit = next.RemainingSeconds < 0
		next.IsGaming = true
		next.UpdatedAt = now
		t.apply(next)
	} else {
		t.state.IsGaming = t.isGaming
		t.state.UpdatedAt = now
	}
	state := t.state
	t.mu.Unlock()
	t.bus.Publish(TimerUpdated{State: state})
}

// resync replaces local state with the evaluator's answer. On storage
// failure the local countdown keeps going and the next resync retries.
// Caller holds t.mu.
func (t *Timer) resync(now time.Time) {
	t.ticksSinceSync = 0
	status, err := t.evaluator.Status(t.userID, now)
	if err != nil {
		t.logger.Error().Err(err).Msg("limit resync failed, keeping local countdown")
		return
	}
	t.apply(TimerState{
		HasLimit:         status.HasLimit,
		Day:              status.Day,
		LimitSeconds:     status.LimitSeconds,
		PlayedSeconds:    status.PlayedSeconds,
		RemainingSeconds: status.RemainingSeconds,
		IsOverLimit:      status.IsOverLimit,
		IsGaming:         t.isGaming,
		UpdatedAt:        now,
	})
}

// apply installs a new state and announces an over-limit flip when one
// happened. Caller holds t.mu.
func (t *Timer) apply(next TimerState) {
	over := next.HasLimit && next.IsOverLimit
	wasOver := t.state.HasLimit && t.state.IsOverLimit
	t.state = next
	if over == wasOver {
		return
	}
	if over {
		metrics.OverLimit.Set(1)
	} else {
		metrics.OverLimit.Set(0)
	}
	t.logger.Info().Bool("overLimit", over).Int64("remainingSeconds", next.RemainingSeconds).Msg("over-limit state changed")
	t.bus.Publish(OverLimitChanged{IsOverLimit: over, RemainingSeconds: next.RemainingSeconds})
}
