package limits

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playwarden/entity"
	"playwarden/tracker"
)

type fakeStatus struct {
	fn    func(now time.Time) (LimitStatus, error)
	calls int
}

func (f *fakeStatus) Status(userID int64, now time.Time) (LimitStatus, error) {
	f.calls++
	return f.fn(now)
}

func fixedStatus(limit, played int64) func(time.Time) (LimitStatus, error) {
	return func(now time.Time) (LimitStatus, error) {
		remaining := limit - played
		return LimitStatus{
			HasLimit:         true,
			Day:              entity.WeekdayOf(now),
			LimitSeconds:     limit,
			PlayedSeconds:    played,
			RemainingSeconds: remaining,
			IsOverLimit:      remaining < 0,
		}, nil
	}
}

type timerFixture struct {
	timer  *Timer
	source *fakeStatus
	events <-chan tracker.Event
	now    time.Time
}

func newTimerFixture(t *testing.T, fn func(time.Time) (LimitStatus, error)) *timerFixture {
	t.Helper()
	fx := &timerFixture{
		source: &fakeStatus{fn: fn},
		now:    time.Date(2026, 5, 12, 20, 0, 0, 0, time.UTC),
	}
	bus := tracker.NewBus()
	fx.events = bus.Subscribe()
	fx.timer = NewTimer(fx.source, bus, zerolog.Nop(), 1, 10)
	fx.timer.clock = func() time.Time { return fx.now }
	return fx
}

func (fx *timerFixture) tick() {
	fx.now = fx.now.Add(time.Second)
	fx.timer.tick(fx.now)
}

func overLimitEvents(events <-chan tracker.Event) []OverLimitChanged {
	var out []OverLimitChanged
	for {
		select {
		case e := <-events:
			if o, ok := e.(OverLimitChanged); ok {
				out = append(out, o)
			}
		default:
			return out
		}
	}
}

func TestTimerCountsDownWhileGaming(t *testing.T) {
	fx := newTimerFixture(t, fixedStatus(100, 40))
	fx.timer.SetGamingState(true)
	require.Equal(t, int64(60), fx.timer.State().RemainingSeconds)

	for i := 0; i < 5; i++ {
		fx.tick()
	}
	state := fx.timer.State()
	assert.Equal(t, int64(55), state.RemainingSeconds)
	assert.Equal(t, int64(45), state.PlayedSeconds)
	assert.True(t, state.IsGaming)
}

func TestTimerIdleDoesNotCountDown(t *testing.T) {
	fx := newTimerFixture(t, fixedStatus(100, 40))
	fx.timer.ForceUpdate()
	for i := 0; i < 5; i++ {
		fx.tick()
	}
	assert.Equal(t, int64(60), fx.timer.State().RemainingSeconds)
}

func TestTimerResyncsPeriodically(t *testing.T) {
	fx := newTimerFixture(t, fixedStatus(100, 40))
	fx.timer.SetGamingState(true)
	calls := fx.source.calls

	for i := 0; i < 9; i++ {
		fx.tick()
	}
	assert.Equal(t, calls, fx.source.calls, "local ticks must not hit storage")

	fx.tick() // tenth tick resyncs
	assert.Equal(t, calls+1, fx.source.calls)
	// The authoritative answer replaces the local countdown.
	assert.Equal(t, int64(60), fx.timer.State().RemainingSeconds)
}

func TestTimerResyncFailureKeepsLocalState(t *testing.T) {
	failing := false
	fx := newTimerFixture(t, nil)
	fx.source.fn = func(now time.Time) (LimitStatus, error) {
		if failing {
			return LimitStatus{}, assert.AnError
		}
		return fixedStatus(100, 40)(now)
	}
	fx.timer.SetGamingState(true)

	failing = true
	for i := 0; i < 12; i++ {
		fx.tick()
	}
	// Resync failed twice but local countdown carried on from 60.
	assert.Less(t, fx.timer.State().RemainingSeconds, int64(60))
	assert.True(t, fx.timer.State().HasLimit)
}

func TestOverLimitFiresExactlyOnce(t *testing.T) {
	fx := newTimerFixture(t, fixedStatus(100, 97))
	fx.timer.SetGamingState(true)
	overLimitEvents(fx.events)

	for i := 0; i < 5; i++ {
		fx.tick()
	}
	got := overLimitEvents(fx.events)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsOverLimit)
	assert.True(t, fx.timer.State().IsOverLimit)
	// The countdown keeps going past zero.
	assert.Equal(t, int64(-2), fx.timer.State().RemainingSeconds)
}

func TestOverLimitClearsWhenLimitRaised(t *testing.T) {
	played := int64(150)
	limit := int64(100)
	fx := newTimerFixture(t, nil)
	fx.source.fn = func(now time.Time) (LimitStatus, error) {
		return fixedStatus(limit, played)(now)
	}
	fx.timer.ForceUpdate()
	require.True(t, fx.timer.State().IsOverLimit)
	overLimitEvents(fx.events)

	limit = 7200
	fx.timer.ForceUpdate()
	got := overLimitEvents(fx.events)
	require.Len(t, got, 1)
	assert.False(t, got[0].IsOverLimit)
}

func TestSetGamingStateForcesResync(t *testing.T) {
	fx := newTimerFixture(t, fixedStatus(100, 40))
	calls := fx.source.calls
	fx.timer.SetGamingState(true)
	assert.Equal(t, calls+1, fx.source.calls)

	// Repeating the same state is a no-op.
	fx.timer.SetGamingState(true)
	assert.Equal(t, calls+1, fx.source.calls)

	fx.timer.SetGamingState(false)
	assert.Equal(t, calls+2, fx.source.calls)
}

// A full hour-long limit consumed second by second trips the over-limit
// event exactly once, resyncs included.
func TestHourLimitConsumedOnce(t *testing.T) {
	start := time.Date(2026, 5, 12, 20, 0, 0, 0, time.UTC)
	fx := newTimerFixture(t, nil)
	fx.source.fn = func(now time.Time) (LimitStatus, error) {
		played := int64(now.Sub(start) / time.Second)
		return fixedStatus(3600, played)(now)
	}
	fx.timer.SetGamingState(true)
	overLimitEvents(fx.events)

	var got []OverLimitChanged
	for i := 0; i < 61*60; i++ {
		fx.tick()
		got = append(got, overLimitEvents(fx.events)...)
	}
	require.Len(t, got, 1)
	assert.True(t, got[0].IsOverLimit)
	assert.Equal(t, int64(-60), fx.timer.State().RemainingSeconds)
}
