package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playwarden/entity"
)

type fakeSessionStore struct {
	nextID     int64
	durations  map[int64]int64
	ended      map[int64]int64
	prefs      entity.Preferences
	prefsErr   error
	failStart  bool
	failUpdate bool
	failEnd    bool
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		durations: make(map[int64]int64),
		ended:     make(map[int64]int64),
		prefs:     entity.DefaultPreferences(1),
	}
}

func (s *fakeSessionStore) StartSession(gameID, userID, initialSeconds int64) (entity.GamingSession, error) {
	if s.failStart {
		return entity.GamingSession{}, errors.New("start failed")
	}
	s.nextID++
	s.durations[s.nextID] = initialSeconds
	return entity.GamingSession{ID: s.nextID, GameID: gameID, UserID: userID}, nil
}

func (s *fakeSessionStore) UpdateSessionDuration(id, seconds int64) error {
	if s.failUpdate {
		return errors.New("update failed")
	}
	s.durations[id] = seconds
	return nil
}

func (s *fakeSessionStore) EndSession(id, finalSeconds int64) error {
	if s.failEnd {
		return errors.New("end failed")
	}
	s.durations[id] = finalSeconds
	s.ended[id] = finalSeconds
	return nil
}

func (s *fakeSessionStore) PreferencesForUser(userID int64) (entity.Preferences, error) {
	if s.prefsErr != nil {
		return entity.Preferences{}, s.prefsErr
	}
	return s.prefs, nil
}

type fakeDetector struct {
	games []DetectedGame
}

func (d *fakeDetector) DetectGames() []DetectedGame { return d.games }

type fakeFocus struct {
	registered map[int32]int64
	lastFocus  map[int64]time.Time
	focusedID  int64
	hasFocused bool
}

func newFakeFocus() *fakeFocus {
	return &fakeFocus{
		registered: make(map[int32]int64),
		lastFocus:  make(map[int64]time.Time),
	}
}

func (f *fakeFocus) ClearGameProcesses() { f.registered = make(map[int32]int64) }

func (f *fakeFocus) RegisterGameProcess(pid int32, gameID int64, displayName string) {
	f.registered[pid] = gameID
}

func (f *fakeFocus) ResolveFocused(now time.Time) (int64, bool) {
	if f.hasFocused {
		f.lastFocus[f.focusedID] = now
	}
	return f.focusedID, f.hasFocused
}

func (f *fakeFocus) LastFocusTime(gameID int64) (time.Time, bool) {
	t, ok := f.lastFocus[gameID]
	return t, ok
}

func (f *fakeFocus) ForgetGame(gameID int64) { delete(f.lastFocus, gameID) }

type sessionFixture struct {
	sm       *SessionManager
	store    *fakeSessionStore
	detector *fakeDetector
	focus    *fakeFocus
	events   <-chan Event
	now      time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	fx := &sessionFixture{
		store:    newFakeSessionStore(),
		detector: &fakeDetector{},
		focus:    newFakeFocus(),
		now:      time.Date(2026, 5, 12, 20, 0, 0, 0, time.UTC),
	}
	bus := NewBus()
	fx.events = bus.Subscribe()
	fx.sm = NewSessionManager(fx.store, fx.detector, fx.focus, bus, zerolog.Nop(), 1, 3*time.Second, 30*time.Second)
	fx.sm.clock = func() time.Time { return fx.now }
	return fx
}

func (fx *sessionFixture) detect(hades bool) {
	fx.detector.games = nil
	if hades {
		fx.detector.games = []DetectedGame{
			{Game: entity.Game{ID: 1, Name: "Hades", Enabled: true}, PID: 100},
		}
		fx.focus.focusedID, fx.focus.hasFocused = 1, true
	} else {
		fx.focus.hasFocused = false
	}
}

func (fx *sessionFixture) advance(d time.Duration) { fx.now = fx.now.Add(d) }

func eventsOfKind(events []Event, kind string) []Event {
	var out []Event
	for _, e := range events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestTickStartsSession(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()

	active := fx.sm.ActiveSessions()
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].GameID)
	assert.Zero(t, active[0].DurationSeconds)
	assert.Equal(t, fx.now, active[0].StartTime)

	got := drainEvents(fx.events)
	require.Len(t, eventsOfKind(got, "game-started"), 1)
	gaming := eventsOfKind(got, "gaming-state-changed")
	require.Len(t, gaming, 1)
	assert.True(t, gaming[0].(GamingStateChanged).IsGaming)
	playing := eventsOfKind(got, "currently-playing-changed")
	require.Len(t, playing, 1)
	assert.Equal(t, int64(1), playing[0].(CurrentlyPlayingChanged).GameID)
}

func TestTickAccumulatesDuration(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()

	active := fx.sm.ActiveSessions()
	require.Len(t, active, 1)
	assert.Equal(t, int64(6), active[0].DurationSeconds)
	// Write-through: storage tracks the in-memory value each tick.
	assert.Equal(t, int64(6), fx.store.durations[1])
}

func TestTickEndsSessionWhenProcessGone(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	drainEvents(fx.events)

	fx.detect(false)
	fx.advance(3 * time.Second)
	fx.sm.Tick()

	assert.Empty(t, fx.sm.ActiveSessions())
	assert.Equal(t, int64(3), fx.store.ended[1])

	got := drainEvents(fx.events)
	stopped := eventsOfKind(got, "game-stopped")
	require.Len(t, stopped, 1)
	assert.Equal(t, int64(3), stopped[0].(GameStopped).DurationSeconds)
	gaming := eventsOfKind(got, "gaming-state-changed")
	require.Len(t, gaming, 1)
	assert.False(t, gaming[0].(GamingStateChanged).IsGaming)
}

func TestUnfocusGraceEndsSession(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()

	// Game stays running but loses focus; within grace it stays open.
	fx.focus.hasFocused = false
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	require.Len(t, fx.sm.ActiveSessions(), 1)

	// Past the 30s grace the session ends even though the process lives.
	fx.advance(31 * time.Second)
	fx.sm.Tick()
	assert.Empty(t, fx.sm.ActiveSessions())
	assert.Contains(t, fx.store.ended, int64(1))
}

func TestNoSessionStartsWithoutFocus(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detector.games = []DetectedGame{
		{Game: entity.Game{ID: 1, Name: "Hades", Enabled: true}, PID: 100},
		{Game: entity.Game{ID: 2, Name: "Celeste", Enabled: true}, PID: 200},
	}
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()

	assert.Empty(t, fx.sm.ActiveSessions())
	got := drainEvents(fx.events)
	assert.Empty(t, eventsOfKind(got, "game-started"))
	// Currently-playing was already null; it is not re-announced.
	assert.Empty(t, eventsOfKind(got, "currently-playing-changed"))
}

func TestUnfocusedSessionDoesNotAccrue(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	require.Equal(t, int64(3), fx.store.durations[1])

	fx.focus.hasFocused = false
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()

	require.Len(t, fx.sm.ActiveSessions(), 1)
	assert.Equal(t, int64(3), fx.sm.ActiveSessions()[0].DurationSeconds)
	assert.Equal(t, int64(3), fx.store.durations[1])
}

func TestOnlyFocusedGameAccrues(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detector.games = []DetectedGame{
		{Game: entity.Game{ID: 1, Name: "Hades", Enabled: true}, PID: 100},
		{Game: entity.Game{ID: 2, Name: "Celeste", Enabled: true}, PID: 200},
	}
	fx.focus.focusedID, fx.focus.hasFocused = 1, true
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()

	fx.focus.focusedID = 2
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()

	active := fx.sm.ActiveSessions()
	require.Len(t, active, 2)
	byGame := make(map[int64]ActiveSession)
	for _, s := range active {
		byGame[s.GameID] = s
	}
	// Hades got exactly one focused tick before the switch; Celeste one after.
	assert.Equal(t, int64(3), byGame[1].DurationSeconds)
	assert.Equal(t, int64(3), byGame[2].DurationSeconds)
}

func TestSessionFinalizesWithFocusedSecondsOnly(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	drainEvents(fx.events)

	fx.focus.hasFocused = false
	fx.advance(31 * time.Second)
	fx.sm.Tick()

	// The unfocused 31 seconds do not count toward the recorded duration.
	assert.Empty(t, fx.sm.ActiveSessions())
	assert.Equal(t, int64(6), fx.store.ended[1])
	got := drainEvents(fx.events)
	stopped := eventsOfKind(got, "game-stopped")
	require.Len(t, stopped, 1)
	assert.Equal(t, int64(6), stopped[0].(GameStopped).DurationSeconds)
}

func TestCurrentlyPlayingNullWhileUnfocused(t *testing.T) {
	fx := newSessionFixture(t)
	fx.store.prefs.StopOnUnfocus = false
	fx.detect(true)
	fx.sm.Tick()
	drainEvents(fx.events)

	fx.focus.hasFocused = false
	fx.advance(3 * time.Second)
	fx.sm.Tick()

	_, ok := fx.sm.CurrentlyPlaying()
	assert.False(t, ok)
	playing := eventsOfKind(drainEvents(fx.events), "currently-playing-changed")
	require.Len(t, playing, 1)
	assert.Nil(t, playing[0].(CurrentlyPlayingChanged).GameName)

	// Already null: a further unfocused tick does not re-announce it.
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	assert.Empty(t, eventsOfKind(drainEvents(fx.events), "currently-playing-changed"))
}

func TestUnfocusIgnoredWhenPreferenceOff(t *testing.T) {
	fx := newSessionFixture(t)
	fx.store.prefs.StopOnUnfocus = false
	fx.detect(true)
	fx.sm.Tick()

	fx.focus.hasFocused = false
	fx.advance(60 * time.Second)
	fx.sm.Tick()

	require.Len(t, fx.sm.ActiveSessions(), 1)
	assert.Empty(t, fx.store.ended)
}

func TestPreferenceLoadFailureDefaultsToStopOnUnfocus(t *testing.T) {
	fx := newSessionFixture(t)
	fx.store.prefsErr = errors.New("db closed")
	fx.detect(true)
	fx.sm.Tick()

	fx.focus.hasFocused = false
	fx.advance(60 * time.Second)
	fx.sm.Tick()

	assert.Empty(t, fx.sm.ActiveSessions())
}

func TestDurationWriteFailureRetriesNextTick(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()

	fx.store.failUpdate = true
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	// In-memory state untouched on failure so the retry recomputes from it.
	require.Len(t, fx.sm.ActiveSessions(), 1)
	assert.Zero(t, fx.sm.ActiveSessions()[0].DurationSeconds)

	fx.store.failUpdate = false
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	assert.Equal(t, int64(3), fx.sm.ActiveSessions()[0].DurationSeconds)
	assert.Equal(t, int64(3), fx.store.durations[1])
}

func TestEndSessionFailureKeepsSessionForRetry(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()

	fx.store.failEnd = true
	fx.detect(false)
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	require.Len(t, fx.sm.ActiveSessions(), 1)

	fx.store.failEnd = false
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	assert.Empty(t, fx.sm.ActiveSessions())
	assert.Contains(t, fx.store.ended, int64(1))
}

func TestStartSessionFailureRetriesNextTick(t *testing.T) {
	fx := newSessionFixture(t)
	fx.store.failStart = true
	fx.detect(true)
	fx.sm.Tick()
	assert.Empty(t, fx.sm.ActiveSessions())

	fx.store.failStart = false
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	assert.Len(t, fx.sm.ActiveSessions(), 1)
}

func TestGamingStateNotRepublished(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()
	drainEvents(fx.events)

	fx.advance(3 * time.Second)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()

	got := drainEvents(fx.events)
	assert.Empty(t, eventsOfKind(got, "gaming-state-changed"))
	assert.Empty(t, eventsOfKind(got, "currently-playing-changed"))
}

func TestCurrentlyPlaying(t *testing.T) {
	fx := newSessionFixture(t)
	_, ok := fx.sm.CurrentlyPlaying()
	assert.False(t, ok)

	fx.detect(true)
	fx.sm.Tick()
	current, ok := fx.sm.CurrentlyPlaying()
	require.True(t, ok)
	assert.Equal(t, "Hades", current.GameName)
}

func TestStopTrackingFinalizesSessions(t *testing.T) {
	fx := newSessionFixture(t)
	fx.detect(true)
	fx.sm.Tick()
	fx.advance(3 * time.Second)
	fx.sm.Tick()
	drainEvents(fx.events)

	fx.sm.StopTracking()

	assert.Empty(t, fx.sm.ActiveSessions())
	assert.Equal(t, int64(3), fx.store.ended[1])

	got := drainEvents(fx.events)
	require.Len(t, eventsOfKind(got, "game-stopped"), 1)
	gaming := eventsOfKind(got, "gaming-state-changed")
	require.Len(t, gaming, 1)
	assert.False(t, gaming[0].(GamingStateChanged).IsGaming)
}
