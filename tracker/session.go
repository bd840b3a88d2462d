package tracker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"playwarden/entity"
	"playwarden/metrics"
)

// SessionStore is the slice of the database the session manager writes to.
type SessionStore interface {
	StartSession(gameID, userID, initialSeconds int64) (entity.GamingSession, error)
	UpdateSessionDuration(id, seconds int64) error
	EndSession(id, finalSeconds int64) error
	PreferencesForUser(userID int64) (entity.Preferences, error)
}

// GameDetector produces the list of enabled games currently running.
type GameDetector interface {
	DetectGames() []DetectedGame
}

// FocusTracker is the slice of the focus monitor the session manager drives.
type FocusTracker interface {
	ClearGameProcesses()
	RegisterGameProcess(pid int32, gameID int64, displayName string)
	ResolveFocused(now time.Time) (int64, bool)
	LastFocusTime(gameID int64) (time.Time, bool)
	ForgetGame(gameID int64)
}

// ActiveSession is the in-memory record of one running game.
type ActiveSession struct {
	SessionID       int64
	GameID          int64
	GameName        string
	StartTime       time.Time
	DurationSeconds int64
}

// SessionManager owns the set of active sessions. Its detection tick is the
// single writer of that set; everyone else reads snapshots. Durations are
// written through to storage every tick, so a crash loses at most one tick
// of playtime.
type SessionManager struct {
	store    SessionStore
	detector GameDetector
	focus    FocusTracker
	bus      *Bus
	logger   zerolog.Logger

	userID       int64
	interval     time.Duration
	unfocusGrace time.Duration

	ticker *Ticker
	clock  func() time.Time

	mu              sync.RWMutex
	active          map[int64]ActiveSession // gameID -> session
	isGaming        bool
	currentGameID   int64 // 0 when nothing is currently played
	publishedGameID int64 // last currently-playing value announced on the bus
}

func NewSessionManager(store SessionStore, detector GameDetector, focus FocusTracker, bus *Bus, logger zerolog.Logger, userID int64, interval, unfocusGrace time.Duration) *SessionManager {
	sm := &SessionManager{
		store:        store,
		detector:     detector,
		focus:        focus,
		bus:          bus,
		logger:       logger.With().Str("component", "session-manager").Logger(),
		userID:       userID,
		interval:     interval,
		unfocusGrace: unfocusGrace,
		clock:        time.Now,
		active:       make(map[int64]ActiveSession),
	}
	sm.ticker = NewTicker(interval, func(time.Time) { sm.Tick() })
	return sm
}

// StartTracking launches the detection loop.
func (sm *SessionManager) StartTracking() {
	sm.ticker.Start()
	sm.logger.Info().Dur("interval", sm.interval).Msg("session tracking started")
}

// StopTracking halts the loop and finalizes every active session. After it
// returns no tick is in flight and the active set is empty.
func (sm *SessionManager) StopTracking() {
	sm.ticker.Stop()

	sm.mu.Lock()
	for gameID, s := range sm.active {
		if err := sm.store.EndSession(s.SessionID, s.DurationSeconds); err != nil {
			metrics.SessionWriteErrors.Inc()
			sm.logger.Error().Err(err).Int64("sessionId", s.SessionID).Msg("failed to end session on shutdown")
		}
		metrics.SessionsStopped.Inc()
		sm.bus.Publish(GameStopped{GameID: s.GameID, GameName: s.GameName, DurationSeconds: s.DurationSeconds})
		sm.focus.ForgetGame(gameID)
		delete(sm.active, gameID)
	}
	sm.mu.Unlock()

	sm.focus.ClearGameProcesses()
	sm.publishStateChanges()
	sm.logger.Info().Msg("session tracking stopped")
}

// Running reports whether the detection loop is active.
func (sm *SessionManager) Running() bool {
	return sm.ticker.Running()
}

// ActiveSessions returns a snapshot of the active set.
func (sm *SessionManager) ActiveSessions() []ActiveSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]ActiveSession, 0, len(sm.active))
	for _, s := range sm.active {
		out = append(out, s)
	}
	return out
}

// CurrentlyPlaying returns the game the user is playing right now, if any.
func (sm *SessionManager) CurrentlyPlaying() (ActiveSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.active[sm.currentGameID]
	return s, ok
}

// Tick runs one detection pass: reconcile running processes against the
// active set, starting, continuing and ending sessions as needed.
func (sm *SessionManager) Tick() {
	now := sm.clock()
	detected := sm.detector.DetectGames()

	// Rebuild the pid registry from scratch each pass; pids churn and a
	// stale registration must not outlive the process it named.
	sm.focus.ClearGameProcesses()
	for _, d := range detected {
		sm.focus.RegisterGameProcess(d.PID, d.Game.ID, d.Game.Name)
	}
	focusedID, hasFocused := sm.focus.ResolveFocused(now)

	stopOnUnfocus := true
	if prefs, err := sm.store.PreferencesForUser(sm.userID); err != nil {
		sm.logger.Warn().Err(err).Msg("failed to load preferences, assuming stop-on-unfocus")
	} else {
		stopOnUnfocus = prefs.StopOnUnfocus
	}

	running := make(map[int64]DetectedGame, len(detected))
	for _, d := range detected {
		running[d.Game.ID] = d
	}

	sm.mu.Lock()
	tickSeconds := int64(sm.interval / time.Second)

	// Only the focused game opens a session; a game that is merely running
	// stays idle until it gains focus.
	startedNow := false
	if d, isRunning := running[focusedID]; hasFocused && isRunning {
		if _, open := sm.active[focusedID]; !open {
			startedNow = sm.startSession(d, now)
		}
	}

	for gameID, s := range sm.active {
		if _, ok := running[gameID]; !ok {
			sm.endSession(s, "process gone")
			continue
		}
		if hasFocused && gameID == focusedID {
			if startedNow {
				// Fresh sessions accrue from the next pass.
				continue
			}
			next := s
			next.DurationSeconds += tickSeconds
			if err := sm.store.UpdateSessionDuration(next.SessionID, next.DurationSeconds); err != nil {
				// Leave the in-memory record untouched so the next tick
				// retries the same write.
				metrics.SessionWriteErrors.Inc()
				sm.logger.Error().Err(err).Int64("sessionId", s.SessionID).Msg("failed to persist session duration")
				continue
			}
			sm.active[gameID] = next
			continue
		}
		// Unfocused but still running: the session stays open without
		// accruing until the grace period runs out.
		if stopOnUnfocus && sm.unfocusedPast(s, now) {
			sm.endSession(s, "unfocused past grace")
		}
	}

	sm.currentGameID = sm.resolveCurrent(focusedID, hasFocused)
	sm.mu.Unlock()

	sm.publishStateChanges()
}

// startSession opens a session for a newly focused game. Failure is logged;
// the game is simply picked up again on the next pass.
func (sm *SessionManager) startSession(d DetectedGame, now time.Time) bool {
	sess, err := sm.store.StartSession(d.Game.ID, sm.userID, 0)
	if err != nil {
		metrics.SessionWriteErrors.Inc()
		sm.logger.Error().Err(err).Str("game", d.Game.Name).Msg("failed to start session")
		return false
	}
	sm.active[d.Game.ID] = ActiveSession{
		SessionID: sess.ID,
		GameID:    d.Game.ID,
		GameName:  d.Game.Name,
		StartTime: now,
	}
	metrics.SessionsStarted.Inc()
	sm.logger.Info().Str("game", d.Game.Name).Int64("sessionId", sess.ID).Msg("session started")
	sm.bus.Publish(GameStarted{GameID: d.Game.ID, GameName: d.Game.Name})
	return true
}

// endSession finalizes one session. On storage failure the in-memory record
// stays so the next pass retries.
func (sm *SessionManager) endSession(s ActiveSession, reason string) {
	if err := sm.store.EndSession(s.SessionID, s.DurationSeconds); err != nil {
		metrics.SessionWriteErrors.Inc()
		sm.logger.Error().Err(err).Int64("sessionId", s.SessionID).Msg("failed to end session")
		return
	}
	delete(sm.active, s.GameID)
	sm.focus.ForgetGame(s.GameID)
	metrics.SessionsStopped.Inc()
	sm.logger.Info().
		Str("game", s.GameName).
		Int64("sessionId", s.SessionID).
		Int64("durationSeconds", s.DurationSeconds).
		Str("reason", reason).
		Msg("session ended")
	sm.bus.Publish(GameStopped{GameID: s.GameID, GameName: s.GameName, DurationSeconds: s.DurationSeconds})
}

// unfocusedPast reports whether a session has been out of focus longer than
// the grace period. A session whose focus stamp is gone is measured from its
// start.
func (sm *SessionManager) unfocusedPast(s ActiveSession, now time.Time) bool {
	ref := s.StartTime
	if t, ok := sm.focus.LastFocusTime(s.GameID); ok {
		ref = t
	}
	return now.Sub(ref) > sm.unfocusGrace
}

// resolveCurrent picks the currently played game: the focused one when it has
// an open session, otherwise none.
func (sm *SessionManager) resolveCurrent(focusedID int64, hasFocused bool) int64 {
	if hasFocused {
		if _, ok := sm.active[focusedID]; ok {
			return focusedID
		}
	}
	return 0
}

// publishStateChanges emits gaming-state and currently-playing events, but
// only when the value actually flipped since the last publish.
func (sm *SessionManager) publishStateChanges() {
	sm.mu.Lock()
	gaming := len(sm.active) > 0
	gamingChanged := gaming != sm.isGaming
	sm.isGaming = gaming

	current, hasCurrent := sm.active[sm.currentGameID]
	if !hasCurrent && sm.currentGameID != 0 {
		sm.currentGameID = 0
	}
	playingChanged := sm.publishedGameID != sm.currentGameID
	sm.publishedGameID = sm.currentGameID
	sm.mu.Unlock()

	if gamingChanged {
		if gaming {
			metrics.GamingState.Set(1)
		} else {
			metrics.GamingState.Set(0)
		}
		sm.bus.Publish(GamingStateChanged{IsGaming: gaming})
	}
	if playingChanged {
		ev := CurrentlyPlayingChanged{}
		if hasCurrent {
			ev.GameID = current.GameID
			name := current.GameName
			ev.GameName = &name
		}
		sm.bus.Publish(ev)
	}
}
