package tracker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// registration ties a tracked process id back to its game.
type registration struct {
	GameID      int64
	DisplayName string
}

// FocusMonitor polls the foreground window at a fixed cadence and reconciles
// it against the set of game processes the detection coordinator registered
// for this tick. It is the only component that decides "which game holds
// focus right now".
type FocusMonitor struct {
	source SnapshotSource
	bus    *Bus
	logger zerolog.Logger
	ticker *Ticker

	mu         sync.Mutex
	registry   map[int32]registration // pid -> game
	lastFocus  map[int64]time.Time    // gameID -> last time it held focus
	current    FocusedWindow
	hasCurrent bool
}

// NewFocusMonitor builds a monitor polling at interval.
func NewFocusMonitor(source SnapshotSource, bus *Bus, logger zerolog.Logger, interval time.Duration) *FocusMonitor {
	fm := &FocusMonitor{
		source:    source,
		bus:       bus,
		logger:    logger.With().Str("component", "focus-monitor").Logger(),
		registry:  make(map[int32]registration),
		lastFocus: make(map[int64]time.Time),
	}
	fm.ticker = NewTicker(interval, fm.poll)
	return fm
}

// Start launches the polling loop.
func (fm *FocusMonitor) Start() {
	fm.ticker.Start()
	fm.logger.Info().Msg("focus tracking started")
}

// Stop halts polling and clears the registry.
func (fm *FocusMonitor) Stop() {
	fm.ticker.Stop()
	fm.mu.Lock()
	fm.registry = make(map[int32]registration)
	fm.lastFocus = make(map[int64]time.Time)
	fm.hasCurrent = false
	fm.mu.Unlock()
	fm.logger.Info().Msg("focus tracking stopped")
}

// RegisterGameProcess marks a pid as belonging to a tracked game.
func (fm *FocusMonitor) RegisterGameProcess(pid int32, gameID int64, displayName string) {
	fm.mu.Lock()
	fm.registry[pid] = registration{GameID: gameID, DisplayName: displayName}
	fm.mu.Unlock()
}

// UnregisterGameProcess removes one pid from tracking.
func (fm *FocusMonitor) UnregisterGameProcess(pid int32) {
	fm.mu.Lock()
	delete(fm.registry, pid)
	fm.mu.Unlock()
}

// ClearGameProcesses empties the pid registry. Focus timestamps survive so
// the unfocus grace period keeps its reference point across re-registration.
func (fm *FocusMonitor) ClearGameProcesses() {
	fm.mu.Lock()
	fm.registry = make(map[int32]registration)
	fm.mu.Unlock()
}

// CurrentFocus returns the last polled foreground window.
func (fm *FocusMonitor) CurrentFocus() (FocusedWindow, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.current, fm.hasCurrent
}

// ResolveFocused maps the current foreground window to a registered game,
// stamping its last-focus time with now. ok=false when no tracked game
// holds focus. At most one game can be focused at a time by construction:
// there is only one foreground window.
func (fm *FocusMonitor) ResolveFocused(now time.Time) (int64, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if !fm.hasCurrent {
		return 0, false
	}
	reg, ok := fm.registry[fm.current.PID]
	if !ok {
		return 0, false
	}
	fm.lastFocus[reg.GameID] = now
	return reg.GameID, true
}

// LastFocusTime returns when a game last held focus.
func (fm *FocusMonitor) LastFocusTime(gameID int64) (time.Time, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	t, ok := fm.lastFocus[gameID]
	return t, ok
}

// ForgetGame drops a game's focus timestamp once its session is closed.
func (fm *FocusMonitor) ForgetGame(gameID int64) {
	fm.mu.Lock()
	delete(fm.lastFocus, gameID)
	fm.mu.Unlock()
}

// poll is one focus tick: compare the newly polled foreground process with
// the previous one and emit the change events.
func (fm *FocusMonitor) poll(now time.Time) {
	next, hasNext := fm.source.FocusedWindow()

	fm.mu.Lock()
	prev, hadPrev := fm.current, fm.hasCurrent
	changed := hadPrev != hasNext || (hasNext && prev.PID != next.PID)
	fm.current, fm.hasCurrent = next, hasNext

	var events []Event
	if hasNext {
		if reg, ok := fm.registry[next.PID]; ok {
			fm.lastFocus[reg.GameID] = now
			if changed {
				events = append(events, GameFocused{GameID: reg.GameID, GameName: reg.DisplayName})
			}
		}
	}
	if changed && hadPrev {
		if reg, ok := fm.registry[prev.PID]; ok && (!hasNext || prev.PID != next.PID) {
			events = append(events, GameUnfocused{GameID: reg.GameID, GameName: reg.DisplayName})
		}
	}
	if changed {
		events = append(events, FocusChanged{PID: next.PID, WindowTitle: next.WindowTitle})
	}
	fm.mu.Unlock()

	for _, e := range events {
		fm.bus.Publish(e)
	}
}
