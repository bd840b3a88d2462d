package tracker

import "sync"

// Event is the message type published by the engine. Consumers switch on
// the concrete event struct; Kind exists for logging and the API surface.
type Event interface {
	Kind() string
}

// NewGameDetected fires once when an unrecognized executable is registered.
type NewGameDetected struct {
	GameID   int64
	GameName string
	Platform string
}

func (NewGameDetected) Kind() string { return "new-game-detected" }

// GameStarted fires when a session opens for a game.
type GameStarted struct {
	GameID   int64
	GameName string
}

func (GameStarted) Kind() string { return "game-started" }

// GameStopped fires when a session is finalized.
type GameStopped struct {
	GameID          int64
	GameName        string
	DurationSeconds int64
}

func (GameStopped) Kind() string { return "game-stopped" }

// GamingStateChanged fires when the engine moves between "some session
// open" and "nothing open".
type GamingStateChanged struct {
	IsGaming bool
}

func (GamingStateChanged) Kind() string { return "gaming-state-changed" }

// CurrentlyPlayingChanged fires when the externally visible "what's playing
// now" value changes; GameName is nil when nothing is played.
type CurrentlyPlayingChanged struct {
	GameID   int64
	GameName *string
}

func (CurrentlyPlayingChanged) Kind() string { return "currently-playing-changed" }

// FocusChanged fires whenever the foregrounded process changes, game or not.
type FocusChanged struct {
	PID         int32
	WindowTitle string
}

func (FocusChanged) Kind() string { return "focus-changed" }

// GameFocused fires when a tracked game gains the foreground.
type GameFocused struct {
	GameID   int64
	GameName string
}

func (GameFocused) Kind() string { return "game-focused" }

// GameUnfocused fires when a tracked game loses the foreground.
type GameUnfocused struct {
	GameID   int64
	GameName string
}

func (GameUnfocused) Kind() string { return "game-unfocused" }

const subscriberBuffer = 64

// Bus fans events out to subscribers over buffered channels. Publish never
// blocks: a subscriber that has fallen subscriberBuffer events behind loses
// the oldest ones it has not read.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving every event published after the
// call. The channel closes when the bus closes.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers e to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes every subscriber channel. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
