package entity

import "time"

// Game identifies one tracked executable. Path is the unique detection key;
// Name is unique as well so manual renames cannot collide.
type Game struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Path     string `db:"path" json:"path"`
	Platform string `db:"platform" json:"platform"`
	Enabled  bool   `db:"enabled" json:"enabled"`
}

// GamingSession is one continuous period of tracked play. EndTime is the
// last-write timestamp, not a close marker: storage alone does not say
// whether a session is still open.
type GamingSession struct {
	ID              int64     `db:"id" json:"id"`
	GameID          int64     `db:"game_id" json:"game_id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	EndTime         time.Time `db:"end_time" json:"end_time"`
	DurationSeconds int64     `db:"duration_seconds" json:"duration_seconds"`

	// Populated by joined reads only.
	GameName string `db:"game_name" json:"game_name,omitempty"`
	Platform string `db:"platform" json:"platform,omitempty"`
}

// Limit caps playtime for one user on one day of the week. Absence of a row
// means no limit that day.
type Limit struct {
	UserID       int64   `db:"user_id" json:"user_id"`
	Day          Weekday `db:"day" json:"day"`
	LimitSeconds int64   `db:"limit_seconds" json:"limit_seconds"`
}

// Preferences carries per-user tracking toggles. StopOnUnfocus controls
// whether an unfocused game session is closed after the grace period.
type Preferences struct {
	UserID            int64 `db:"user_id" json:"user_id"`
	StopOnUnfocus     bool  `db:"stop_on_unfocus" json:"stop_on_unfocus"`
	NotifyNewGame     bool  `db:"notify_new_game" json:"notify_new_game"`
	NotifyGameStarted bool  `db:"notify_game_started" json:"notify_game_started"`
	NotifyGameStopped bool  `db:"notify_game_stopped" json:"notify_game_stopped"`
}

// DefaultPreferences are applied when a user has no stored row yet.
func DefaultPreferences(userID int64) Preferences {
	return Preferences{
		UserID:            userID,
		StopOnUnfocus:     true,
		NotifyNewGame:     true,
		NotifyGameStarted: true,
		NotifyGameStopped: true,
	}
}

// User owns sessions and limits. The tracker runs for exactly one user per
// process; the row exists so foreign keys are real rather than a global.
type User struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
