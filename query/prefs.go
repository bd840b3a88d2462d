package query

import (
	"fmt"

	"playwarden/entity"
)

// PreferencesForUser returns the user's tracking preferences, inserting the
// defaults first when no row exists yet.
func (db *Database) PreferencesForUser(userID int64) (entity.Preferences, error) {
	var p entity.Preferences
	err := db.Get(&p, `SELECT user_id, stop_on_unfocus, notify_new_game, notify_game_started, notify_game_stopped
		FROM preferences WHERE user_id = ?`, userID)
	if err == nil {
		return p, nil
	}
	if !isNoRows(err) {
		return entity.Preferences{}, fmt.Errorf("PreferencesForUser: %w", err)
	}

	p = entity.DefaultPreferences(userID)
	if err := db.UpdatePreferences(p); err != nil {
		return entity.Preferences{}, fmt.Errorf("PreferencesForUser: %w", err)
	}
	return p, nil
}

// UpdatePreferences writes the full preferences row for a user.
func (db *Database) UpdatePreferences(p entity.Preferences) error {
	_, err := db.Exec(`INSERT INTO preferences (user_id, stop_on_unfocus, notify_new_game, notify_game_started, notify_game_stopped)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			stop_on_unfocus=excluded.stop_on_unfocus,
			notify_new_game=excluded.notify_new_game,
			notify_game_started=excluded.notify_game_started,
			notify_game_stopped=excluded.notify_game_stopped`,
		p.UserID, p.StopOnUnfocus, p.NotifyNewGame, p.NotifyGameStarted, p.NotifyGameStopped)
	if err != nil {
		return fmt.Errorf("UpdatePreferences: %w", err)
	}
	return nil
}
