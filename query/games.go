package query

import (
	"fmt"

	"playwarden/entity"
)

// AllGames returns every game, enabled or not.
func (db *Database) AllGames() ([]entity.Game, error) {
	games := []entity.Game{}
	err := db.Select(&games, `SELECT id, name, path, platform, enabled FROM games ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("AllGames: %w", err)
	}
	return games, nil
}

// EnabledGames returns only games eligible for tracking.
func (db *Database) EnabledGames() ([]entity.Game, error) {
	games := []entity.Game{}
	err := db.Select(&games, `SELECT id, name, path, platform, enabled FROM games WHERE enabled ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("EnabledGames: %w", err)
	}
	return games, nil
}

// GameByPath looks a game up by its executable path. Returns found=false
// when no row matches.
func (db *Database) GameByPath(path string) (entity.Game, bool, error) {
	var g entity.Game
	err := db.Get(&g, `SELECT id, name, path, platform, enabled FROM games WHERE path = ?`, path)
	if err != nil {
		if isNoRows(err) {
			return entity.Game{}, false, nil
		}
		return entity.Game{}, false, fmt.Errorf("GameByPath: %w", err)
	}
	return g, true, nil
}

// UpsertGame creates a game keyed by name, or refreshes the path/platform of
// an existing one. Safe to call on every detection tick: the same name never
// produces a second row.
func (db *Database) UpsertGame(name, path, platform string) (entity.Game, error) {
	_, err := db.Exec(`INSERT INTO games (name, path, platform) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET path=excluded.path, platform=excluded.platform`,
		name, path, platform)
	if err != nil {
		return entity.Game{}, fmt.Errorf("UpsertGame: %w", err)
	}
	var g entity.Game
	if err := db.Get(&g, `SELECT id, name, path, platform, enabled FROM games WHERE name = ?`, name); err != nil {
		return entity.Game{}, fmt.Errorf("UpsertGame: %w", err)
	}
	return g, nil
}

// SetGameEnabled flips tracking for a game without touching its history.
func (db *Database) SetGameEnabled(id int64, enabled bool) error {
	res, err := db.Exec(`UPDATE games SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("SetGameEnabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("SetGameEnabled: no game with id %d", id)
	}
	return nil
}

// DeleteGame removes a game and, via cascade, its sessions.
func (db *Database) DeleteGame(id int64) error {
	if _, err := db.Exec(`DELETE FROM games WHERE id = ?`, id); err != nil {
		return fmt.Errorf("DeleteGame: %w", err)
	}
	return nil
}
