package query

import (
	"fmt"

	"playwarden/entity"
)

// EnsureUser loads the user with the given name, creating it on first run.
func (db *Database) EnsureUser(name string) (entity.User, error) {
	if name == "" {
		return entity.User{}, fmt.Errorf("EnsureUser: empty name")
	}
	if _, err := db.Exec(`INSERT INTO users (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return entity.User{}, fmt.Errorf("EnsureUser: %w", err)
	}
	var u entity.User
	if err := db.Get(&u, `SELECT id, name FROM users WHERE name = ?`, name); err != nil {
		return entity.User{}, fmt.Errorf("EnsureUser: %w", err)
	}
	return u, nil
}
