package query

import (
	"fmt"

	"playwarden/entity"
)

// LimitForDay returns the configured limit for one day of the week.
// found=false means no limit that day.
func (db *Database) LimitForDay(userID int64, day entity.Weekday) (entity.Limit, bool, error) {
	var l entity.Limit
	err := db.Get(&l, `SELECT user_id, day, limit_seconds FROM limits WHERE user_id = ? AND day = ?`,
		userID, day)
	if err != nil {
		if isNoRows(err) {
			return entity.Limit{}, false, nil
		}
		return entity.Limit{}, false, fmt.Errorf("LimitForDay: %w", err)
	}
	return l, true, nil
}

// LimitsForUser returns every configured daily limit of a user.
func (db *Database) LimitsForUser(userID int64) ([]entity.Limit, error) {
	limits := []entity.Limit{}
	err := db.Select(&limits, `SELECT user_id, day, limit_seconds FROM limits WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("LimitsForUser: %w", err)
	}
	return limits, nil
}

// UpsertLimit creates or replaces the limit for (user, day). Negative
// seconds are rejected at this boundary.
func (db *Database) UpsertLimit(userID int64, day entity.Weekday, limitSeconds int64) error {
	if limitSeconds < 0 {
		return fmt.Errorf("UpsertLimit: negative limit %d", limitSeconds)
	}
	_, err := db.Exec(`INSERT INTO limits (user_id, day, limit_seconds) VALUES (?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET limit_seconds=excluded.limit_seconds`,
		userID, day, limitSeconds)
	if err != nil {
		return fmt.Errorf("UpsertLimit: %w", err)
	}
	return nil
}

// DeleteLimit removes the limit for (user, day); deleting a missing limit is
// a no-op.
func (db *Database) DeleteLimit(userID int64, day entity.Weekday) error {
	if _, err := db.Exec(`DELETE FROM limits WHERE user_id = ? AND day = ?`, userID, day); err != nil {
		return fmt.Errorf("DeleteLimit: %w", err)
	}
	return nil
}
