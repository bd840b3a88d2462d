package query

import (
	"fmt"
	"time"

	"playwarden/entity"
)

type sessionRow struct {
	ID              int64  `db:"id"`
	GameID          int64  `db:"game_id"`
	UserID          int64  `db:"user_id"`
	StartTime       string `db:"start_time"`
	EndTime         string `db:"end_time"`
	DurationSeconds int64  `db:"duration_seconds"`
	GameName        string `db:"game_name"`
	Platform        string `db:"platform"`
}

func (r sessionRow) toEntity() (entity.GamingSession, error) {
	start, err := parseTime(r.StartTime)
	if err != nil {
		return entity.GamingSession{}, fmt.Errorf("session %d: bad start_time %q: %w", r.ID, r.StartTime, err)
	}
	end, err := parseTime(r.EndTime)
	if err != nil {
		return entity.GamingSession{}, fmt.Errorf("session %d: bad end_time %q: %w", r.ID, r.EndTime, err)
	}
	return entity.GamingSession{
		ID:              r.ID,
		GameID:          r.GameID,
		UserID:          r.UserID,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: r.DurationSeconds,
		GameName:        r.GameName,
		Platform:        r.Platform,
	}, nil
}

// StartSession creates a new session record with start_time = end_time = now.
// initialSeconds must be non-negative.
func (db *Database) StartSession(gameID, userID, initialSeconds int64) (entity.GamingSession, error) {
	if initialSeconds < 0 {
		return entity.GamingSession{}, fmt.Errorf("StartSession: negative duration %d", initialSeconds)
	}
	now := time.Now()
	ts := formatTime(now)
	res, err := db.Exec(`INSERT INTO gaming_sessions (game_id, user_id, start_time, end_time, duration_seconds)
		VALUES (?, ?, ?, ?, ?)`, gameID, userID, ts, ts, initialSeconds)
	if err != nil {
		return entity.GamingSession{}, fmt.Errorf("StartSession: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return entity.GamingSession{}, fmt.Errorf("StartSession: %w", err)
	}
	return entity.GamingSession{
		ID:              id,
		GameID:          gameID,
		UserID:          userID,
		StartTime:       now.UTC().Truncate(time.Second),
		EndTime:         now.UTC().Truncate(time.Second),
		DurationSeconds: initialSeconds,
	}, nil
}

// UpdateSessionDuration is the per-tick write-through: it overwrites the
// stored duration and stamps end_time with now. Repeating the same update is
// harmless, which is what makes retry-after-failure safe.
func (db *Database) UpdateSessionDuration(id, seconds int64) error {
	if seconds < 0 {
		return fmt.Errorf("UpdateSessionDuration: negative duration %d", seconds)
	}
	res, err := db.Exec(`UPDATE gaming_sessions SET duration_seconds = ?, end_time = ? WHERE id = ?`,
		seconds, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("UpdateSessionDuration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("UpdateSessionDuration: no session with id %d", id)
	}
	return nil
}

// EndSession finalizes a session with its closing duration. Storage keeps no
// open/closed flag; "closed" is the session no longer being in the lifecycle
// manager's active map.
func (db *Database) EndSession(id, finalSeconds int64) error {
	if finalSeconds < 0 {
		return fmt.Errorf("EndSession: negative duration %d", finalSeconds)
	}
	res, err := db.Exec(`UPDATE gaming_sessions SET duration_seconds = ?, end_time = ? WHERE id = ?`,
		finalSeconds, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("EndSession: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("EndSession: no session with id %d", id)
	}
	return nil
}

// SessionsForUser returns every session of a user with game details joined,
// oldest first.
func (db *Database) SessionsForUser(userID int64) ([]entity.GamingSession, error) {
	rows := []sessionRow{}
	err := db.Select(&rows, `
		SELECT s.id, s.game_id, s.user_id, s.start_time, s.end_time, s.duration_seconds,
		       g.name AS game_name, g.platform AS platform
		FROM gaming_sessions s
		JOIN games g ON g.id = s.game_id
		WHERE s.user_id = ?
		ORDER BY s.start_time`, userID)
	if err != nil {
		return nil, fmt.Errorf("SessionsForUser: %w", err)
	}
	return rowsToSessions(rows)
}

// SessionsOverlapping returns sessions whose [start_time, end_time] interval
// intersects [start, end]: sessionStart <= end AND sessionEnd >= start.
func (db *Database) SessionsOverlapping(userID int64, start, end time.Time) ([]entity.GamingSession, error) {
	rows := []sessionRow{}
	err := db.Select(&rows, `
		SELECT s.id, s.game_id, s.user_id, s.start_time, s.end_time, s.duration_seconds,
		       g.name AS game_name, g.platform AS platform
		FROM gaming_sessions s
		JOIN games g ON g.id = s.game_id
		WHERE s.user_id = ? AND s.start_time <= ? AND s.end_time >= ?
		ORDER BY s.start_time`, userID, formatTime(end), formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("SessionsOverlapping: %w", err)
	}
	return rowsToSessions(rows)
}

// SessionDateBounds returns the earliest start and latest end across a
// user's sessions. found is false when the user has no sessions at all.
func (db *Database) SessionDateBounds(userID int64) (first, last time.Time, found bool, err error) {
	row := struct {
		First *string `db:"first"`
		Last  *string `db:"last"`
	}{}
	err = db.Get(&row, `SELECT MIN(start_time) AS first, MAX(end_time) AS last
		FROM gaming_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("SessionDateBounds: %w", err)
	}
	if row.First == nil || row.Last == nil {
		return time.Time{}, time.Time{}, false, nil
	}
	if first, err = parseTime(*row.First); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("SessionDateBounds: bad start_time %q: %w", *row.First, err)
	}
	if last, err = parseTime(*row.Last); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("SessionDateBounds: bad end_time %q: %w", *row.Last, err)
	}
	return first, last, true, nil
}

func rowsToSessions(rows []sessionRow) ([]entity.GamingSession, error) {
	sessions := make([]entity.GamingSession, 0, len(rows))
	for _, r := range rows {
		s, err := r.toEntity()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
