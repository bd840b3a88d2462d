package manager

import (
	"sync"

	"playwarden/entity"
	"playwarden/query"
)

// GameCache keeps the known games in memory keyed by executable path so the
// detection tick can resolve candidates without touching storage.
type GameCache struct {
	db     *query.Database
	byPath map[string]entity.Game
	mutex  sync.RWMutex
}

// NewGameCache builds a cache and loads the initial game set.
func NewGameCache(db *query.Database) (*GameCache, error) {
	gc := &GameCache{
		db:     db,
		byPath: make(map[string]entity.Game),
	}
	if err := gc.Refresh(); err != nil {
		return nil, err
	}
	return gc, nil
}

// Refresh reloads the cache wholesale from the database. Called on startup
// and after any manual add/remove through the API.
func (gc *GameCache) Refresh() error {
	games, err := gc.db.AllGames()
	if err != nil {
		return err
	}

	next := make(map[string]entity.Game, len(games))
	for _, g := range games {
		next[g.Path] = g
	}

	gc.mutex.Lock()
	gc.byPath = next
	gc.mutex.Unlock()
	return nil
}

// Lookup resolves an executable path to its cached game.
func (gc *GameCache) Lookup(path string) (entity.Game, bool) {
	gc.mutex.RLock()
	defer gc.mutex.RUnlock()
	g, ok := gc.byPath[path]
	return g, ok
}

// Put inserts or replaces one cache entry, typically right after an
// upsert-on-discovery.
func (gc *GameCache) Put(g entity.Game) {
	gc.mutex.Lock()
	gc.byPath[g.Path] = g
	gc.mutex.Unlock()
}

// Len returns the number of cached games.
func (gc *GameCache) Len() int {
	gc.mutex.RLock()
	defer gc.mutex.RUnlock()
	return len(gc.byPath)
}
