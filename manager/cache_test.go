package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playwarden/entity"
	"playwarden/query"
)

func newTestCache(t *testing.T) (*GameCache, *query.Database) {
	t.Helper()
	db, err := query.InitDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	cache, err := NewGameCache(db)
	require.NoError(t, err)
	return cache, db
}

func TestCacheLoadsExistingGames(t *testing.T) {
	db, err := query.InitDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	g, err := db.UpsertGame("Hades", `C:\steamapps\common\Hades\Hades.exe`, "Steam (PC)")
	require.NoError(t, err)

	cache, err := NewGameCache(db)
	require.NoError(t, err)
	got, ok := cache.Lookup(g.Path)
	require.True(t, ok)
	assert.Equal(t, g.ID, got.ID)
	assert.Equal(t, 1, cache.Len())
}

func TestCachePutAndLookup(t *testing.T) {
	cache, _ := newTestCache(t)
	_, ok := cache.Lookup(`C:\nope.exe`)
	assert.False(t, ok)

	cache.Put(entity.Game{ID: 1, Name: "Celeste", Path: `C:\GOG Games\Celeste\Celeste.exe`, Enabled: true})
	got, ok := cache.Lookup(`C:\GOG Games\Celeste\Celeste.exe`)
	require.True(t, ok)
	assert.Equal(t, "Celeste", got.Name)
}

func TestCacheRefreshReplacesState(t *testing.T) {
	cache, db := newTestCache(t)
	// A stale in-memory entry with no backing row disappears on refresh.
	cache.Put(entity.Game{ID: 99, Name: "Ghost", Path: `C:\ghost.exe`})

	g, err := db.UpsertGame("Hades", `C:\steamapps\common\Hades\Hades.exe`, "Steam (PC)")
	require.NoError(t, err)
	require.NoError(t, cache.Refresh())

	_, ok := cache.Lookup(`C:\ghost.exe`)
	assert.False(t, ok)
	got, ok := cache.Lookup(g.Path)
	require.True(t, ok)
	assert.Equal(t, g.ID, got.ID)
}

func TestCacheRefreshPicksUpEnabledFlag(t *testing.T) {
	cache, db := newTestCache(t)
	g, err := db.UpsertGame("Hades", `C:\steamapps\common\Hades\Hades.exe`, "Steam (PC)")
	require.NoError(t, err)
	require.NoError(t, db.SetGameEnabled(g.ID, false))
	require.NoError(t, cache.Refresh())

	got, ok := cache.Lookup(g.Path)
	require.True(t, ok)
	assert.False(t, got.Enabled)
}
