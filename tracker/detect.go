package tracker

import (
	"github.com/rs/zerolog"

	"playwarden/entity"
	"playwarden/metrics"
)

// GameCache is the slice of the in-memory game cache the detector needs.
type GameCache interface {
	Lookup(path string) (entity.Game, bool)
	Put(g entity.Game)
}

// GameStore is the slice of the database the detector needs.
type GameStore interface {
	UpsertGame(name, path, platform string) (entity.Game, error)
}

// DetectedGame is one enabled game found running during a detection pass.
type DetectedGame struct {
	Game        entity.Game
	PID         int32
	WindowTitle string
}

// Detector turns a process snapshot into the list of enabled games currently
// running, registering any game it has never seen before.
type Detector struct {
	source SnapshotSource
	cache  GameCache
	store  GameStore
	bus    *Bus
	logger zerolog.Logger
}

func NewDetector(source SnapshotSource, cache GameCache, store GameStore, bus *Bus, logger zerolog.Logger) *Detector {
	return &Detector{
		source: source,
		cache:  cache,
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "detector").Logger(),
	}
}

// DetectGames runs one detection pass. Launcher and helper processes are
// skipped; a process at an unknown path is persisted as a new game before it
// is reported. Failures are logged and counted, never propagated: a pass
// that goes wrong yields a shorter list and the next tick retries.
func (d *Detector) DetectGames() []DetectedGame {
	metrics.DetectionTicks.Inc()

	var detected []DetectedGame
	seen := make(map[int64]bool)
	for _, proc := range d.source.Candidates() {
		if IsLauncher(proc.Name) || IsNoise(proc.Name) {
			continue
		}

		game, ok := d.cache.Lookup(proc.Path)
		if !ok {
			var err error
			game, err = d.registerGame(proc)
			if err != nil {
				metrics.DetectionErrors.Inc()
				d.logger.Error().Err(err).Str("path", proc.Path).Msg("failed to register detected game")
				continue
			}
		}
		if !game.Enabled || seen[game.ID] {
			continue
		}
		seen[game.ID] = true
		detected = append(detected, DetectedGame{Game: game, PID: proc.PID, WindowTitle: proc.WindowTitle})
	}
	return detected
}

func (d *Detector) registerGame(proc ProcessInfo) (entity.Game, error) {
	name := DisplayName(proc.WindowTitle, proc.Name)
	platform := DetectPlatform(proc.Path)
	game, err := d.store.UpsertGame(name, proc.Path, platform)
	if err != nil {
		return entity.Game{}, err
	}
	d.cache.Put(game)
	d.logger.Info().Str("name", game.Name).Str("platform", game.Platform).Msg("new game detected")
	d.bus.Publish(NewGameDetected{GameID: game.ID, GameName: game.Name, Platform: game.Platform})
	return game, nil
}
