package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"playwarden/config"
	"playwarden/launch"
	"playwarden/limits"
	"playwarden/manager"
	"playwarden/query"
	"playwarden/stats"
	"playwarden/tracker"
	"playwarden/web"
)

var (
	configPath string
	iconPath   string
)

func main() {
	root := &cobra.Command{
		Use:   "playwarden",
		Short: "Tracks gameplay sessions and enforces daily playtime limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&iconPath, "icon", "icon.ico", "path to tray icon")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	logger.Info().Str("user", cfg.User.Name).Msg("starting playwarden")

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	db, err := query.InitDatabase(dbPath)
	if err != nil {
		return err
	}

	user, err := db.EnsureUser(cfg.User.Name)
	if err != nil {
		return err
	}

	cache, err := manager.NewGameCache(db)
	if err != nil {
		return err
	}

	bus := tracker.NewBus()
	source := tracker.NewGopsutilSource(logger)
	focus := tracker.NewFocusMonitor(source, bus, logger, cfg.FocusInterval())
	detector := tracker.NewDetector(source, cache, db, bus, logger)
	sessions := tracker.NewSessionManager(db, detector, focus, bus, logger, user.ID, cfg.DetectInterval(), cfg.UnfocusGrace())

	evaluator := limits.NewEvaluator(db, sessions)
	timer := limits.NewTimer(evaluator, bus, logger, user.ID, cfg.Tracker.TimerResync)

	aggregator := stats.NewAggregator(db)
	server := web.NewServer(cfg.Web.ListenAddress, db, cache, sessions, evaluator, timer, aggregator, logger, user.ID)

	launch.Run(&launch.App{
		DB:       db,
		Focus:    focus,
		Sessions: sessions,
		Timer:    timer,
		Server:   server,
		Bus:      bus,
		Logger:   logger,
		WebAddr:  cfg.Web.ListenAddress,
		IconPath: iconPath,
	})
	return nil
}

func newLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	var logger zerolog.Logger
	if cfg.Format == "console" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger(), nil
}
