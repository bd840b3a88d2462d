package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	User    UserConfig    `mapstructure:"user"`
	Storage StorageConfig `mapstructure:"storage"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Web     WebConfig     `mapstructure:"web"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// UserConfig names the workstation user whose play is tracked.
type UserConfig struct {
	Name string `mapstructure:"name"`
}

// StorageConfig defines where the SQLite database lives. An empty path
// resolves to <user config dir>/playwarden/playwarden.db.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// TrackerConfig defines the engine cadences. Durations accept Go syntax
// ("2s", "500ms").
type TrackerConfig struct {
	DetectInterval string `mapstructure:"detect_interval"`
	FocusInterval  string `mapstructure:"focus_interval"`
	UnfocusGrace   string `mapstructure:"unfocus_grace"`
	TimerResync    int    `mapstructure:"timer_resync_ticks"`
}

// WebConfig defines the local API listener.
type WebConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file path, falling back to
// defaults when the file does not exist. Environment variables prefixed
// PLAYWARDEN_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("user.name", defaultUserName())
	v.SetDefault("storage.path", "")
	v.SetDefault("tracker.detect_interval", "3s")
	v.SetDefault("tracker.focus_interval", "2s")
	v.SetDefault("tracker.unfocus_grace", "30s")
	v.SetDefault("tracker.timer_resync_ticks", 10)
	v.SetDefault("web.listen_address", "127.0.0.1:8093")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetEnvPrefix("PLAYWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config.Load: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for _, d := range []struct{ name, value string }{
		{"tracker.detect_interval", c.Tracker.DetectInterval},
		{"tracker.focus_interval", c.Tracker.FocusInterval},
		{"tracker.unfocus_grace", c.Tracker.UnfocusGrace},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", d.name, d.value, err)
		}
	}
	if c.Tracker.TimerResync < 1 {
		return fmt.Errorf("config: timer_resync_ticks must be >= 1, got %d", c.Tracker.TimerResync)
	}
	if c.User.Name == "" {
		return fmt.Errorf("config: user.name must not be empty")
	}
	return nil
}

// DetectInterval returns the parsed detection cadence.
func (c *Config) DetectInterval() time.Duration { return mustDuration(c.Tracker.DetectInterval) }

// FocusInterval returns the parsed focus polling cadence.
func (c *Config) FocusInterval() time.Duration { return mustDuration(c.Tracker.FocusInterval) }

// UnfocusGrace returns the parsed unfocus grace period.
func (c *Config) UnfocusGrace() time.Duration { return mustDuration(c.Tracker.UnfocusGrace) }

// DatabasePath resolves the storage path, creating the parent directory for
// the default location when needed.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config.DatabasePath: %w", err)
	}
	appDir := filepath.Join(dir, "playwarden")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return "", fmt.Errorf("config.DatabasePath: %w", err)
	}
	return filepath.Join(appDir, "playwarden.db"), nil
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		// validate() already rejected malformed values.
		panic(err)
	}
	return d
}

func defaultUserName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "default"
}
