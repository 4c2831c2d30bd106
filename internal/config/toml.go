// Package config provides configuration helpers and TOML parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/store"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Archer  ArcherConfig  `toml:"archer"`
	Session SessionConfig `toml:"session"`
	Stats   StatsConfig   `toml:"stats"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

// ArcherConfig maps who is shooting and with what.
type ArcherConfig struct {
	Owner   *string `toml:"owner"`
	Name    *string `toml:"name"`
	Surname *string `toml:"surname"`
	Bow     *string `toml:"bow"`
}

// SessionConfig maps defaults for new sessions.
type SessionConfig struct {
	Distance *float64 `toml:"distance"`
	Ends     *int     `toml:"ends"`
	Arrows   *int     `toml:"arrows"`
	Kind     *string  `toml:"kind"`
}

// StatsConfig maps stats-related settings.
type StatsConfig struct {
	Distances []float64 `toml:"distances"`
	CacheTTL  *Duration `toml:"cache_ttl"`
}

// StorageConfig selects and tunes the storage backend.
type StorageConfig struct {
	Backend  *string   `toml:"backend"`
	Path     *string   `toml:"path"`
	Strategy *string   `toml:"strategy"`
	Timeout  *Duration `toml:"timeout"`
}

// LogConfig maps diagnostic logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// Duration is a time.Duration written as a Go duration string ("5m", "30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Backend names accepted in [storage].backend.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid value in the file at once.
func (c FileConfig) Validate() error {
	var errs []error

	if c.Archer.Owner != nil && strings.TrimSpace(*c.Archer.Owner) == "" {
		errs = append(errs, fmt.Errorf("archer.owner must not be empty"))
	}
	if c.Archer.Bow != nil {
		if _, err := model.ParseBowType(*c.Archer.Bow); err != nil {
			errs = append(errs, fmt.Errorf("archer.bow: %w", err))
		}
	}

	if c.Session.Distance != nil && *c.Session.Distance <= 0 {
		errs = append(errs, fmt.Errorf("session.distance must be > 0"))
	}
	if c.Session.Ends != nil && *c.Session.Ends <= 0 {
		errs = append(errs, fmt.Errorf("session.ends must be > 0"))
	}
	if c.Session.Arrows != nil && *c.Session.Arrows <= 0 {
		errs = append(errs, fmt.Errorf("session.arrows must be > 0"))
	}
	if c.Session.Kind != nil {
		if _, err := model.ParseSessionKind(*c.Session.Kind); err != nil {
			errs = append(errs, fmt.Errorf("session.kind: %w", err))
		}
	}

	for _, d := range c.Stats.Distances {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("stats.distances must all be > 0 (got %g)", d))
			break
		}
	}
	if c.Stats.CacheTTL != nil && c.Stats.CacheTTL.Duration <= 0 {
		errs = append(errs, fmt.Errorf("stats.cache_ttl must be > 0 (use --no-cache to skip the cache)"))
	}

	if c.Storage.Backend != nil {
		switch *c.Storage.Backend {
		case BackendSQLite, BackendBadger:
		default:
			errs = append(errs, fmt.Errorf("storage.backend must be %q or %q", BackendSQLite, BackendBadger))
		}
	}
	if c.Storage.Path != nil && strings.TrimSpace(*c.Storage.Path) == "" {
		errs = append(errs, fmt.Errorf("storage.path must not be empty"))
	}
	if c.Storage.Strategy != nil {
		if _, err := store.ParseStrategy(*c.Storage.Strategy); err != nil {
			errs = append(errs, fmt.Errorf("storage.strategy: %w", err))
		}
	}
	if c.Storage.Timeout != nil && c.Storage.Timeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("storage.timeout must be >= 0 (0 = no deadline)"))
	}

	if c.Log.Level != nil {
		if _, err := ParseLogLevel(*c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}

	return errors.Join(errs...)
}
