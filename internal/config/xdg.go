package config

import (
	"os"
	"path/filepath"
)

const appName = "quiver"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, "quiver.db")
}

// DefaultBadgerDir returns the default directory for the badger backend.
func DefaultBadgerDir() string {
	return filepath.Join(XDGDataHome(), appName, "badger")
}

// DefaultStoragePath returns the default location for the named backend.
func DefaultStoragePath(backend string) string {
	if backend == BackendBadger {
		return DefaultBadgerDir()
	}
	return DefaultDBPath()
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}
