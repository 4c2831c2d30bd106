package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version of the SQLite database.
const SchemaVersion = 1

var migrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			archer_name TEXT NOT NULL,
			archer_surname TEXT NOT NULL,
			bow_type TEXT NOT NULL,
			distance REAL NOT NULL,
			total_ends INTEGER NOT NULL,
			arrows_per_end INTEGER NOT NULL,
			session_kind TEXT NOT NULL,
			ends_json TEXT NULL,
			x_count INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			synced INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_arrows (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			end_index INTEGER NOT NULL,
			arrow_index INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (session_id, end_index, arrow_index)
		);`,
		`CREATE TABLE IF NOT EXISTS sight_settings (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			bow_identifier TEXT NOT NULL,
			distance REAL NOT NULL,
			sight_mark TEXT NOT NULL,
			notes TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stats_cache (
			owner_id TEXT PRIMARY KEY,
			computed_at INTEGER NOT NULL,
			data TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_owner_created ON sessions(owner_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sight_settings_owner_bow ON sight_settings(owner_id, bow_identifier, distance);`,
	},
}

func (s *SQLite) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}
	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	for version := current + 1; version <= SchemaVersion; version++ {
		if err := s.applyMigration(ctx, version); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) applyMigration(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin v%d: %w", version, err)
	}
	defer rollback(tx)

	for _, stmt := range migrations[version] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: v%d: %w", version, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES (?);`, version); err != nil {
		return fmt.Errorf("migrate: record v%d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit v%d: %w", version, err)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		// Best-effort rollback.
		_ = err
	}
}
