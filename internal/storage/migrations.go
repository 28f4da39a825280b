package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS entities (
					collection TEXT NOT NULL,
					id TEXT NOT NULL,
					updated_at DATETIME NOT NULL,
					sort_key TEXT NOT NULL,
					data TEXT NOT NULL,
					PRIMARY KEY (collection, id)
				)`,
				`CREATE INDEX idx_entities_sort ON entities(collection, sort_key)`,

				`CREATE TABLE IF NOT EXISTS mutations (
					id TEXT PRIMARY KEY,
					type TEXT NOT NULL CHECK (type IN ('create','update','delete')),
					collection TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					data TEXT,
					timestamp DATETIME NOT NULL,
					synced INTEGER NOT NULL DEFAULT 0
				)`,

				`CREATE TABLE IF NOT EXISTS sync_meta (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL
				)`,
			}
			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return fmt.Errorf("failed to execute migration query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Index pending mutations for queue reads",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(
				`CREATE INDEX IF NOT EXISTS idx_mutations_pending ON mutations(synced, timestamp)`)
			if err != nil {
				return fmt.Errorf("failed to create pending index: %w", err)
			}
			return nil
		},
	},
}

// migrate applies any migrations newer than the database's current version.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		slog.Info("applying migration",
			"version", m.Version,
			"description", m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
