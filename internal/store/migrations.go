package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "snapshots: periodic engine status",
		SQL: `
CREATE TABLE snapshots (
    id         INTEGER PRIMARY KEY,
    taken_at   INTEGER NOT NULL,
    node_count INTEGER NOT NULL,
    link_count INTEGER NOT NULL,
    entropy    REAL NOT NULL,
    coherence  REAL NOT NULL,
    depth      INTEGER NOT NULL DEFAULT 0,
    body       TEXT NOT NULL
);

CREATE INDEX idx_snapshots_taken ON snapshots(taken_at DESC);
`,
	},
	{
		Version:     2,
		Description: "reports: stress, recovery and recalibration outcomes",
		SQL: `
CREATE TABLE reports (
    id                TEXT PRIMARY KEY,
    operation         TEXT NOT NULL CHECK (operation IN ('stress', 'recovery', 'recalibrate')),
    result            TEXT NOT NULL CHECK (result IN ('completed', 'refused')),
    reason            TEXT,
    intensity         REAL,
    cycles            INTEGER NOT NULL,
    initial_coherence REAL NOT NULL,
    final_coherence   REAL NOT NULL,
    initial_entropy   REAL NOT NULL,
    final_entropy     REAL NOT NULL,
    improved          INTEGER NOT NULL DEFAULT 0,
    started_at        INTEGER NOT NULL,
    body              TEXT NOT NULL
);

CREATE INDEX idx_reports_started ON reports(started_at DESC);
CREATE INDEX idx_reports_op      ON reports(operation, result);
`,
	},
	{
		Version:     3,
		Description: "ghosts: dead node records",
		SQL: `
CREATE TABLE ghosts (
    signature       TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    kind            TEXT NOT NULL,
    archetype       TEXT NOT NULL,
    reason          TEXT NOT NULL,
    final_stability REAL NOT NULL,
    potential       REAL NOT NULL,
    died_at         INTEGER NOT NULL,
    body            TEXT NOT NULL
);

CREATE INDEX idx_ghosts_died ON ghosts(died_at DESC);
CREATE INDEX idx_ghosts_name ON ghosts(name);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
