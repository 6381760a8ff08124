package store

import (
	"encoding/json"
	"fmt"

	"github.com/lazypower/glyphwheel/internal/engine"
)

// RecordGhost stores a ghost. The engine's registry is bounded; this table
// keeps every death.
func (db *DB) RecordGhost(g engine.Ghost) error {
	body, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode ghost: %w", err)
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO ghosts (signature, name, kind, archetype, reason, final_stability, potential, died_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.Signature, g.Name, string(g.Kind), string(g.Archetype), g.Reason,
		g.FinalStability, g.Potential, g.DiedAt.UnixMilli(), string(body))
	if err != nil {
		return fmt.Errorf("insert ghost: %w", err)
	}
	return nil
}

// ListGhosts returns up to limit ghosts, most recent death first.
func (db *DB) ListGhosts(limit int) ([]engine.Ghost, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT body FROM ghosts ORDER BY died_at DESC, signature LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ghosts: %w", err)
	}
	defer rows.Close()

	var out []engine.Ghost
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan ghost: %w", err)
		}
		var g engine.Ghost
		if err := json.Unmarshal([]byte(body), &g); err != nil {
			return nil, fmt.Errorf("decode ghost: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GhostCount returns the number of recorded deaths.
func (db *DB) GhostCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM ghosts`).Scan(&n)
	return n, err
}
