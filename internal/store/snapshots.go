package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lazypower/glyphwheel/internal/engine"
)

// Snapshot is a persisted engine status. Body holds the full status JSON.
type Snapshot struct {
	ID        int64   `json:"id"`
	TakenAt   int64   `json:"taken_at"`
	NodeCount int     `json:"node_count"`
	LinkCount int     `json:"link_count"`
	Entropy   float64 `json:"entropy"`
	Coherence float64 `json:"coherence"`
	Depth     int     `json:"recursive_depth"`
	Body      string  `json:"-"`
}

// Status decodes the stored status.
func (s *Snapshot) Status() (engine.Status, error) {
	var st engine.Status
	if err := json.Unmarshal([]byte(s.Body), &st); err != nil {
		return st, fmt.Errorf("decode snapshot %d: %w", s.ID, err)
	}
	return st, nil
}

// SaveSnapshot stores a status and returns its row ID.
func (db *DB) SaveSnapshot(st engine.Status) (int64, error) {
	body, err := json.Marshal(st)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}

	result, err := db.Exec(`
		INSERT INTO snapshots (taken_at, node_count, link_count, entropy, coherence, depth, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, st.TakenAt.UnixMilli(), st.NodeCount, st.LinkCount, st.Entropy, st.Coherence, st.Depth, string(body))
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return result.LastInsertId()
}

// ListSnapshots returns up to limit snapshots, newest first.
func (db *DB) ListSnapshots(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, taken_at, node_count, link_count, entropy, coherence, depth, body
		FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.TakenAt, &s.NodeCount, &s.LinkCount, &s.Entropy, &s.Coherence, &s.Depth, &s.Body); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest snapshot, or nil if there are none.
func (db *DB) LatestSnapshot() (*Snapshot, error) {
	var s Snapshot
	err := db.QueryRow(`
		SELECT id, taken_at, node_count, link_count, entropy, coherence, depth, body
		FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT 1
	`).Scan(&s.ID, &s.TakenAt, &s.NodeCount, &s.LinkCount, &s.Entropy, &s.Coherence, &s.Depth, &s.Body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &s, nil
}

// PruneSnapshots keeps the newest keep snapshots and deletes the rest.
func (db *DB) PruneSnapshots(keep int) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return result.RowsAffected()
}
