package store

import (
	"encoding/json"
	"fmt"

	"github.com/lazypower/glyphwheel/internal/engine"
)

var _ engine.Sink = (*DB)(nil)

// RecordReport stores an operation report. Recording the same report twice
// is a no-op.
func (db *DB) RecordReport(r engine.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	_, err = db.Exec(`
		INSERT OR IGNORE INTO reports (
			id, operation, result, reason, intensity, cycles,
			initial_coherence, final_coherence, initial_entropy, final_entropy,
			improved, started_at, body
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Operation), string(r.Result), r.Reason, r.Intensity, r.Cycles,
		r.InitialCoherence, r.FinalCoherence, r.InitialEntropy, r.FinalEntropy,
		boolInt(r.Improved), r.StartedAt.UnixMilli(), string(body))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ListReports returns up to limit reports, newest first. An empty operation
// matches all.
func (db *DB) ListReports(operation string, limit int) ([]engine.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT body FROM reports
		WHERE (? = '' OR operation = ?)
		ORDER BY started_at DESC LIMIT ?
	`, operation, operation, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []engine.Report
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var r engine.Report
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReportCounts returns the number of stored reports by operation and result,
// keyed "operation/result".
func (db *DB) ReportCounts() (map[string]int, error) {
	rows, err := db.Query(`SELECT operation, result, COUNT(*) FROM reports GROUP BY operation, result`)
	if err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var op, result string
		var n int
		if err := rows.Scan(&op, &result, &n); err != nil {
			return nil, fmt.Errorf("scan report count: %w", err)
		}
		counts[op+"/"+result] = n
	}
	return counts, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
