package store

import (
	"testing"
	"time"

	"github.com/lazypower/glyphwheel/internal/engine"
)

func TestRecordAndListReports(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	reports := []engine.Report{
		{ID: "a", Operation: engine.OpStress, Result: engine.ResultCompleted, Intensity: 0.5, Cycles: 50,
			InitialCoherence: 0.5, FinalCoherence: 0.6, Improved: true, StartedAt: base},
		{ID: "b", Operation: engine.OpStress, Result: engine.ResultRefused, Reason: engine.ReasonCooldown,
			RetryAfter: 3, StartedAt: base.Add(time.Second)},
		{ID: "c", Operation: engine.OpRecovery, Result: engine.ResultCompleted, Cycles: 5, StartedAt: base.Add(2 * time.Second)},
	}
	for _, r := range reports {
		if err := db.RecordReport(r); err != nil {
			t.Fatalf("RecordReport %s: %v", r.ID, err)
		}
	}
	// duplicate is ignored
	if err := db.RecordReport(reports[0]); err != nil {
		t.Fatalf("RecordReport duplicate: %v", err)
	}

	all, err := db.ListReports("", 10)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d reports, want 3", len(all))
	}
	if all[0].ID != "c" {
		t.Errorf("newest = %s, want c", all[0].ID)
	}

	stress, err := db.ListReports(string(engine.OpStress), 10)
	if err != nil {
		t.Fatalf("ListReports stress: %v", err)
	}
	if len(stress) != 2 {
		t.Fatalf("got %d stress reports, want 2", len(stress))
	}
	refused := stress[0]
	if !refused.Refused() || refused.Reason != engine.ReasonCooldown || refused.RetryAfter != 3 {
		t.Errorf("refused report round trip = %+v", refused)
	}
	if !stress[1].Improved {
		t.Error("Improved lost in round trip")
	}
}

func TestReportCounts(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	db.RecordReport(engine.Report{ID: "1", Operation: engine.OpStress, Result: engine.ResultCompleted, StartedAt: now})
	db.RecordReport(engine.Report{ID: "2", Operation: engine.OpStress, Result: engine.ResultRefused, StartedAt: now})
	db.RecordReport(engine.Report{ID: "3", Operation: engine.OpStress, Result: engine.ResultRefused, StartedAt: now})

	counts, err := db.ReportCounts()
	if err != nil {
		t.Fatalf("ReportCounts: %v", err)
	}
	if counts["stress/refused"] != 2 || counts["stress/completed"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

// The engine records into the store through its Sink.
func TestEngineSink(t *testing.T) {
	db := testDB(t)
	cfg := testEngineConfig()
	e := engine.New(cfg)
	defer e.Stop()
	e.SetSink(db)

	s := 0.5
	e.AddNode("a", engine.AddOptions{Stability: &s})
	e.ApplyStress(0.5, 3)
	e.ApplyRecovery(2)
	e.LifecycleTick()

	reports, err := db.ListReports("", 10)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("got %d reports, want 2", len(reports))
	}

	n, err := db.GhostCount()
	if err != nil {
		t.Fatalf("GhostCount: %v", err)
	}
	if n != 1 {
		t.Errorf("GhostCount = %d, want 1", n)
	}
}
