package store

import (
	"testing"
	"time"

	"github.com/lazypower/glyphwheel/internal/engine"
)

func testStatus(at time.Time, entropy float64) engine.Status {
	return engine.Status{
		Nodes: []engine.NodeView{
			{Name: "RootVerse", Stability: 0.87, Kind: engine.KindAnchor, Archetype: engine.ArchetypeStabilizer, Vitality: 1},
			{Name: "Flux_204", Stability: 0.41, Kind: engine.KindDynamic, Archetype: engine.ArchetypeChaos, LinkCount: 1, Vitality: 0.9},
		},
		Entropy:   entropy,
		Coherence: 0.5,
		NodeCount: 2,
		MaxNodes:  100,
		LinkCount: 1,
		Depth:     75,
		TakenAt:   at,
	}
}

func TestSaveAndListSnapshots(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := db.SaveSnapshot(testStatus(base.Add(time.Duration(i)*time.Minute), float64(i)/10)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}

	snaps, err := db.ListSnapshots(2)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	if snaps[0].Entropy != 0.2 {
		t.Errorf("newest entropy = %v, want 0.2", snaps[0].Entropy)
	}
	if snaps[0].TakenAt != base.Add(2*time.Minute).UnixMilli() {
		t.Errorf("TakenAt = %d", snaps[0].TakenAt)
	}

	st, err := snaps[0].Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Nodes) != 2 || st.Nodes[1].Name != "Flux_204" {
		t.Errorf("decoded nodes = %+v", st.Nodes)
	}
	if st.Depth != 75 {
		t.Errorf("Depth = %d, want 75", st.Depth)
	}
}

func TestLatestSnapshot(t *testing.T) {
	db := testDB(t)

	snap, err := db.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil on empty table, got %+v", snap)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db.SaveSnapshot(testStatus(base, 0.1))
	db.SaveSnapshot(testStatus(base.Add(time.Hour), 0.3))

	snap, err = db.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap == nil || snap.Entropy != 0.3 {
		t.Errorf("latest = %+v, want entropy 0.3", snap)
	}
}

func TestPruneSnapshots(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		db.SaveSnapshot(testStatus(base.Add(time.Duration(i)*time.Second), 0.1))
	}

	removed, err := db.PruneSnapshots(2)
	if err != nil {
		t.Fatalf("PruneSnapshots: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	snaps, _ := db.ListSnapshots(10)
	if len(snaps) != 2 {
		t.Errorf("remaining = %d, want 2", len(snaps))
	}
}
