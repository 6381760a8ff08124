package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/lazypower/glyphwheel/internal/engine"
)

func TestStatus(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var st engine.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.NodeCount != 4 || len(st.Nodes) != 4 {
		t.Errorf("node count = %d/%d, want 4", st.NodeCount, len(st.Nodes))
	}
	if st.Nodes[0].Name != "Aegis-Σ" {
		t.Errorf("first node = %s, want sorted by name", st.Nodes[0].Name)
	}
	if st.Entropy < 0 || st.Entropy > 1 {
		t.Errorf("entropy = %v out of range", st.Entropy)
	}
}

func TestAddAndGetNode(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/nodes", `{"name":" Echo_101 ","stability":0.6,"archetype":"echoscribe"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/nodes/Echo_101", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Node  engine.NodeView    `json:"node"`
		Links map[string]float64 `json:"links"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Node.Stability != 0.6 || resp.Node.Archetype != engine.ArchetypeEchoscribe {
		t.Errorf("node = %+v", resp.Node)
	}
	if resp.Node.Kind != engine.KindDynamic {
		t.Errorf("kind = %s, want dynamic", resp.Node.Kind)
	}
}

func TestAddNodeDuplicate(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/nodes", `{"name":"RootVerse"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["success"] != false {
		t.Errorf("success = %v, want false", resp["success"])
	}
}

func TestAddNodeInvalid(t *testing.T) {
	srv := testServer(t)

	bodies := []string{
		`not json`,
		`{"name":""}`,
		`{"name":"x","kind":"eternal"}`,
		`{"name":"x","archetype":"wizard"}`,
		`{"name":"bad\nname"}`,
	}
	for _, body := range bodies {
		if w := do(t, srv, "POST", "/api/nodes", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
	}
}

func TestGetNodeMissing(t *testing.T) {
	srv := testServer(t)
	if w := do(t, srv, "GET", "/api/nodes/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRemoveNode(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/nodes", `{"name":"temp"}`)

	if w := do(t, srv, "DELETE", "/api/nodes/temp", ""); w.Code != http.StatusOK {
		t.Errorf("delete: status = %d, want 200", w.Code)
	}
	if w := do(t, srv, "DELETE", "/api/nodes/temp", ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", w.Code)
	}
}

func TestStressAndRefusal(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/nodes", `{"name":"d1","stability":0.7}`)

	w := do(t, srv, "POST", "/api/stress", `{"intensity":0.6,"cycles":10}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var rep engine.Report
	json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.Result != engine.ResultCompleted {
		t.Fatalf("result = %s (%s), want completed", rep.Result, rep.Reason)
	}

	// immediately again: inside the cooldown
	w = do(t, srv, "POST", "/api/stress", `{"intensity":0.6,"cycles":10}`)
	if w.Code != http.StatusOK {
		t.Fatalf("refused stress status = %d, want 200", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.Result != engine.ResultRefused || rep.Reason != engine.ReasonCooldown {
		t.Errorf("result = %s reason = %s, want refused/cooldown", rep.Result, rep.Reason)
	}
	var raw map[string]any
	json.Unmarshal(w.Body.Bytes(), &raw)
	if secs, ok := raw["retry_after_seconds"].(float64); !ok || secs <= 0 || secs > 8 {
		t.Errorf("retry_after_seconds = %v, want seconds in (0,8]", raw["retry_after_seconds"])
	}
	if w.Header().Get("Retry-After") != "8" {
		t.Errorf("Retry-After = %q, want 8", w.Header().Get("Retry-After"))
	}

	// both runs were recorded through the sink
	w = do(t, srv, "GET", "/api/reports?operation=stress", "")
	var list struct {
		Reports []engine.Report `json:"reports"`
	}
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Reports) != 2 {
		t.Errorf("recorded reports = %d, want 2", len(list.Reports))
	}
}

func TestStressValidation(t *testing.T) {
	srv := testServer(t)
	for _, body := range []string{`{"intensity":1.5}`, `{"intensity":-0.1}`, `{"cycles":-1}`, `{"cycles":99999999}`} {
		if w := do(t, srv, "POST", "/api/stress", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestRecoveryAndRecalibrate(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/nodes", `{"name":"d1","stability":0.4}`)

	for _, path := range []string{"/api/recovery", "/api/recalibrate"} {
		w := do(t, srv, "POST", path, `{"cycles":2}`)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, w.Code)
		}
		var rep engine.Report
		json.Unmarshal(w.Body.Bytes(), &rep)
		if rep.Result != engine.ResultCompleted || rep.Cycles != 2 {
			t.Errorf("%s: report = %+v", path, rep)
		}
	}

	// empty body uses defaults
	if w := do(t, srv, "POST", "/api/recovery", ""); w.Code != http.StatusOK {
		t.Errorf("empty body: status = %d", w.Code)
	}
}

func TestLinksLifecycleSpawn(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/links", `{"attempts":30}`)
	var links map[string]int
	json.Unmarshal(w.Body.Bytes(), &links)
	if _, ok := links["formed"]; !ok || w.Code != http.StatusOK {
		t.Errorf("links: status = %d body = %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "POST", "/api/lifecycle", "")
	var lc engine.LifecycleReport
	json.Unmarshal(w.Body.Bytes(), &lc)
	if lc.Aged != 4 {
		t.Errorf("aged = %d, want 4", lc.Aged)
	}

	w = do(t, srv, "POST", "/api/spawn", "")
	var sp map[string]any
	json.Unmarshal(w.Body.Bytes(), &sp)
	if _, ok := sp["created"]; !ok {
		t.Errorf("spawn body = %s", w.Body.String())
	}
}

func TestSignals(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/signals", `{"name":"Stock_ACME","change_pct":-25}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var v engine.SignalView
	json.Unmarshal(w.Body.Bytes(), &v)
	if !v.Created || v.Shift != -0.2 || v.Trend != "downtrend" {
		t.Errorf("signal = %+v", v)
	}

	if w := do(t, srv, "POST", "/api/signals", `{"name":"RootVerse","change_pct":1}`); w.Code != http.StatusConflict {
		t.Errorf("non-signal: status = %d, want 409", w.Code)
	}
	if w := do(t, srv, "POST", "/api/signals", `{"name":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing change: status = %d, want 400", w.Code)
	}
}

func TestSnapshots(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/snapshots", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("save: status = %d; body: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/snapshots?limit=5", "")
	var resp struct {
		Snapshots []struct {
			NodeCount int `json:"node_count"`
		} `json:"snapshots"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Snapshots) != 1 || resp.Snapshots[0].NodeCount != 4 {
		t.Errorf("snapshots = %+v", resp.Snapshots)
	}
}

func TestGhosts(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/ghosts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	w = do(t, srv, "GET", "/api/ghosts?history=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history: status = %d", w.Code)
	}
}

func TestPatternsAndPrediction(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/signals", `{"name":"Stock_A","change_pct":20}`)
	do(t, srv, "POST", "/api/signals", `{"name":"Stock_B","change_pct":5}`)

	w := do(t, srv, "POST", "/api/patterns", `{"name":"AB","a":"Stock_A","b":"Stock_B","strength":0.6}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var created struct {
		Node  engine.NodeView    `json:"node"`
		Links map[string]float64 `json:"links"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.Node.Kind != engine.KindPattern || len(created.Links) != 2 {
		t.Errorf("pattern = %+v links = %v", created.Node, created.Links)
	}

	w = do(t, srv, "GET", "/api/signals/Stock_A/prediction", "")
	if w.Code != http.StatusOK {
		t.Fatalf("prediction status = %d; body: %s", w.Code, w.Body.String())
	}
	var p engine.Prediction
	json.Unmarshal(w.Body.Bytes(), &p)
	if p.Direction != engine.Bullish || p.Patterns != 1 {
		t.Errorf("prediction = %+v", p)
	}
	// 0.64 from the signal plus 0.3 * 0.6 from the pattern
	if p.Confidence < 0.819 || p.Confidence > 0.821 {
		t.Errorf("confidence = %v, want 0.82", p.Confidence)
	}
}

func TestPatternErrors(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/signals", `{"name":"S1","change_pct":0}`)
	do(t, srv, "POST", "/api/signals", `{"name":"S2","change_pct":0}`)
	do(t, srv, "POST", "/api/patterns", `{"name":"P","a":"S1","b":"S2","strength":0.5}`)

	cases := []struct {
		body string
		want int
	}{
		{`{"name":"Q","a":"S1","b":"S2"}`, http.StatusBadRequest},
		{`{"name":"Q","a":"S1","b":"S2","strength":2}`, http.StatusBadRequest},
		{`{"name":"","a":"S1","b":"S2","strength":0.5}`, http.StatusBadRequest},
		{`{"name":"Q","a":"S1","b":"S1","strength":0.5}`, http.StatusBadRequest},
		{`{"name":"Q","a":"S1","b":"nope","strength":0.5}`, http.StatusNotFound},
		{`{"name":"Q","a":"S1","b":"RootVerse","strength":0.5}`, http.StatusConflict},
		{`{"name":"P","a":"S1","b":"S2","strength":0.5}`, http.StatusConflict},
	}
	for _, tc := range cases {
		if w := do(t, srv, "POST", "/api/patterns", tc.body); w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.body, w.Code, tc.want)
		}
	}

	if w := do(t, srv, "GET", "/api/signals/nope/prediction", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing signal: status = %d, want 404", w.Code)
	}
	if w := do(t, srv, "GET", "/api/signals/RootVerse/prediction", ""); w.Code != http.StatusConflict {
		t.Errorf("non-signal: status = %d, want 409", w.Code)
	}
}
