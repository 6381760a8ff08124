package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/lazypower/glyphwheel/internal/config"
	"github.com/lazypower/glyphwheel/internal/engine"
	"github.com/lazypower/glyphwheel/internal/store"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.DefaultEngine()
	cfg.Seed = 1
	eng := engine.New(cfg)
	eng.SeedCore()
	t.Cleanup(eng.Stop)
	return eng
}

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	eng := testEngine(t)
	eng.SetSink(db)
	return New(eng, db, "test-version", Options{})
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
	if body["nodes"] != float64(4) {
		t.Errorf("nodes = %v, want 4", body["nodes"])
	}
}

func TestHealthWithoutDB(t *testing.T) {
	srv := New(testEngine(t), nil, "v", Options{})

	w := do(t, srv, "GET", "/api/health", "")
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["db"] != false {
		t.Errorf("db = %v, want false", body["db"])
	}
}

func TestHistoryRoutesWithoutDB(t *testing.T) {
	srv := New(testEngine(t), nil, "v", Options{})

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/api/snapshots"},
		{"POST", "/api/snapshots"},
		{"GET", "/api/reports"},
		{"GET", "/api/ghosts?history=1"},
	}
	for _, rt := range routes {
		w := do(t, srv, rt.method, rt.path, "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: status = %d, want %d", rt.method, rt.path, w.Code, http.StatusServiceUnavailable)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Errorf("%s %s: expected error message in body", rt.method, rt.path)
		}
	}
}

func TestRateLimit(t *testing.T) {
	srv := New(testEngine(t), nil, "v", Options{RateLimit: 0.001, RateBurst: 2})

	for i := 0; i < 2; i++ {
		if w := do(t, srv, "POST", "/api/links", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := do(t, srv, "POST", "/api/links", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// reads are not limited
	if w := do(t, srv, "GET", "/api/status", ""); w.Code != http.StatusOK {
		t.Errorf("status read: %d, want 200", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/stress", `{"intensity":0.5,"cycles":3}`)

	w := do(t, srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	for _, name := range []string{"glyphwheel_stress_runs_total", "glyphwheel_entropy", "glyphwheel_nodes"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

func TestDashboard(t *testing.T) {
	srv := testServer(t)

	SetUI(nil)
	if w := do(t, srv, "GET", "/", ""); w.Code != http.StatusNotFound {
		t.Errorf("no UI: status = %d, want 404", w.Code)
	}

	SetUI(fstest.MapFS{"index.html": {Data: []byte("<html>glyphwheel</html>")}})
	t.Cleanup(func() { SetUI(nil) })

	for _, path := range []string{"/", "/nodes/RootVerse"} {
		w := do(t, srv, "GET", path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "glyphwheel") {
			t.Errorf("%s: body = %q", path, w.Body.String())
		}
	}
}
