package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/glyphwheel/internal/engine"
)

// maxCycles bounds the cycles or attempts a single request may ask for.
const maxCycles = 10000

// Request defaults when a field is omitted.
const (
	defaultIntensity     = 0.5
	defaultStressCycles  = 100
	defaultRecoverCycles = 10
	defaultRecalCycles   = 50
	defaultLinkAttempts  = 10
)

// decodeBody reads an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// count resolves an optional count field against a default and maxCycles.
func count(v *int, def int) (int, bool) {
	if v == nil {
		return def, true
	}
	if *v < 0 || *v > maxCycles {
		return 0, false
	}
	return *v, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Status())
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	node, ok := s.eng.Node(name)
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node":  node,
		"links": s.eng.Links(name),
	})
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string   `json:"name"`
		Stability *float64 `json:"stability"`
		Kind      string   `json:"kind"`
		Archetype string   `json:"archetype"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	name, err := engine.NormalizeName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := engine.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	arch, err := engine.ParseArchetype(req.Archetype)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.eng.AddNode(name, engine.AddOptions{Stability: req.Stability, Kind: kind, Archetype: arch}) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   "node exists or capacity reached",
		})
		return
	}
	node, _ := s.eng.Node(name)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "node": node})
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	if !s.eng.RemoveNode(chi.URLParam(r, "name")) {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleStress answers 200 for refused runs too; the result field carries
// the outcome.
func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Intensity *float64 `json:"intensity"`
		Cycles    *int     `json:"cycles"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	intensity := defaultIntensity
	if req.Intensity != nil {
		intensity = *req.Intensity
	}
	if intensity < 0 || intensity > 1 {
		writeError(w, http.StatusBadRequest, "intensity must be within [0,1]")
		return
	}
	cycles, ok := count(req.Cycles, defaultStressCycles)
	if !ok {
		writeError(w, http.StatusBadRequest, "cycles out of range")
		return
	}

	rep := s.eng.ApplyStress(intensity, cycles)
	if rep.Refused() {
		s.log.Info("stress refused", "reason", rep.Reason, "remote", r.RemoteAddr)
		if rep.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rep.RetryAfter))))
		}
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRecovery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cycles *int `json:"cycles"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cycles, ok := count(req.Cycles, defaultRecoverCycles)
	if !ok {
		writeError(w, http.StatusBadRequest, "cycles out of range")
		return
	}
	writeJSON(w, http.StatusOK, s.eng.ApplyRecovery(cycles))
}

func (s *Server) handleRecalibrate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cycles *int `json:"cycles"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cycles, ok := count(req.Cycles, defaultRecalCycles)
	if !ok {
		writeError(w, http.StatusBadRequest, "cycles out of range")
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Recalibrate(cycles))
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attempts *int `json:"attempts"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	attempts, ok := count(req.Attempts, defaultLinkAttempts)
	if !ok {
		writeError(w, http.StatusBadRequest, "attempts out of range")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"formed": s.eng.FormLinks(attempts)})
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.LifecycleTick())
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	name, created := s.eng.Spawn()
	writeJSON(w, http.StatusOK, map[string]any{"created": created, "name": name})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string   `json:"name"`
		ChangePct *float64 `json:"change_pct"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ChangePct == nil {
		writeError(w, http.StatusBadRequest, "change_pct required")
		return
	}
	name, err := engine.NormalizeName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.eng.UpdateSignal(name, *req.ChangePct)
	if err != nil {
		writeError(w, engineErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// engineErrorStatus maps engine sentinels onto HTTP status codes.
func engineErrorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotSignal), errors.Is(err, engine.ErrExists), errors.Is(err, engine.ErrCapacity):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCorrelate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string   `json:"name"`
		A        string   `json:"a"`
		B        string   `json:"b"`
		Strength *float64 `json:"strength"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Strength == nil || *req.Strength < 0 || *req.Strength > 1 {
		writeError(w, http.StatusBadRequest, "strength must be within [0,1]")
		return
	}
	names := []*string{&req.Name, &req.A, &req.B}
	for _, n := range names {
		norm, err := engine.NormalizeName(*n)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		*n = norm
	}

	node, err := s.eng.CorrelatePattern(req.Name, req.A, req.B, *req.Strength)
	if err != nil {
		writeError(w, engineErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"node":  node,
		"links": s.eng.Links(node.Name),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	p, err := s.eng.Predict(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, engineErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleGhosts lists the engine's live registry, or the full recorded
// history with ?history=1.
func (s *Server) handleGhosts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("history") == "" {
		writeJSON(w, http.StatusOK, map[string]any{"ghosts": s.eng.Ghosts()})
		return
	}
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	ghosts, err := s.db.ListGhosts(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ghosts": ghosts})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	snaps, err := s.db.ListSnapshots(queryLimit(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	id, err := s.db.SaveSnapshot(s.eng.Status())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	reports, err := s.db.ListReports(r.URL.Query().Get("operation"), queryLimit(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func queryLimit(r *http.Request, def int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	return limit
}
