package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/lazypower/glyphwheel/internal/engine"
	"github.com/lazypower/glyphwheel/internal/logging"
	"github.com/lazypower/glyphwheel/internal/store"
)

// Options tunes a Server. A zero RateLimit disables limiting.
type Options struct {
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
}

// Server is the glyphwheel HTTP API server. It owns no state beyond the
// engine it was handed; db is optional.
type Server struct {
	eng     *engine.Engine
	db      *store.DB
	router  chi.Router
	limiter *rate.Limiter
	log     *slog.Logger
	version string
	started time.Time
}

// New creates a Server over eng. db may be nil, in which case the history
// routes answer 503.
func New(eng *engine.Engine, db *store.DB, version string, opts Options) *Server {
	s := &Server{
		eng:     eng,
		db:      db,
		log:     opts.Logger,
		version: version,
		started: time.Now(),
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/nodes/{name}", s.handleGetNode)
		r.Get("/ghosts", s.handleGhosts)
		r.Get("/snapshots", s.handleListSnapshots)
		r.Get("/reports", s.handleListReports)
		r.Get("/signals/{name}/prediction", s.handlePredict)

		r.Group(func(r chi.Router) {
			r.Use(s.limit)
			r.Post("/nodes", s.handleAddNode)
			r.Delete("/nodes/{name}", s.handleRemoveNode)
			r.Post("/stress", s.handleStress)
			r.Post("/recovery", s.handleRecovery)
			r.Post("/recalibrate", s.handleRecalibrate)
			r.Post("/links", s.handleLinks)
			r.Post("/lifecycle", s.handleLifecycle)
			r.Post("/spawn", s.handleSpawn)
			r.Post("/signals", s.handleSignal)
		r.Post("/patterns", s.handleCorrelate)
			r.Post("/snapshots", s.handleSaveSnapshot)
		})
	})

	r.Get("/*", spaHandler())

	s.router = r
}

// limit rejects mutations over the configured rate with 429.
func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			res := s.limiter.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := false
	dbPath := ""
	if s.db != nil {
		dbOK = s.db.Ping() == nil
		dbPath = s.db.Path
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"nodes":   s.eng.NodeCount(),
		"db":      dbOK,
		"db_path": dbPath,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
