package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/driftwatch/console/internal/config"
	"github.com/driftwatch/console/internal/middleware"
	"github.com/driftwatch/console/internal/poller"
	"github.com/driftwatch/console/internal/scoring"
	"github.com/driftwatch/console/internal/version"
	"github.com/driftwatch/console/internal/ws"
)

// Server exposes the aggregate telemetry state and the incident timeline over
// HTTP. Everything under /api/v1 is a read-only view of poller state except
// the explicit event operations and the retrain proxy.
type Server struct {
	logger         *zap.Logger
	config         *config.Config
	router         chi.Router
	poller         *poller.Poller
	scoringClient  *scoring.Client
	hub            *ws.Hub
	retrainLimiter *rate.Limiter
}

// NewServer creates a new API server
func NewServer(logger *zap.Logger, cfg *config.Config, p *poller.Poller, scoringClient *scoring.Client, hub *ws.Hub) *Server {
	perMinute := cfg.RateLimits.RetrainPerMinute
	if perMinute <= 0 {
		perMinute = 1
	}

	s := &Server{
		logger:         logger,
		config:         cfg,
		router:         chi.NewRouter(),
		poller:         p,
		scoringClient:  scoringClient,
		hub:            hub,
		retrainLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.RequestIDResponseMiddleware)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(30 * time.Second))
	s.router.Use(middleware.PrometheusMiddleware)

	// CORS middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Get("/version", s.handleVersion)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/overview", s.handleOverview)
		r.Get("/charts/{chart}", s.handleChart)

		r.Get("/events", s.handleListEvents)
		r.Get("/events/buckets", s.handleEventBuckets)
		r.Get("/events/export", s.handleExportEvents)
		r.Post("/events", s.handleAddEvent)
		r.Delete("/events", s.handleClearEvents)

		r.Post("/retrain", s.handleRetrain)

		r.Get("/stream/state", s.hub.ServeHTTP)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness based on collaborator reachability. A console
// that cannot reach the scoring API serves stale data and should be routed
// around.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	view := s.poller.View(time.Now())
	if !view.APIConnected {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"issues": view.Issues,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
