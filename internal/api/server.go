package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alexchenyu/OpenDeepWiki/internal/config"
	"github.com/alexchenyu/OpenDeepWiki/internal/pipeline"
	"github.com/alexchenyu/OpenDeepWiki/internal/store"
)

// Server is the operational HTTP surface: submit documentation runs,
// poll their progress, inspect catalogues.
type Server struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	store    store.Store
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(p *pipeline.Pipeline, st store.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		pipeline: p,
		store:    st,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/runs", s.handleSubmitRun)
		r.Get("/api/runs/{runID}", s.handleRunStatus)
		r.Get("/api/repositories/{repoID}", s.handleRepository)
		r.Get("/api/repositories/{repoID}/entries", s.handleEntries)
		r.Get("/api/stats/queue", s.handleQueueStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
