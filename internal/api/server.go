package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docextract/internal/config"
	"github.com/dgallion1/docextract/internal/history"
	"github.com/dgallion1/docextract/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HistoryReader reads the processing ledger.
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
	ByJob(ctx context.Context, jobID string) (history.Entry, error)
}

// Server is the HTTP API server for docextract.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	history      HistoryReader
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. hist may be nil, in which
// case the history endpoint reports 503 and expired jobs are not found.
func NewServer(orch *pipeline.Orchestrator, hist HistoryReader, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		history:      hist,
		log:          log,
		cfg:          cfg,
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

		r.Post("/api/process", s.handleProcess)
		r.Post("/api/process/batch", s.handleBatchProcess)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/files/*", s.handleJobFile)

		r.Get("/api/history", s.handleHistory)
		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
