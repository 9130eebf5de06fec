package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/dgallion1/docslice/internal/index"
	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/dgallion1/docslice/internal/stats"
	"github.com/dgallion1/docslice/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// TaskService accepts tasks and reports their status. The in-process
// orchestrator and the asynq client both implement it.
type TaskService interface {
	Submit(ctx context.Context, t *pipeline.Task) error
	Lookup(ctx context.Context, id string) (pipeline.Snapshot, bool, error)
}

// Options holds the request limits and defaults the handlers apply.
type Options struct {
	APIKey         string // empty disables auth
	MaxUploadBytes int64
	ChunkDefaults  chunker.Config
}

// Deps are the collaborators the server reads from.
type Deps struct {
	Tasks TaskService
	Store storage.Store
	Index *index.Index
	Stats *stats.Recorder // nil when tasks run in another process
}

// Server is the HTTP API server for docslice.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	opts   Options
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 52428800
	}
	if opts.ChunkDefaults.ChunkSize == 0 {
		opts.ChunkDefaults = chunker.DefaultConfig()
	}
	s := &Server{
		deps: deps,
		log:  log,
		opts: opts,
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
		if s.opts.APIKey != "" {
			r.Use(AuthMiddleware(s.opts.APIKey, s.log))
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/process-document", s.handleProcessDocument)
			r.Post("/batch-process", s.handleBatchProcess)
			r.Get("/tasks/{taskID}", s.handleTaskStatus)
			r.Get("/download/{taskID}/*", s.handleDownload)
			r.Get("/index", s.handleIndex)
			r.Get("/stats", s.handleStats)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
