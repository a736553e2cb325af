// Package daemon serves a practice session over HTTP for editor plugins.
// The plugin mirrors the learner's edits with POST /v1/changes and applies
// the returned document after each action.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/felixgeelhaar/kata/internal/document"
	"github.com/felixgeelhaar/kata/internal/notify"
	"github.com/felixgeelhaar/kata/internal/session"
)

// Document is the hosted document. *document.Buffer and
// *document.FileDocument implement it.
type Document interface {
	document.Document
	document.Versioned
	Version() int
}

// Config wires the server to its session.
type Config struct {
	Session  *session.Session
	Document Document
	Journal  *notify.Journal
	Context  *notify.ContextMap

	Bind           string
	Port           int
	AllowedOrigins []string

	// Providers and Version are reported by /v1/status.
	Providers []string
	Version   string
}

// Server is the kata HTTP daemon.
type Server struct {
	cfg    Config
	router chi.Router
	server *http.Server

	// actions and edits are applied one at a time
	mu sync.Mutex
}

// NewServer builds the router. Journal and Context default to fresh
// instances when nil; they must be the ones the session was built with.
func NewServer(cfg Config) *Server {
	if cfg.Journal == nil {
		cfg.Journal = notify.NewJournal(0)
	}
	if cfg.Context == nil {
		cfg.Context = notify.NewContextMap()
	}

	s := &Server{cfg: cfg}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute, // generation can be slow
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, middleware.RealIP, logMiddleware, recoverMiddleware)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/document", s.handleDocument)
		r.Get("/actions", s.handleListActions)
		r.Post("/actions", s.handleDoAction)
		r.Post("/changes", s.handleChanges)
		r.Post("/timer/{op}", s.handleTimer)
		r.Post("/run", s.handleRun)
		r.Get("/messages", s.handleMessages)
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Addr is the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start serves until Shutdown.
func (s *Server) Start() error {
	slog.Info("starting kata daemon",
		"addr", s.server.Addr,
		"providers", s.cfg.Providers,
		"uri", s.cfg.Document.URI(),
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon")
	return s.server.Shutdown(ctx)
}
