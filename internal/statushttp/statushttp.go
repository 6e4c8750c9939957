// Package statushttp serves the reconciler's view of the corpus over HTTP: an
// HTML progress page for humans and a JSON API for tooling. Every request
// recomputes from the filesystem; the artifact tree changes underneath us and
// a cache would only report yesterday's corpus.
package statushttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arxtract/arxtract/internal/corpus"
	"github.com/arxtract/arxtract/internal/status"
)

// Source builds a fresh reconciler over the current state of the corpus.
// The server calls it once per request.
type Source func() (*status.Reconciler, error)

// Server is the read-only status server.
type Server struct {
	httpServer *http.Server
	source     Source
	started    time.Time
	router     chi.Router
}

// NewServer wires the routes. addr is the listen address, e.g. ":8000".
func NewServer(addr string, source Source) *Server {
	s := &Server{source: source, started: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", s.handleIndex)
	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleSnapshot)
		api.Get("/status/{docID}", s.handleDocument)
	})

	s.router = r
	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

// Handler exposes the routes for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	slog.Info("status server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown stops the server, letting in-flight requests finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := s.source()
	if err != nil {
		slog.Error("failed to scan corpus", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to scan corpus"})
		return
	}
	writeJSON(w, http.StatusOK, rec.Snapshot())
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	rec, err := s.source()
	if err != nil {
		slog.Error("failed to scan corpus", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to scan corpus"})
		return
	}
	doc, err := rec.StatusRefreshed(docID)
	if errors.Is(err, corpus.ErrUnknownDocument) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown document " + docID})
		return
	}
	if err != nil {
		slog.Error("failed to refresh document", "docId", docID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to refresh document"})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
