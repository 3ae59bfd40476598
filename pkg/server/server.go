// Package server exposes projects, messages and run events over HTTP and
// streams new project messages over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nstogner/sitesmith/pkg/domain"
	"github.com/nstogner/sitesmith/pkg/metrics"
	"github.com/nstogner/sitesmith/pkg/models"
	"github.com/nstogner/sitesmith/pkg/store"
)

// Submitter accepts run requests.
type Submitter interface {
	Submit(ctx context.Context, req domain.RunRequest) (*domain.Run, error)
}

// Server serves the REST API.
type Server struct {
	projects store.ProjectStore
	messages store.MessageStore
	runs     store.RunStore
	engine   Submitter
	provider models.ModelProvider
	srv      *http.Server
}

// New creates a new Server.
func New(st store.Store, engine Submitter, provider models.ModelProvider) *Server {
	return &Server{
		projects: st,
		messages: st,
		runs:     st,
		engine:   engine,
		provider: provider,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Projects
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)

	// Messages
	mux.HandleFunc("GET /api/projects/{id}/messages", s.handleListMessages)
	mux.HandleFunc("POST /api/projects/{id}/messages", s.handleCreateMessage)

	// Events and runs
	mux.HandleFunc("POST /api/events", s.handleEvent)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)

	// Models
	mux.HandleFunc("GET /api/models", s.handleListModels)

	// WebSocket
	mux.HandleFunc("/api/projects/{id}/stream", s.handleStream)

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return s.corsMiddleware(mux)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting web server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "status", status, "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}

// storeError maps lookup failures to 404 and everything else to 500.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	s.errorResponse(w, http.StatusInternalServerError, err)
}
