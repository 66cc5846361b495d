// ABOUTME: HTTP server wiring for the conversations REST API
// ABOUTME: chi router, auth middleware, JSON and error response helpers

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/conversation"
	"github.com/parleyhq/parley/internal/store"
)

// Server exposes the conversation service over HTTP.
type Server struct {
	svc      *conversation.Service
	users    auth.UserStore
	verifier auth.TokenVerifier
	logger   *slog.Logger
}

// NewServer creates a new API server
func NewServer(svc *conversation.Service, users auth.UserStore, verifier auth.TokenVerifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:      svc,
		users:    users,
		verifier: verifier,
		logger:   logger.With("component", "api"),
	}
}

// Handler builds the route tree. All /api routes require a bearer token;
// /healthz does not.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(s.users, s.verifier))

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.handleListConversations)
			r.Post("/", s.handleCreateConversation)
			r.Get("/unread", s.handleUnreadCount)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetConversation)
				r.Get("/messages", s.handleListMessages)
				r.Post("/messages", s.handleInsertMessage)
				r.Post("/typing", s.handleStartTyping)
				r.Delete("/typing", s.handleStopTyping)
				r.Post("/read", s.handleMarkRead)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// errorResponse is the JSON body for all error replies
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service errors onto HTTP statuses: not-found to 404,
// validation to 400, anything else to 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrEmptyText),
		errors.Is(err, store.ErrNoMembers),
		errors.Is(err, store.ErrBadCursor):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
