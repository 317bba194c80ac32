// Package api exposes the HTTP surface: health, status and read-only
// access to stored conversation items.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soundbench/huddle/internal/conversation"
)

const defaultItemsLimit = 100

// ItemLister reads stored conversation items for one session.
type ItemLister interface {
	SessionItems(ctx context.Context, sessionID, kind string, limit int) ([]*conversation.Item, error)
}

type Server struct {
	router *chi.Mux
	items  ItemLister
	logger *slog.Logger
	srv    *http.Server
}

func NewServer(port int, items ItemLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		items:  items,
		logger: logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/huddle/status", s.status)
	router.Get("/api/v1/huddle/sessions/{sessionID}/items", s.sessionItems)

	return s
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "huddle",
		"status":  "listening",
	})
}

func (s *Server) sessionItems(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	kind := r.URL.Query().Get("kind")
	switch kind {
	case "", conversation.KindFinal, conversation.KindAct, conversation.KindAnswer:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown kind %q", kind)})
		return
	}

	limit := defaultItemsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	items, err := s.items.SessionItems(r.Context(), sessionID, kind, limit)
	if err != nil {
		s.logger.Error("list session items failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list items"})
		return
	}
	if items == nil {
		items = []*conversation.Item{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"count":      len(items),
		"items":      items,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
