// Package server provides the HTTP JSON API over the journal store.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/raphaelgruber/journal-go/internal/llm"
	"github.com/raphaelgruber/journal-go/internal/metrics"
	"github.com/raphaelgruber/journal-go/internal/prompt"
	"github.com/raphaelgruber/journal-go/internal/session"
	"github.com/raphaelgruber/journal-go/internal/store"
)

// Server wires the store, model and prompt manager behind HTTP handlers.
type Server struct {
	store   *store.Store
	model   session.Chatter
	prompts *prompt.Manager
	trigger session.Notifier
	log     *slog.Logger
	cfg     session.Config
	metrics *metrics.Collector
}

// New creates a server. trigger may be nil to disable background titles.
func New(st *store.Store, model session.Chatter, prompts *prompt.Manager, trigger session.Notifier, log *slog.Logger, cfg session.Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:   st,
		model:   model,
		prompts: prompts,
		trigger: trigger,
		log:     log,
		cfg:     cfg,
	}
}

// SetMetrics enables the /api/metrics endpoint.
func (s *Server) SetMetrics(c *metrics.Collector) {
	s.metrics = c
}

// Handler returns the routed handler with logging middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.handleGetMessages)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	return LoggingMiddleware(s.log)(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", store.DefaultListLimit)
	offset := queryInt(r, "offset", 0)

	convs, err := s.store.ListConversations(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.GetConversation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if conv == nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if conv == nil {
		s.writeError(w, store.ErrNotFound)
		return
	}

	msgs, err := s.store.GetMessages(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.DeleteConversation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !deleted {
		s.writeError(w, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	UserName       string `json:"user_name,omitempty"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

// handleChat runs one exchange. Without a conversation_id a new
// conversation is started; with one, the existing history is resumed.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var (
		sess *session.Session
		err  error
	)
	if req.ConversationID != "" {
		sess, err = session.Resume(r.Context(), s.store, s.model, s.prompts, s.trigger, s.log, s.cfg, req.ConversationID)
		if err != nil {
			s.writeError(w, err)
			return
		}
	} else {
		sess = session.New(s.store, s.model, s.prompts, s.trigger, s.log, s.cfg, req.UserName)
	}

	reply, err := sess.SendMessage(r.Context(), req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: sess.ConversationID(),
		Reply:          reply,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}

	convs, err := s.store.SearchConversations(r.Context(), query, queryInt(r, "limit", store.DefaultListLimit))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.Error(w, "metrics not enabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// writeError maps known error kinds to HTTP statuses. Unknown errors are
// logged and reported as a bare 500 so internals never leak to clients.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, store.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, llm.ErrUnavailable):
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	default:
		s.log.Error("request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
