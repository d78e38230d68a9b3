package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Xalamander777/neur-app/pkg/agent"
	"github.com/Xalamander777/neur-app/pkg/conversation"
	"github.com/Xalamander777/neur-app/pkg/logging"
	"github.com/Xalamander777/neur-app/pkg/metrics"
	"github.com/Xalamander777/neur-app/pkg/storage"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// Server wires the HTTP routes to the engine and stores.
type Server struct {
	router   chi.Router
	engine   *agent.Engine
	registry *tool.Registry
	store    *storage.Store
	logger   *logging.Logger
	metrics  *metrics.Metrics

	jwtSecret string
	disabled  []string
	lookup    tool.LookupEnv
}

// Options configures a server.
type Options struct {
	Engine        *agent.Engine
	Registry      *tool.Registry
	Store         *storage.Store
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
	JWTSecret     string
	DisabledTools []string
	LookupEnv     tool.LookupEnv
}

// NewServer creates the HTTP server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = tool.OSLookupEnv
	}

	s := &Server{
		engine:    opts.Engine,
		registry:  opts.Registry,
		store:     opts.Store,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		jwtSecret: opts.JWTSecret,
		disabled:  opts.DisabledTools,
		lookup:    opts.LookupEnv,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/api/chat", s.handleChat)
		r.Delete("/api/conversations", s.handleDeleteConversations)
		r.Get("/api/tools", s.handleListTools)
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	ID       string                 `json:"id"`
	Messages []conversation.Message `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	if identity.WalletAddress == "" {
		s.metrics.CountChatRequest("bad_request")
		http.Error(w, "wallet public key is required", http.StatusBadRequest)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.CountChatRequest("bad_request")
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if len(conversation.FilterEmpty(req.Messages)) == 0 {
		s.metrics.CountChatRequest("bad_request")
		http.Error(w, "messages are required", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	} else if _, err := uuid.Parse(req.ID); err != nil {
		s.metrics.CountChatRequest("bad_request")
		http.Error(w, "conversation id must be a UUID", http.StatusBadRequest)
		return
	}

	title := ""
	if user := agent.LastUserMessage(req.Messages); user != nil {
		title = truncate(user.Content, 80)
	}
	if _, err := s.store.EnsureConversation(req.ID, identity.UserID, title); err != nil {
		s.metrics.CountChatRequest("error")
		s.logger.Error(logging.CategoryAPI, "conversation_ensure_failed", err.Error(), nil)
		http.Error(w, "could not open conversation", http.StatusInternalServerError)
		return
	}

	sink, err := NewSSESink(w)
	if err != nil {
		s.metrics.CountChatRequest("error")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// A client disconnect cancels the request context; a hard abort cancels
	// the same context through the abort state.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	abort := tool.NewAbortState(cancel)

	err = s.engine.RunTurn(ctx, agent.TurnRequest{
		ConversationID: req.ID,
		UserID:         identity.UserID,
		WalletAddress:  identity.WalletAddress,
		Messages:       req.Messages,
		Sink:           sink,
		Abort:          abort,
	})
	switch {
	case err == nil:
		s.metrics.CountChatRequest("ok")
	case errors.Is(err, agent.ErrNothingToDo):
		s.metrics.CountChatRequest("noop")
	case errors.Is(err, agent.ErrInvalidUpdate):
		s.metrics.CountChatRequest("invalid_update")
		sink.Error("the edited tool arguments are invalid")
	default:
		s.metrics.CountChatRequest("error")
		s.logger.Error(logging.CategoryAPI, "turn_failed", err.Error(), map[string]any{
			"conversation_id": req.ID,
		})
		sink.Error("the response could not be completed")
	}

	sink.Done()
}

// deleteRequest is the DELETE /api/conversations body.
type deleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleDeleteConversations(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		http.Error(w, "ids are required", http.StatusBadRequest)
		return
	}

	deleted, err := s.store.DeleteConversations(identity.UserID, req.IDs)
	if err != nil {
		s.logger.Error(logging.CategoryAPI, "delete_failed", err.Error(), nil)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"deleted": deleted})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := s.registry.WriteMetadata(w, s.disabled, s.lookup); err != nil {
		s.logger.Error(logging.CategoryAPI, "tool_list_failed", err.Error(), nil)
	}
}

// truncate cuts s to at most n runes, never splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
