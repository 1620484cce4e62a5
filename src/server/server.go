// Package server exposes the reply pipeline over an HTTP and websocket API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pawmate/autoreply/src/orchestrator"
	"github.com/pawmate/autoreply/src/router"
	"github.com/pawmate/autoreply/src/storage"
)

// Server wires the storage layer and orchestrator into HTTP handlers.
type Server struct {
	store        *storage.Store
	orchestrator *orchestrator.Orchestrator
	replyRouter  *router.Router
	hub          *Hub
	logger       *slog.Logger
}

// Options configures a Server.
type Options struct {
	Store        *storage.Store
	Orchestrator *orchestrator.Orchestrator
	ReplyRouter  *router.Router
	Hub          *Hub
	Logger       *slog.Logger
}

// New creates a server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		store:        opts.Store,
		orchestrator: opts.Orchestrator,
		replyRouter:  opts.ReplyRouter,
		hub:          hub,
		logger:       logger.With("component", "http_server"),
	}
}

// Hub returns the message fan-out hub, for wiring as orchestrator notifier.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the chi router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Post("/conversations", s.handleCreateConversation)
		r.Get("/conversations", s.handleListConversations)
		r.Get("/conversations/{id}/messages", s.handleListMessages)
		r.Post("/conversations/{id}/messages", s.handleSendMessage)
		r.Get("/conversations/{id}/events", s.handleEvents)
		r.Get("/debug/provider", s.handleProviderSnapshot)
	})

	return r
}

type createConversationRequest struct {
	Flavor    string `json:"flavor"`
	AgentType string `json:"agent_type,omitempty"`
	Title     string `json:"title,omitempty"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Flavor {
	case storage.FlavorPeer, storage.FlavorSystem, storage.FlavorAgent:
	case "":
		req.Flavor = storage.FlavorPeer
	default:
		s.writeError(w, http.StatusBadRequest, "unknown conversation flavor")
		return
	}
	if req.Flavor == storage.FlavorAgent && req.AgentType == "" {
		s.writeError(w, http.StatusBadRequest, "agent conversations require an agent_type")
		return
	}

	conv := &storage.Conversation{
		Flavor:    req.Flavor,
		AgentType: req.AgentType,
		Title:     req.Title,
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		s.logger.Error("failed to create conversation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	s.writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.store.ListConversations(r.Context())
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []storage.Conversation{}
	}
	s.writeJSON(w, http.StatusOK, conversations)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	messages, err := s.store.GetMessagesByConversationID(r.Context(), conv.ID)
	if err != nil {
		s.logger.Error("failed to list messages", "conversation_id", conv.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []storage.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(w, http.StatusBadRequest, "message content is empty")
		return
	}

	// The send succeeds or fails on the user message persist alone. The
	// automated reply is scheduled in the background and surfaced over the
	// events socket.
	msg, err := s.orchestrator.HandleUserMessage(r.Context(), conv, req.Content)
	if err != nil {
		s.logger.Error("failed to persist message", "conversation_id", conv.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Error("failed to accept websocket", "conversation_id", conv.ID, "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "subscription ended")

	ch := s.hub.Subscribe(conv.ID)
	defer s.hub.Unsubscribe(conv.ID, ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := ws.Write(ctx, websocket.MessageText, payload); err != nil {
				s.logger.Debug("websocket write failed", "conversation_id", conv.ID, "error", err)
				return
			}
		}
	}
}

func (s *Server) handleProviderSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.replyRouter.DebugSnapshot())
}

func (s *Server) loadConversation(w http.ResponseWriter, r *http.Request) (*storage.Conversation, bool) {
	id := chi.URLParam(r, "id")
	conv, err := s.store.GetConversationByID(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load conversation", "conversation_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return nil, false
	}
	if conv == nil {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	return conv, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
