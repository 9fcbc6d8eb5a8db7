// HTTP surface for the chat service.
//
// ROUTES:
//
//	POST   /chats                 create a chat bound to a model
//	GET    /chats/{id}/messages   full history, oldest first
//	POST   /chats/{id}/messages   send a message, get the reply
//	DELETE /chats/{id}/messages   clear history, keep the chat
//	GET    /healthz               liveness probe
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/apexplatform/inference-gateway/internal/config"
	"github.com/apexplatform/inference-gateway/internal/service"
	"github.com/apexplatform/inference-gateway/internal/store"
	"github.com/apexplatform/inference-gateway/internal/usage"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Server routes HTTP requests to the chat service.
type Server struct {
	svc  *service.Service
	http *http.Server
}

// NewServer builds the server around a chat service.
func NewServer(svc *service.Service) *Server {
	return &Server{svc: svc}
}

// Start listens on the configured address and blocks until Shutdown or
// a listener error.
func (s *Server) Start(cfg config.ServerConfig) error {
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	log.Info().Int("port", cfg.Port).Msg("gateway listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Handler returns the full middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chats", s.handleCreateChat)
	mux.HandleFunc("GET /chats/{id}/messages", s.handleListMessages)
	mux.HandleFunc("POST /chats/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("DELETE /chats/{id}/messages", s.handleClearMessages)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return withMiddleware(mux)
}

type createChatRequest struct {
	ModelID string `json:"modelId"`
}

type chatResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ModelID   string    `json:"modelId"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageResponse struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	UserMessage      messageResponse `json:"userMessage"`
	AssistantMessage messageResponse `json:"assistantMessage"`
	Usage            usage.Summary   `json:"usage"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	modelID, err := uuid.Parse(req.ModelID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "modelId must be a valid UUID", nil)
		return
	}

	chat, err := s.svc.CreateChat(r.Context(), modelID)
	if err != nil {
		writeNormalized(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChatResponse(chat))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathChatID(w, r)
	if !ok {
		return
	}
	msgs, err := s.svc.Messages(r.Context(), chatID)
	if err != nil {
		writeNormalized(w, r, err)
		return
	}
	out := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageResponse(&msgs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathChatID(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	reply, err := s.svc.SendMessage(r.Context(), chatID, req.Content)
	if err != nil {
		writeNormalized(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{
		UserMessage:      toMessageResponse(reply.UserMessage),
		AssistantMessage: toMessageResponse(reply.AssistantMessage),
		Usage:            reply.Usage,
	})
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathChatID(w, r)
	if !ok {
		return
	}
	if err := s.svc.ClearMessages(r.Context(), chatID); err != nil {
		writeNormalized(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathChatID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "chat id must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func toChatResponse(chat *store.Chat) chatResponse {
	return chatResponse{
		ID:        chat.ID.String(),
		Title:     chat.Title,
		ModelID:   chat.ModelID.String(),
		CreatedAt: chat.CreatedAt,
	}
}

func toMessageResponse(msg *store.Message) messageResponse {
	out := messageResponse{
		ID:        msg.ID.String(),
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	if msg.Metadata != "" {
		out.Metadata = json.RawMessage(msg.Metadata)
	}
	return out
}

func writeNormalized(w http.ResponseWriter, r *http.Request, err error) {
	n := Normalize(err)
	if n.Status >= 500 {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", n.Status).Msg("request rejected")
	}
	if n.RetryAfter != nil {
		w.Header().Set("Retry-After", strconv.Itoa(*n.RetryAfter))
	}
	writeError(w, r, n.Status, n.Message, n.Details)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, details map[string]any) {
	writeJSON(w, status, APIError{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
		Details:   details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
