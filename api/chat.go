package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/voyago/voyago/internal/chat"
	"github.com/voyago/voyago/internal/memory"
)

// maxChatBodyBytes caps the chat request body size.
const maxChatBodyBytes = 64 << 10 // 64 KiB

// ChatService runs one conversational turn. Satisfied by *chat.Chat.
type ChatService interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Response, error)
}

// HistoryReader reads session history. Satisfied by *memory.Store.
type HistoryReader interface {
	History(ctx context.Context, sessionID string) ([]memory.Message, error)
}

// ChatHandler handles the chat endpoints.
//
// Endpoints:
//   - POST /chat/                     - run one turn
//   - GET  /chat/history/{session_id} - read retained history
type ChatHandler struct {
	chat    ChatService
	history HistoryReader
	logger  *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(chatSvc ChatService, history HistoryReader, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chatSvc, history: history, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat/{$}", h.handleChat)
	mux.HandleFunc("GET /chat/history/{session_id}", h.handleHistory)
}

// ChatRequest is the POST /chat/ request body.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

// handleChat runs one conversational turn. Turn failures are reported
// as a structured error payload with HTTP 200; only a malformed HTTP
// request produces a non-200 status.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", h.logger)
		return
	}

	resp, err := h.chat.Handle(r.Context(), chat.Request{
		SessionID: req.SessionID,
		Question:  req.Question,
		TopK:      req.TopK,
	})
	if err != nil && !errors.Is(err, chat.ErrEmptyQuestion) {
		// Kind already logged by the orchestrator; the payload stays generic.
		h.logger.Debug("chat turn returned error result", "session_id", resp.SessionID)
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}

// HistoryResponse is the GET /chat/history/{session_id} response body.
type HistoryResponse struct {
	Status    string           `json:"status"`
	SessionID string           `json:"session_id"`
	History   []memory.Message `json:"history"`
}

// handleHistory returns the retained history for a session. Unknown
// sessions yield an empty history, not an error.
func (h *ChatHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	history, err := h.history.History(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("loading history", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "history_unavailable", "could not load history", h.logger)
		return
	}
	if history == nil {
		history = []memory.Message{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Status:    chat.StatusSuccess,
		SessionID: sessionID,
		History:   history,
	}, h.logger)
}
