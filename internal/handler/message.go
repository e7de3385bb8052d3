package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teamhub/internal/chat"
	"github.com/teamhub/internal/middleware"
)

// MessageHandler exposes the chat REST surface. All semantics (authorization,
// pagination, viewing-marks-read) live in the chat service; this layer only
// translates HTTP.
type MessageHandler struct {
	chat *chat.Service
}

func NewMessageHandler(chatSvc *chat.Service) *MessageHandler {
	return &MessageHandler{chat: chatSvc}
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	userID := middleware.GetUserID(r.Context())

	var req sendMessageRequest
	if !decodeValid(w, r, &req) {
		return
	}

	m, err := h.chat.SendMessage(r.Context(), userID, projectID, req.Content)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	userID := middleware.GetUserID(r.Context())

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 0)

	result, err := h.chat.GetMessages(r.Context(), userID, projectID, page, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	userID := middleware.GetUserID(r.Context())

	if err := h.chat.MarkMessagesRead(r.Context(), userID, projectID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetUnreadCounts returns the per-project unread message counts for the
// requester, computed fresh from the receipt ledger.
func (h *MessageHandler) GetUnreadCounts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	counts, err := h.chat.GetUnreadCounts(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
