package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teamhub/internal/middleware"
	"github.com/teamhub/internal/model"
	"github.com/teamhub/internal/notify"
)

type NotificationHandler struct {
	dispatcher *notify.Dispatcher
}

func NewNotificationHandler(dispatcher *notify.Dispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	notifs, err := h.dispatcher.List(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifs)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if err := h.dispatcher.MarkRead(r.Context(), id, userID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	n, err := h.dispatcher.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

type internalNotifyRequest struct {
	UserID    string  `json:"user_id" validate:"required"`
	Text      string  `json:"text" validate:"required"`
	ProjectID *string `json:"project_id"`
	Type      string  `json:"type" validate:"required"`
}

// InternalCreate takes notifications from sibling services (the file
// workflow reports processing results here). Reachable only through the
// internal-only route group.
func (h *NotificationHandler) InternalCreate(w http.ResponseWriter, r *http.Request) {
	var req internalNotifyRequest
	if !decodeValid(w, r, &req) {
		return
	}
	n, err := h.dispatcher.Notify(r.Context(), req.UserID, req.Text, req.ProjectID, model.NotificationType(req.Type))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}
