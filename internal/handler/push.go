package handler

import (
	"net/http"
	"time"

	"github.com/teamhub/internal/middleware"
	"github.com/teamhub/internal/model"
	"github.com/teamhub/internal/repository"
)

// PushHandler manages web push subscriptions for the authenticated user.
type PushHandler struct {
	subs      *repository.PushSubscriptionRepository
	publicKey string
}

func NewPushHandler(subs *repository.PushSubscriptionRepository, publicKey string) *PushHandler {
	return &PushHandler{subs: subs, publicKey: publicKey}
}

// PublicKey returns the VAPID public key the browser needs for
// PushManager.subscribe.
func (h *PushHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

type subscribeRequest struct {
	Subscription struct {
		Endpoint string `json:"endpoint" validate:"required,url"`
		Keys     struct {
			P256dh string `json:"p256dh" validate:"required"`
			Auth   string `json:"auth" validate:"required"`
		} `json:"keys"`
	} `json:"subscription"`
}

// Subscribe stores the browser's push subscription for the current user.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req subscribeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	s := &model.PushSubscription{
		UserID:    userID,
		Endpoint:  req.Subscription.Endpoint,
		P256dh:    req.Subscription.Keys.P256dh,
		Auth:      req.Subscription.Keys.Auth,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.subs.Save(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// Unsubscribe drops one of the user's subscriptions by endpoint.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req unsubscribeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.subs.Delete(r.Context(), userID, req.Endpoint); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
