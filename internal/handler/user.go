package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/teamhub/internal/middleware"
	"github.com/teamhub/internal/model"
	"github.com/teamhub/internal/repository"
)

type UserHandler struct {
	users *repository.UserRepository
}

func NewUserHandler(users *repository.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the requester's own profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := h.users.GetByID(r.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Get returns another user's public profile.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.users.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user.ToPublic())
}

type internalUserRequest struct {
	ID        string `json:"id" validate:"required"`
	Username  string `json:"username" validate:"required,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	AvatarURL string `json:"avatar_url"`
}

// InternalUpsert syncs a user profile from the identity service. Reachable
// only through the internal-only route group.
func (h *UserHandler) InternalUpsert(w http.ResponseWriter, r *http.Request) {
	var req internalUserRequest
	if !decodeValid(w, r, &req) {
		return
	}
	u := &model.User{
		ID:        req.ID,
		Username:  req.Username,
		Email:     req.Email,
		AvatarURL: req.AvatarURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.users.Upsert(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
