package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/middleware"
	"github.com/teamhub/internal/model"
	"github.com/teamhub/internal/notify"
	"github.com/teamhub/internal/repository"
)

type ProjectHandler struct {
	projects   *repository.ProjectRepository
	dispatcher *notify.Dispatcher
}

func NewProjectHandler(projects *repository.ProjectRepository, dispatcher *notify.Dispatcher) *ProjectHandler {
	return &ProjectHandler{projects: projects, dispatcher: dispatcher}
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// Create makes a project with the requester as its owner.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createProjectRequest
	if !decodeValid(w, r, &req) {
		return
	}

	p := &model.Project{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.projects.Create(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	owner := &model.ProjectMember{ProjectID: p.ID, UserID: userID, Role: model.RoleOwner, JoinedAt: p.CreatedAt}
	if err := h.projects.AddMember(r.Context(), owner); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add owner")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// List returns the projects the requester belongs to.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projects, err := h.projects.GetUserProjects(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.projects.IsMember(r.Context(), projectID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a project member")
		return
	}
	p, err := h.projects.GetByID(r.Context(), projectID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type addMemberRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role"`
}

// AddMember invites a user into the project. Owner/admin only. The invited
// user gets an invitation notification.
func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	requesterID := middleware.GetUserID(r.Context())

	var req addMemberRequest
	if !decodeValid(w, r, &req) {
		return
	}
	role := model.MemberRole(req.Role)
	if req.Role == "" {
		role = model.RoleMember
	}
	if !model.ValidMemberRole(role) || role == model.RoleOwner {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	p, ok := h.requireManager(w, r, projectID, requesterID)
	if !ok {
		return
	}

	m := &model.ProjectMember{ProjectID: projectID, UserID: req.UserID, Role: role, JoinedAt: time.Now().UTC()}
	if err := h.projects.AddMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	text := fmt.Sprintf("You were added to project %q", p.Name)
	if _, err := h.dispatcher.Notify(r.Context(), req.UserID, text, &projectID, model.NotificationInvitation); err != nil {
		// Membership is already in place; the missed notification is
		// logged, not surfaced.
		logger.Errorf("project add member: notify user=%s: %v", req.UserID, err)
	}
	writeJSON(w, http.StatusCreated, m)
}

// RemoveMember removes a user from the project. A member may leave on their
// own; removing someone else takes owner/admin. The owner cannot be removed.
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	targetID := chi.URLParam(r, "userId")
	requesterID := middleware.GetUserID(r.Context())

	targetRole, err := h.projects.GetMemberRole(r.Context(), projectID, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check member")
		return
	}
	if targetRole == model.RoleOwner {
		writeError(w, http.StatusForbidden, "cannot remove the project owner")
		return
	}
	if targetID != requesterID {
		if _, ok := h.requireManager(w, r, projectID, requesterID); !ok {
			return
		}
	}
	if err := h.projects.RemoveMember(r.Context(), projectID, targetID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// UpdateRole changes a member's role. Owner/admin only; the owner's own role
// is immutable. The affected user gets a role-change notification.
func (h *ProjectHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	targetID := chi.URLParam(r, "userId")
	requesterID := middleware.GetUserID(r.Context())

	var req updateRoleRequest
	if !decodeValid(w, r, &req) {
		return
	}
	role := model.MemberRole(req.Role)
	if !model.ValidMemberRole(role) || role == model.RoleOwner {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	p, ok := h.requireManager(w, r, projectID, requesterID)
	if !ok {
		return
	}

	targetRole, err := h.projects.GetMemberRole(r.Context(), projectID, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check member")
		return
	}
	if targetRole == model.RoleOwner {
		writeError(w, http.StatusForbidden, "cannot change the owner's role")
		return
	}

	if err := h.projects.UpdateMemberRole(r.Context(), projectID, targetID, role); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}

	text := fmt.Sprintf("Your role in project %q is now %s", p.Name, role)
	if _, err := h.dispatcher.Notify(r.Context(), targetID, text, &projectID, model.NotificationRoleChange); err != nil {
		logger.Errorf("project update role: notify user=%s: %v", targetID, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireManager checks that the requester is the project's owner or an
// admin; on failure it writes the error response and returns ok=false.
func (h *ProjectHandler) requireManager(w http.ResponseWriter, r *http.Request, projectID, userID string) (*model.Project, bool) {
	p, err := h.projects.GetByID(r.Context(), projectID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return nil, false
	}
	role, err := h.projects.GetMemberRole(r.Context(), projectID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusForbidden, "not a project member")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return nil, false
	}
	if role != model.RoleOwner && role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "owner or admin role required")
		return nil, false
	}
	return p, true
}
