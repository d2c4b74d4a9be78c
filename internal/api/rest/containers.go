package rest

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dockhand/dockhand-backend/internal/docker"
	"github.com/dockhand/dockhand-backend/internal/models"
	"github.com/dockhand/dockhand-backend/internal/pkg/validate"
)

// ListContainers handles GET /containers.
func (h *Handler) ListContainers(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if !h.requirePermission(w, r, user, models.PermView) {
		return
	}

	containers, err := h.runtime.List(r.Context())
	if err != nil {
		h.respondRuntimeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, containers)
}

// GetContainer handles GET /containers/{id}.
func (h *Handler) GetContainer(w http.ResponseWriter, r *http.Request) {
	user, id := h.containerRequest(w, r)
	if user == nil {
		return
	}
	if !h.requireContainerAction(w, r, user, id, models.ContainerPermView, models.PermView) {
		return
	}

	container, err := h.runtime.Get(r.Context(), id)
	if err != nil {
		h.respondRuntimeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, container)
}

// StartContainer handles POST /containers/{id}/start.
func (h *Handler) StartContainer(w http.ResponseWriter, r *http.Request) {
	user, id := h.containerRequest(w, r)
	if user == nil {
		return
	}
	if !h.requireContainerAction(w, r, user, id, models.ContainerPermStart, models.PermStart) {
		return
	}

	if err := h.runtime.Start(r.Context(), id); err != nil {
		h.respondRuntimeError(w, err)
		return
	}
	h.auditAction(r, user, id, "container_start")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Container started"})
}

// StopContainer handles POST /containers/{id}/stop.
func (h *Handler) StopContainer(w http.ResponseWriter, r *http.Request) {
	user, id := h.containerRequest(w, r)
	if user == nil {
		return
	}
	if !h.requireContainerAction(w, r, user, id, models.ContainerPermStop, models.PermStop) {
		return
	}

	if err := h.runtime.Stop(r.Context(), id); err != nil {
		h.respondRuntimeError(w, err)
		return
	}
	h.auditAction(r, user, id, "container_stop")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Container stopped"})
}

// RestartContainer handles POST /containers/{id}/restart. Restart is
// stop-then-start, so without a container-scoped restart grant it requires
// both global permissions.
func (h *Handler) RestartContainer(w http.ResponseWriter, r *http.Request) {
	user, id := h.containerRequest(w, r)
	if user == nil {
		return
	}
	if !h.requireContainerAction(w, r, user, id, models.ContainerPermRestart, models.PermStop, models.PermStart) {
		return
	}

	if err := h.runtime.Restart(r.Context(), id); err != nil {
		h.respondRuntimeError(w, err)
		return
	}
	h.auditAction(r, user, id, "container_restart")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Container restarted"})
}

func (h *Handler) containerRequest(w http.ResponseWriter, r *http.Request) (*models.User, string) {
	user := h.currentUser(w, r)
	if user == nil {
		return nil, ""
	}
	id := mux.Vars(r)["id"]
	if !validate.ContainerID(id) {
		respondError(w, http.StatusBadRequest, "Invalid container id")
		return nil, ""
	}
	return user, id
}

func (h *Handler) respondRuntimeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, docker.ErrNotFound):
		respondError(w, http.StatusNotFound, "Container not found")
	case errors.Is(err, docker.ErrRuntimeUnavailable):
		respondErrorWithCode(w, http.StatusServiceUnavailable, ErrCodeRuntimeDown, "Container runtime unavailable")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) auditAction(r *http.Request, user *models.User, containerID, action string) {
	entry := &models.AuditLogEntry{
		UserID:      &user.ID,
		Email:       user.Email,
		Action:      action,
		ContainerID: &containerID,
		RequestIP:   r.RemoteAddr,
	}
	if err := h.repo.CreateAuditLog(r.Context(), entry); err != nil {
		h.log.Warn("failed to write audit entry", "action", action, "error", err)
	}
}
