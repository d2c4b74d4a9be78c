package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dockhand/dockhand-backend/internal/models"
	"github.com/dockhand/dockhand-backend/internal/permissions"
	"github.com/dockhand/dockhand-backend/internal/pkg/validate"
	"github.com/dockhand/dockhand-backend/internal/repository"
)

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil || !h.requirePermission(w, r, user, models.PermManagePermissions) {
		return
	}
	users, err := h.repo.ListUsers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// DeleteUser handles DELETE /users/{id}. Grants cascade with the user row.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	editor, target := h.userManagementRequest(w, r)
	if editor == nil || target == nil {
		return
	}
	if h.oracle.IsAdmin(target) {
		respondError(w, http.StatusForbidden, "The administrator cannot be deleted")
		return
	}
	if err := h.repo.DeleteUser(r.Context(), target.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	h.auditAction(r, editor, "", "user_delete")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// GetUserPermissions handles GET /users/{id}/permissions.
func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	editor, target := h.userManagementRequest(w, r)
	if editor == nil || target == nil {
		return
	}
	perms, err := h.oracle.PermissionsFor(r.Context(), target)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load permissions")
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

type replaceGrantsRequest struct {
	PermissionIDs []string `json:"permissionIds"`
}

// ReplaceUserPermissions handles PUT /users/{id}/permissions: replace-all
// semantics, never a partial diff.
func (h *Handler) ReplaceUserPermissions(w http.ResponseWriter, r *http.Request) {
	editor, target := h.userManagementRequest(w, r)
	if editor == nil || target == nil {
		return
	}
	var req replaceGrantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.oracle.ReplaceGrants(r.Context(), target, req.PermissionIDs); err != nil {
		if errors.Is(err, permissions.ErrAdminImmutable) {
			respondError(w, http.StatusForbidden, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to replace grants")
		return
	}
	h.auditAction(r, editor, "", "grants_replace")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// GetUserContainerPermissions handles GET /users/{id}/containers/{containerId}/permissions.
func (h *Handler) GetUserContainerPermissions(w http.ResponseWriter, r *http.Request) {
	editor, target := h.userManagementRequest(w, r)
	if editor == nil || target == nil {
		return
	}
	containerID := mux.Vars(r)["containerId"]
	if !validate.ContainerID(containerID) {
		respondError(w, http.StatusBadRequest, "Invalid container id")
		return
	}
	perms, err := h.oracle.ContainerPermissionsFor(r.Context(), target, containerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load permissions")
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

type replaceContainerGrantsResponse struct {
	Granted   int `json:"granted"`
	Requested int `json:"requested"`
}

// ReplaceUserContainerPermissions handles
// PUT /users/{id}/containers/{containerId}/permissions. A non-administrator
// editor is clamped to the permissions it holds itself on that container; the
// response reports how many of the requested grants were applied.
func (h *Handler) ReplaceUserContainerPermissions(w http.ResponseWriter, r *http.Request) {
	editor, target := h.userManagementRequest(w, r)
	if editor == nil || target == nil {
		return
	}
	containerID := mux.Vars(r)["containerId"]
	if !validate.ContainerID(containerID) {
		respondError(w, http.StatusBadRequest, "Invalid container id")
		return
	}
	var req replaceGrantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	granted, requested, err := h.oracle.ReplaceContainerGrants(r.Context(), editor, target, containerID, req.PermissionIDs)
	if err != nil {
		if errors.Is(err, permissions.ErrAdminImmutable) {
			respondError(w, http.StatusForbidden, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to replace grants")
		return
	}
	h.auditAction(r, editor, containerID, "container_grants_replace")
	respondJSON(w, http.StatusOK, replaceContainerGrantsResponse{Granted: granted, Requested: requested})
}

// ListPermissionCatalog handles GET /permissions.
func (h *Handler) ListPermissionCatalog(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil || !h.requirePermission(w, r, user, models.PermManagePermissions) {
		return
	}
	perms, err := h.repo.ListPermissions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list permissions")
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

// ListContainerPermissionCatalog handles GET /container-permissions.
func (h *Handler) ListContainerPermissionCatalog(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil || !h.requirePermission(w, r, user, models.PermManagePermissions) {
		return
	}
	perms, err := h.repo.ListContainerPermissions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list permissions")
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

// ListAuditLogs handles GET /audit.
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil || !h.requirePermission(w, r, user, models.PermManagePermissions) {
		return
	}
	entries, err := h.repo.ListAuditLogs(r.Context(), 200)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list audit logs")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// userManagementRequest authenticates the editor, requires
// manage_permissions, and resolves the target user from the path.
func (h *Handler) userManagementRequest(w http.ResponseWriter, r *http.Request) (editor, target *models.User) {
	editor = h.currentUser(w, r)
	if editor == nil {
		return nil, nil
	}
	if !h.requirePermission(w, r, editor, models.PermManagePermissions) {
		return nil, nil
	}
	id := mux.Vars(r)["id"]
	if !validate.UserID(id) {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return nil, nil
	}
	target, err := h.repo.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
		} else {
			respondError(w, http.StatusInternalServerError, "Failed to load user")
		}
		return nil, nil
	}
	return editor, target
}
