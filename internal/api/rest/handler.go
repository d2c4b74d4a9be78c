package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dockhand/dockhand-backend/internal/auth"
	"github.com/dockhand/dockhand-backend/internal/auth/oidc"
	"github.com/dockhand/dockhand-backend/internal/config"
	"github.com/dockhand/dockhand-backend/internal/docker"
	"github.com/dockhand/dockhand-backend/internal/models"
	"github.com/dockhand/dockhand-backend/internal/permissions"
	"github.com/dockhand/dockhand-backend/internal/repository"
)

// SignInVerifier validates an upstream identity-provider token presented at
// sign-in. Satisfied by oidc.Provider.
type SignInVerifier interface {
	VerifyIDToken(ctx context.Context, rawToken string) (*oidc.Profile, error)
}

// Handler carries the REST surface's collaborators.
type Handler struct {
	cfg     *config.Config
	repo    *repository.SQLiteRepository
	oracle  *permissions.Oracle
	runtime docker.Runtime
	signin  SignInVerifier
	log     *slog.Logger
}

// NewHandler builds the REST handler. signin may be nil, which disables the
// sign-in endpoint (tokens must then be issued out of band).
func NewHandler(cfg *config.Config, repo *repository.SQLiteRepository, oracle *permissions.Oracle, runtime docker.Runtime, signin SignInVerifier, log *slog.Logger) *Handler {
	return &Handler{cfg: cfg, repo: repo, oracle: oracle, runtime: runtime, signin: signin, log: log}
}

// SetupRoutes registers every REST route on the given (already authenticated)
// subrouter.
func SetupRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/auth/signin", h.SignIn).Methods("POST")
	r.HandleFunc("/me", h.Me).Methods("GET")

	r.HandleFunc("/containers", h.ListContainers).Methods("GET")
	r.HandleFunc("/containers/{id}", h.GetContainer).Methods("GET")
	r.HandleFunc("/containers/{id}/start", h.StartContainer).Methods("POST")
	r.HandleFunc("/containers/{id}/stop", h.StopContainer).Methods("POST")
	r.HandleFunc("/containers/{id}/restart", h.RestartContainer).Methods("POST")

	r.HandleFunc("/users", h.ListUsers).Methods("GET")
	r.HandleFunc("/users/{id}", h.DeleteUser).Methods("DELETE")
	r.HandleFunc("/users/{id}/permissions", h.GetUserPermissions).Methods("GET")
	r.HandleFunc("/users/{id}/permissions", h.ReplaceUserPermissions).Methods("PUT")
	r.HandleFunc("/users/{id}/containers/{containerId}/permissions", h.GetUserContainerPermissions).Methods("GET")
	r.HandleFunc("/users/{id}/containers/{containerId}/permissions", h.ReplaceUserContainerPermissions).Methods("PUT")

	r.HandleFunc("/permissions", h.ListPermissionCatalog).Methods("GET")
	r.HandleFunc("/container-permissions", h.ListContainerPermissionCatalog).Methods("GET")

	r.HandleFunc("/audit", h.ListAuditLogs).Methods("GET")
}

// currentUser returns the resolved identity from the request context, or
// writes a 401 and returns nil.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
	}
	return user
}

// requirePermission checks a global permission for the current user, writing
// 403 on deny. Any oracle error counts as deny.
func (h *Handler) requirePermission(w http.ResponseWriter, r *http.Request, user *models.User, name string) bool {
	ok, err := h.oracle.HasPermission(r.Context(), user, name)
	if err != nil {
		h.log.Error("permission check failed, denying", "user", user.Email, "permission", name, "error", err)
	}
	if err != nil || !ok {
		respondError(w, http.StatusForbidden, "Access denied: permission "+name+" required")
		return false
	}
	return true
}

// requireContainerAction authorizes a lifecycle action on one container: a
// container-scoped grant of containerPerm suffices, otherwise every listed
// global permission must be held (restart requires stop and start).
func (h *Handler) requireContainerAction(w http.ResponseWriter, r *http.Request, user *models.User, containerID, containerPerm string, globalPerms ...string) bool {
	ok, err := h.oracle.HasContainerPermission(r.Context(), user, containerID, containerPerm)
	if err != nil {
		h.log.Error("container permission check failed, denying",
			"user", user.Email, "container", containerID, "permission", containerPerm, "error", err)
		respondError(w, http.StatusForbidden, "Access denied: permission "+containerPerm+" required")
		return false
	}
	if !ok {
		ok, err = h.oracle.HasAllPermissions(r.Context(), user, globalPerms...)
		if err != nil {
			h.log.Error("permission check failed, denying", "user", user.Email, "error", err)
		}
	}
	if !ok {
		respondError(w, http.StatusForbidden, "Access denied: permission "+containerPerm+" required")
		return false
	}
	return true
}
