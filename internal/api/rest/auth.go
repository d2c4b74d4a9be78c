package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dockhand/dockhand-backend/internal/auth"
	"github.com/dockhand/dockhand-backend/internal/models"
	"github.com/dockhand/dockhand-backend/internal/repository"
)

type signInRequest struct {
	Token string `json:"token"`
}

type signInResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// SignIn handles POST /auth/signin. The body carries an upstream ID token;
// after verification the user is found or created by email and receives a
// local access token for subsequent requests and console sessions.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	if h.signin == nil {
		respondError(w, http.StatusNotImplemented, "Sign-in is not configured")
		return
	}

	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	profile, err := h.signin.VerifyIDToken(r.Context(), req.Token)
	if err != nil {
		h.log.Info("sign-in rejected", "error", err)
		respondError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	user, err := h.repo.GetUserByEmail(r.Context(), profile.Email)
	if errors.Is(err, repository.ErrNotFound) {
		user = &models.User{
			ID:      profile.Subject,
			Email:   profile.Email,
			Name:    profile.Name,
			Picture: profile.Picture,
		}
		if err = h.repo.CreateUser(r.Context(), user); err == nil {
			h.log.Info("user created on first sign-in", "user", user.Email)
		}
	}
	if err != nil {
		h.log.Error("sign-in user lookup failed", "error", err)
		respondError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	token, err := auth.IssueAccessToken(h.cfg.AuthJWTSecret, user.ID, user.Email, user.Name)
	if err != nil {
		h.log.Error("failed to issue access token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, signInResponse{User: user, Token: token})
}

type meResponse struct {
	User        *models.User        `json:"user"`
	Admin       bool                `json:"admin"`
	Permissions []models.Permission `json:"permissions"`
}

// Me handles GET /me: the current identity and its effective global
// permissions (the administrator sees the full catalog).
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	perms, err := h.oracle.PermissionsFor(r.Context(), user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load permissions")
		return
	}
	respondJSON(w, http.StatusOK, meResponse{User: user, Admin: h.oracle.IsAdmin(user), Permissions: perms})
}
