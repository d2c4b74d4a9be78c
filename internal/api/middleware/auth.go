package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dockhand/dockhand-backend/internal/auth"
	"github.com/dockhand/dockhand-backend/internal/config"
	"github.com/dockhand/dockhand-backend/internal/pkg/metrics"
	"github.com/dockhand/dockhand-backend/internal/repository"
)

// Auth returns middleware that validates the bearer token and resolves the
// authenticated user into the request context. The console endpoint performs
// its own authentication inside the upgraded connection and is skipped here.
func Auth(cfg *config.Config, repo *repository.SQLiteRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/metrics" ||
				path == "/api/v1/auth/signin" || path == "/ws/console" {
				next.ServeHTTP(w, r)
				return
			}
			token := extractBearer(r)
			if token == "" {
				metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
				unauthorized(w, "Authentication required")
				return
			}
			claims, err := auth.ValidateToken(cfg.AuthJWTSecret, token)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, auth.ErrExpiredToken) {
					reason = "expired_token"
				}
				metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
				unauthorized(w, "Invalid or expired token")
				return
			}
			// Permission checks key off the stored user, never token fields.
			user, err := repo.GetUserByEmail(r.Context(), claims.Email)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					metrics.AuthFailuresTotal.WithLabelValues("unknown_user").Inc()
					unauthorized(w, "User not found")
					return
				}
				metrics.AuthFailuresTotal.WithLabelValues("store_error").Inc()
				unauthorized(w, "Authentication required")
				return
			}
			ctx := auth.WithClaims(r.Context(), claims)
			ctx = auth.WithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

func extractBearer(r *http.Request) string {
	s := r.Header.Get("Authorization")
	if s == "" {
		return r.URL.Query().Get("token")
	}
	const prefix = "Bearer "
	if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return strings.TrimSpace(s[len(prefix):])
	}
	return ""
}
