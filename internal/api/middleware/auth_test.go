package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockhand/dockhand-backend/internal/auth"
	"github.com/dockhand/dockhand-backend/internal/config"
	"github.com/dockhand/dockhand-backend/internal/models"
	"github.com/dockhand/dockhand-backend/internal/repository"
	"github.com/dockhand/dockhand-backend/migrations"
)

func setupAuthTest(t *testing.T) (*config.Config, *repository.SQLiteRepository, *models.User) {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	migrationSQL, err := migrations.FS.ReadFile("001_initial_schema.sql")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(string(migrationSQL)))

	user := &models.User{Email: "alice@example.com", Name: "Alice"}
	require.NoError(t, repo.CreateUser(context.Background(), user))

	cfg := &config.Config{AuthJWTSecret: "test-secret"}
	return cfg, repo, user
}

// echoUser reports whether the middleware resolved an identity.
func echoUser() (http.Handler, *bool, **models.User) {
	called := new(bool)
	seen := new(*models.User)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*seen = auth.UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, called, seen
}

func TestAuthResolvesUser(t *testing.T) {
	cfg, repo, user := setupAuthTest(t)
	token, err := auth.IssueAccessToken(cfg.AuthJWTSecret, user.ID, user.Email, user.Name)
	require.NoError(t, err)

	next, called, seen := echoUser()
	handler := Auth(cfg, repo)(next)

	req := httptest.NewRequest("GET", "/api/v1/containers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *called)
	require.NotNil(t, *seen)
	assert.Equal(t, user.ID, (*seen).ID)
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	cfg, repo, user := setupAuthTest(t)
	token, err := auth.IssueAccessToken(cfg.AuthJWTSecret, user.ID, user.Email, user.Name)
	require.NoError(t, err)

	next, called, _ := echoUser()
	handler := Auth(cfg, repo)(next)

	req := httptest.NewRequest("GET", "/api/v1/containers?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *called)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	cfg, repo, _ := setupAuthTest(t)
	next, called, _ := echoUser()
	handler := Auth(cfg, repo)(next)

	req := httptest.NewRequest("GET", "/api/v1/containers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	cfg, repo, _ := setupAuthTest(t)
	next, called, _ := echoUser()
	handler := Auth(cfg, repo)(next)

	req := httptest.NewRequest("GET", "/api/v1/containers", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
}

func TestAuthRejectsUnknownUser(t *testing.T) {
	cfg, repo, _ := setupAuthTest(t)
	token, err := auth.IssueAccessToken(cfg.AuthJWTSecret, "u-ghost", "ghost@example.com", "")
	require.NoError(t, err)

	next, called, _ := echoUser()
	handler := Auth(cfg, repo)(next)

	req := httptest.NewRequest("GET", "/api/v1/containers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
}

func TestAuthSkipsPublicPaths(t *testing.T) {
	cfg, repo, _ := setupAuthTest(t)
	next, called, _ := echoUser()
	handler := Auth(cfg, repo)(next)

	for _, path := range []string{"/health", "/metrics", "/api/v1/auth/signin", "/ws/console"} {
		*called = false
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.True(t, *called, "path %s should bypass auth", path)
	}
}
