package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dockhand/dockhand-backend/internal/auth"
	"github.com/dockhand/dockhand-backend/internal/config"
	"github.com/dockhand/dockhand-backend/internal/docker"
	"github.com/dockhand/dockhand-backend/internal/models"
	"github.com/dockhand/dockhand-backend/internal/pkg/metrics"
	"github.com/dockhand/dockhand-backend/internal/repository"
)

// UserStore resolves a verified email to a stored identity.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Auditor records session lifecycle events. May be nil.
type Auditor interface {
	CreateAuditLog(ctx context.Context, e *models.AuditLogEntry) error
}

// Handler is the session gateway: it accepts console connections on the
// upgrade path, authenticates the credential from the query parameters,
// authorizes read_console, and runs exactly one Session per connection.
type Handler struct {
	ctx      context.Context
	cfg      *config.Config
	verifier auth.Verifier
	users    UserStore
	oracle   PermissionChecker
	runtime  Runtime
	registry *StreamRegistry
	audit    Auditor
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the gateway. The registry is owned here so handles can be
// released independently of Session object lifetime.
func NewHandler(ctx context.Context, cfg *config.Config, verifier auth.Verifier, users UserStore, oracle PermissionChecker, runtime Runtime, audit Auditor, log *slog.Logger) *Handler {
	h := &Handler{
		ctx:      ctx,
		cfg:      cfg,
		verifier: verifier,
		users:    users,
		oracle:   oracle,
		runtime:  runtime,
		registry: NewStreamRegistry(),
		audit:    audit,
		log:      log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Registry exposes the handle registry for observability and tests.
func (h *Handler) Registry() *StreamRegistry {
	return h.registry
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // native clients send no Origin header
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeConsole handles GET /ws/console?containerId=...&token=...
// The connection is upgraded first and refused with a policy-violation close
// frame carrying the reason, so browser clients can surface it.
func (h *Handler) ServeConsole(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	containerID := r.URL.Query().Get("containerId")
	if containerID == "" {
		metrics.AuthFailuresTotal.WithLabelValues("authentication").Inc()
		h.refuse(conn, "container id is required")
		return
	}

	user, reason := h.authenticate(r)
	if user == nil {
		metrics.AuthFailuresTotal.WithLabelValues("authentication").Inc()
		h.log.Info("console connect refused", "container", containerID, "reason", reason)
		h.refuse(conn, reason)
		return
	}

	// read_console is checked once, here; write_console is re-checked per
	// message inside the session.
	ok, err := h.oracle.HasContainerPermission(r.Context(), user, containerID, models.ContainerPermReadConsole)
	if err != nil || !ok {
		metrics.AuthFailuresTotal.WithLabelValues("authorization").Inc()
		h.log.Info("console connect refused: missing read_console",
			"user", user.Email, "container", containerID, "error", err)
		h.refuse(conn, "not authorized to read console output")
		return
	}

	sessionID := uuid.New().String()
	h.auditSession(r, user, containerID, sessionID, "console_connect")
	h.log.Info("console session opened", "session", sessionID, "user", user.Email, "container", containerID)

	session := newSession(h.ctx, sessionID, user, containerID, conn, h.runtime, h.oracle, h.registry, h.log)
	session.Run()
	h.auditSession(r, user, containerID, sessionID, "console_close")
}

// authenticate verifies the query credential and resolves it to a stored
// identity. A store failure is an authentication failure: fail closed.
func (h *Handler) authenticate(r *http.Request) (*models.User, string) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil, "authentication required"
	}
	email, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, "authentication required"
	}
	user, err := h.users.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "user not found"
		}
		h.log.Error("user lookup failed", "error", err)
		return nil, "authentication required"
	}
	return user, ""
}

// refuse sends a policy-violation close frame with the reason and drops the
// connection.
func (h *Handler) refuse(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

func (h *Handler) auditSession(r *http.Request, user *models.User, containerID, sessionID, action string) {
	if h.audit == nil {
		return
	}
	entry := &models.AuditLogEntry{
		UserID:      &user.ID,
		Email:       user.Email,
		Action:      action,
		ContainerID: &containerID,
		SessionID:   &sessionID,
		RequestIP:   r.RemoteAddr,
	}
	if err := h.audit.CreateAuditLog(h.ctx, entry); err != nil {
		h.log.Warn("failed to write audit entry", "action", action, "error", err)
	}
}

// WrapRuntime adapts the docker client's concrete stream type to the
// session's Runtime interface.
func WrapRuntime(rt docker.Runtime) Runtime {
	return &dockerRuntime{rt: rt}
}

type dockerRuntime struct {
	rt docker.Runtime
}

func (d *dockerRuntime) TailLogs(ctx context.Context, id string) (Stream, error) {
	s, err := d.rt.TailLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *dockerRuntime) Exec(ctx context.Context, id, command string) (Stream, error) {
	s, err := d.rt.Exec(ctx, id, command)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *dockerRuntime) WriteStdin(ctx context.Context, id, input string) error {
	return d.rt.WriteStdin(ctx, id, input)
}
