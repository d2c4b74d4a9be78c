package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dockhand/dockhand-backend/internal/models"
)

// CreateAuditLog appends one audit record. Audit rows are never updated or
// deleted by application code.
func (r *SQLiteRepository) CreateAuditLog(ctx context.Context, e *models.AuditLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	query := `
		INSERT INTO audit_logs (id, timestamp, user_id, email, action, container_id, permission, session_id, request_ip, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Timestamp, e.UserID, e.Email, e.Action, e.ContainerID, e.Permission, e.SessionID, e.RequestIP, e.Details)
	return err
}

// ListAuditLogs returns the most recent audit records, newest first.
func (r *SQLiteRepository) ListAuditLogs(ctx context.Context, limit int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []*models.AuditLogEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM audit_logs ORDER BY timestamp DESC LIMIT ?`, limit)
	return entries, err
}
