package models

import "time"

// AuditLogEntry represents a single audit log record.
// Append-only: no UPDATE or DELETE on audit records.
type AuditLogEntry struct {
	ID          string    `json:"id" db:"id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	UserID      *string   `json:"user_id,omitempty" db:"user_id"`
	Email       string    `json:"email" db:"email"`
	Action      string    `json:"action" db:"action"`
	ContainerID *string   `json:"container_id,omitempty" db:"container_id"`
	Permission  *string   `json:"permission,omitempty" db:"permission"`
	SessionID   *string   `json:"session_id,omitempty" db:"session_id"`
	RequestIP   string    `json:"request_ip" db:"request_ip"`
	Details     string    `json:"details,omitempty" db:"details"`
}
