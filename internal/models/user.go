package models

import "time"

// User represents a dashboard identity. Users are created on first successful
// sign-in; the email-to-id binding is immutable afterwards (id is the stable key).
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name,omitempty" db:"name"`
	Picture   string    `json:"picture,omitempty" db:"picture"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
