package models

import "time"

// Global permission names. The catalog is seeded by migration and immutable at
// runtime; grants reference it by id.
const (
	PermView              = "view"
	PermStart             = "start"
	PermStop              = "stop"
	PermReadConsole       = "read_console"
	PermWriteConsole      = "write_console"
	PermManagePermissions = "manage_permissions"
)

// Container-scoped permission names, seeded independently of the global catalog.
const (
	ContainerPermView         = "view"
	ContainerPermStart        = "start"
	ContainerPermStop         = "stop"
	ContainerPermRestart      = "restart"
	ContainerPermReadConsole  = "read_console"
	ContainerPermWriteConsole = "write_console"
)

// Permission is one entry of the global permission catalog.
type Permission struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// ContainerPermission is one entry of the container-scoped permission catalog.
// Same shape as Permission but a separate catalog: container lifecycle actions
// include restart, and the two sets evolve independently.
type ContainerPermission struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Grant relates a user to a global permission. Unique per (user, permission);
// deleting the user cascades.
type Grant struct {
	UserID       string    `json:"user_id" db:"user_id"`
	PermissionID string    `json:"permission_id" db:"permission_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ContainerGrant relates a user to a container-scoped permission on one
// container. Container ids are opaque strings from the runtime; existence is
// not validated when granting, and grants whose permission has left the
// catalog are inert rather than errors.
type ContainerGrant struct {
	UserID       string    `json:"user_id" db:"user_id"`
	ContainerID  string    `json:"container_id" db:"container_id"`
	PermissionID string    `json:"permission_id" db:"container_permission_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
