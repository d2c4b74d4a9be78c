package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dockhand/dockhand-backend/internal/models"
)

// ListPermissions returns the global permission catalog.
func (r *SQLiteRepository) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	err := r.db.SelectContext(ctx, &perms, `SELECT * FROM permissions ORDER BY name ASC`)
	return perms, err
}

// ListContainerPermissions returns the container-scoped permission catalog.
func (r *SQLiteRepository) ListContainerPermissions(ctx context.Context) ([]models.ContainerPermission, error) {
	var perms []models.ContainerPermission
	err := r.db.SelectContext(ctx, &perms, `SELECT * FROM container_permissions ORDER BY name ASC`)
	return perms, err
}

// HasGrant reports whether the user holds the named global permission. The
// join against the catalog makes grants with a retired permission inert.
func (r *SQLiteRepository) HasGrant(ctx context.Context, userID, permissionName string) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = ? AND p.name = ?
	`
	if err := r.db.GetContext(ctx, &count, query, userID, permissionName); err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasContainerGrant reports whether the user holds the named permission on
// exactly that container.
func (r *SQLiteRepository) HasContainerGrant(ctx context.Context, userID, containerID, permissionName string) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM user_container_permissions ucp
		JOIN container_permissions cp ON cp.id = ucp.container_permission_id
		WHERE ucp.user_id = ? AND ucp.container_id = ? AND cp.name = ?
	`
	if err := r.db.GetContext(ctx, &count, query, userID, containerID, permissionName); err != nil {
		return false, err
	}
	return count > 0, nil
}

// PermissionsForUser returns the catalog entries the user is granted.
func (r *SQLiteRepository) PermissionsForUser(ctx context.Context, userID string) ([]models.Permission, error) {
	var perms []models.Permission
	query := `
		SELECT p.id, p.name FROM permissions p
		JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = ?
		ORDER BY p.name ASC
	`
	err := r.db.SelectContext(ctx, &perms, query, userID)
	return perms, err
}

// ContainerPermissionsForUser returns the container-scoped catalog entries the
// user is granted on the given container.
func (r *SQLiteRepository) ContainerPermissionsForUser(ctx context.Context, userID, containerID string) ([]models.ContainerPermission, error) {
	var perms []models.ContainerPermission
	query := `
		SELECT cp.id, cp.name FROM container_permissions cp
		JOIN user_container_permissions ucp ON ucp.container_permission_id = cp.id
		WHERE ucp.user_id = ? AND ucp.container_id = ?
		ORDER BY cp.name ASC
	`
	err := r.db.SelectContext(ctx, &perms, query, userID, containerID)
	return perms, err
}

// ContainerPermissionsByIDs resolves catalog ids to rows. Unknown ids are
// simply absent from the result.
func (r *SQLiteRepository) ContainerPermissionsByIDs(ctx context.Context, ids []string) ([]models.ContainerPermission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM container_permissions WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var perms []models.ContainerPermission
	err = r.db.SelectContext(ctx, &perms, r.db.Rebind(query), args...)
	return perms, err
}

// ReplaceUserPermissions atomically replaces every global grant of the user
// with the given catalog ids. Never a partial diff: all-or-nothing in one
// transaction.
func (r *SQLiteRepository) ReplaceUserPermissions(ctx context.Context, userID string, permissionIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_permissions WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_permissions (user_id, permission_id) VALUES (?, ?)`, userID, pid)
		if err != nil {
			return fmt.Errorf("failed to insert grant %s: %w", pid, err)
		}
	}
	return tx.Commit()
}

// ReplaceUserContainerPermissions atomically replaces every grant of the user
// on the given container with the given catalog ids.
func (r *SQLiteRepository) ReplaceUserContainerPermissions(ctx context.Context, userID, containerID string, permissionIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM user_container_permissions WHERE user_id = ? AND container_id = ?`, userID, containerID)
	if err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_container_permissions (user_id, container_id, container_permission_id) VALUES (?, ?, ?)`,
			userID, containerID, pid)
		if err != nil {
			return fmt.Errorf("failed to insert container grant %s: %w", pid, err)
		}
	}
	return tx.Commit()
}
