// Package permissions implements the authorization policy for the dashboard.
// Every permission check in the system goes through the Oracle so the
// administrator override is applied in exactly one place.
package permissions

import (
	"context"
	"errors"
	"strings"

	"github.com/dockhand/dockhand-backend/internal/models"
)

// ErrAdminImmutable is returned when a caller tries to edit the administrator's
// own grants. The admin's capabilities are a standing override, not stored rows.
var ErrAdminImmutable = errors.New("administrator grants cannot be modified")

// Store is the persistence surface the Oracle needs. Implemented by
// repository.SQLiteRepository. Any store error propagates to the caller, who
// must fail closed.
type Store interface {
	HasGrant(ctx context.Context, userID, permissionName string) (bool, error)
	HasContainerGrant(ctx context.Context, userID, containerID, permissionName string) (bool, error)
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	ListContainerPermissions(ctx context.Context) ([]models.ContainerPermission, error)
	PermissionsForUser(ctx context.Context, userID string) ([]models.Permission, error)
	ContainerPermissionsForUser(ctx context.Context, userID, containerID string) ([]models.ContainerPermission, error)
	ContainerPermissionsByIDs(ctx context.Context, ids []string) ([]models.ContainerPermission, error)
	ReplaceUserPermissions(ctx context.Context, userID string, permissionIDs []string) error
	ReplaceUserContainerPermissions(ctx context.Context, userID, containerID string, permissionIDs []string) error
}

// Oracle answers "does this user hold this permission" questions and performs
// grant replacement with the delegation rule.
type Oracle struct {
	store      Store
	adminEmail string
}

// NewOracle builds an Oracle over the given store. adminEmail identifies the
// administrator; empty means no override identity exists.
func NewOracle(store Store, adminEmail string) *Oracle {
	return &Oracle{store: store, adminEmail: adminEmail}
}

// IsAdmin reports whether the user is the configured administrator.
func (o *Oracle) IsAdmin(user *models.User) bool {
	if user == nil || o.adminEmail == "" {
		return false
	}
	return strings.EqualFold(user.Email, o.adminEmail)
}

// HasPermission reports whether the user holds the named global permission.
// The administrator satisfies every check regardless of stored grants.
func (o *Oracle) HasPermission(ctx context.Context, user *models.User, name string) (bool, error) {
	if o.IsAdmin(user) {
		return true, nil
	}
	if user == nil {
		return false, nil
	}
	return o.store.HasGrant(ctx, user.ID, name)
}

// HasAllPermissions is the conjunction over names; used where an action
// semantically requires several permissions (restart needs stop and start).
func (o *Oracle) HasAllPermissions(ctx context.Context, user *models.User, names ...string) (bool, error) {
	for _, name := range names {
		ok, err := o.HasPermission(ctx, user, name)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// HasContainerPermission reports whether the user holds the named permission
// on exactly that container.
func (o *Oracle) HasContainerPermission(ctx context.Context, user *models.User, containerID, name string) (bool, error) {
	if o.IsAdmin(user) {
		return true, nil
	}
	if user == nil {
		return false, nil
	}
	return o.store.HasContainerGrant(ctx, user.ID, containerID, name)
}

// PermissionsFor returns the user's effective global permissions. The
// administrator receives the full catalog, not an enumeration of stored rows.
func (o *Oracle) PermissionsFor(ctx context.Context, user *models.User) ([]models.Permission, error) {
	if o.IsAdmin(user) {
		return o.store.ListPermissions(ctx)
	}
	return o.store.PermissionsForUser(ctx, user.ID)
}

// ContainerPermissionsFor returns the user's effective permissions on one
// container; full catalog for the administrator.
func (o *Oracle) ContainerPermissionsFor(ctx context.Context, user *models.User, containerID string) ([]models.ContainerPermission, error) {
	if o.IsAdmin(user) {
		return o.store.ListContainerPermissions(ctx)
	}
	return o.store.ContainerPermissionsForUser(ctx, user.ID, containerID)
}

// ReplaceGrants atomically replaces the target's global grants with the given
// catalog ids. The administrator's grants are immutable.
func (o *Oracle) ReplaceGrants(ctx context.Context, target *models.User, permissionIDs []string) error {
	if o.IsAdmin(target) {
		return ErrAdminImmutable
	}
	return o.store.ReplaceUserPermissions(ctx, target.ID, permissionIDs)
}

// ReplaceContainerGrants atomically replaces the target's grants on one
// container. A non-administrator editor can only grant permissions it itself
// holds on that container: requested permissions outside the editor's scope
// are silently dropped, and the granted/requested counts expose the clamp to
// the caller instead of failing the whole operation.
func (o *Oracle) ReplaceContainerGrants(ctx context.Context, editor, target *models.User, containerID string, permissionIDs []string) (granted, requested int, err error) {
	if o.IsAdmin(target) {
		return 0, len(permissionIDs), ErrAdminImmutable
	}

	requested = len(permissionIDs)
	allowed := permissionIDs

	if !o.IsAdmin(editor) {
		held, err := o.store.ContainerPermissionsForUser(ctx, editor.ID, containerID)
		if err != nil {
			return 0, requested, err
		}
		heldNames := make(map[string]bool, len(held))
		for _, p := range held {
			heldNames[p.Name] = true
		}

		// Requested ids that are not in the catalog resolve to nothing and are
		// dropped alongside out-of-scope ones.
		requestedPerms, err := o.store.ContainerPermissionsByIDs(ctx, permissionIDs)
		if err != nil {
			return 0, requested, err
		}
		allowed = make([]string, 0, len(requestedPerms))
		for _, p := range requestedPerms {
			if heldNames[p.Name] {
				allowed = append(allowed, p.ID)
			}
		}
	}

	if err := o.store.ReplaceUserContainerPermissions(ctx, target.ID, containerID, allowed); err != nil {
		return 0, requested, err
	}
	return len(allowed), requested, nil
}
