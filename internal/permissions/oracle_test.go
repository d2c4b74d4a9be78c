package permissions

import (
	"context"
	"errors"
	"testing"

	"github.com/dockhand/dockhand-backend/internal/models"
)

// fakeStore is an in-memory Store for oracle tests.
type fakeStore struct {
	catalog           []models.ContainerPermission
	grants            map[string]map[string]bool // userID -> permission name
	containerGrants   map[string]map[string]bool // userID|containerID -> permission name
	replacedIDs       []string
	replacedUser      string
	replacedContainer string
	failNext          error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		catalog: []models.ContainerPermission{
			{ID: "cperm-view", Name: models.ContainerPermView},
			{ID: "cperm-start", Name: models.ContainerPermStart},
			{ID: "cperm-stop", Name: models.ContainerPermStop},
			{ID: "cperm-restart", Name: models.ContainerPermRestart},
			{ID: "cperm-read-console", Name: models.ContainerPermReadConsole},
			{ID: "cperm-write-console", Name: models.ContainerPermWriteConsole},
		},
		grants:          map[string]map[string]bool{},
		containerGrants: map[string]map[string]bool{},
	}
}

func (f *fakeStore) grant(userID string, names ...string) {
	if f.grants[userID] == nil {
		f.grants[userID] = map[string]bool{}
	}
	for _, n := range names {
		f.grants[userID][n] = true
	}
}

func (f *fakeStore) grantContainer(userID, containerID string, names ...string) {
	key := userID + "|" + containerID
	if f.containerGrants[key] == nil {
		f.containerGrants[key] = map[string]bool{}
	}
	for _, n := range names {
		f.containerGrants[key][n] = true
	}
}

func (f *fakeStore) HasGrant(_ context.Context, userID, name string) (bool, error) {
	if f.failNext != nil {
		return false, f.failNext
	}
	return f.grants[userID][name], nil
}

func (f *fakeStore) HasContainerGrant(_ context.Context, userID, containerID, name string) (bool, error) {
	if f.failNext != nil {
		return false, f.failNext
	}
	return f.containerGrants[userID+"|"+containerID][name], nil
}

func (f *fakeStore) ListPermissions(context.Context) ([]models.Permission, error) {
	return []models.Permission{
		{ID: "perm-view", Name: models.PermView},
		{ID: "perm-start", Name: models.PermStart},
		{ID: "perm-stop", Name: models.PermStop},
		{ID: "perm-read-console", Name: models.PermReadConsole},
		{ID: "perm-write-console", Name: models.PermWriteConsole},
		{ID: "perm-manage-permissions", Name: models.PermManagePermissions},
	}, nil
}

func (f *fakeStore) ListContainerPermissions(context.Context) ([]models.ContainerPermission, error) {
	return f.catalog, nil
}

func (f *fakeStore) PermissionsForUser(_ context.Context, userID string) ([]models.Permission, error) {
	var out []models.Permission
	for name := range f.grants[userID] {
		out = append(out, models.Permission{ID: "perm-" + name, Name: name})
	}
	return out, nil
}

func (f *fakeStore) ContainerPermissionsForUser(_ context.Context, userID, containerID string) ([]models.ContainerPermission, error) {
	if f.failNext != nil {
		return nil, f.failNext
	}
	var out []models.ContainerPermission
	for _, p := range f.catalog {
		if f.containerGrants[userID+"|"+containerID][p.Name] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ContainerPermissionsByIDs(_ context.Context, ids []string) ([]models.ContainerPermission, error) {
	var out []models.ContainerPermission
	for _, p := range f.catalog {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ReplaceUserPermissions(_ context.Context, userID string, ids []string) error {
	f.replacedUser = userID
	f.replacedIDs = ids
	return nil
}

func (f *fakeStore) ReplaceUserContainerPermissions(_ context.Context, userID, containerID string, ids []string) error {
	f.replacedUser = userID
	f.replacedContainer = containerID
	f.replacedIDs = ids
	return nil
}

var (
	adminUser  = &models.User{ID: "u-admin", Email: "admin@example.com"}
	normalUser = &models.User{ID: "u-1", Email: "user@example.com"}
	targetUser = &models.User{ID: "u-2", Email: "target@example.com"}
)

func TestAdminPassesEveryCheck(t *testing.T) {
	store := newFakeStore()
	oracle := NewOracle(store, "admin@example.com")

	for _, name := range []string{models.ContainerPermView, models.ContainerPermWriteConsole, models.ContainerPermReadConsole} {
		ok, err := oracle.HasContainerPermission(context.Background(), adminUser, "c-any", name)
		if err != nil {
			t.Fatalf("HasContainerPermission(%s): %v", name, err)
		}
		if !ok {
			t.Errorf("admin denied %s; want allowed with zero stored grants", name)
		}
	}

	ok, err := oracle.HasPermission(context.Background(), adminUser, models.PermManagePermissions)
	if err != nil || !ok {
		t.Errorf("admin denied manage_permissions: ok=%v err=%v", ok, err)
	}
}

func TestAdminEmailCaseInsensitive(t *testing.T) {
	oracle := NewOracle(newFakeStore(), "Admin@Example.COM")
	if !oracle.IsAdmin(adminUser) {
		t.Error("admin comparison should be case-insensitive")
	}
}

func TestNonAdminRequiresStoredGrant(t *testing.T) {
	store := newFakeStore()
	store.grantContainer(normalUser.ID, "c-1", models.ContainerPermReadConsole)
	oracle := NewOracle(store, "admin@example.com")

	ok, err := oracle.HasContainerPermission(context.Background(), normalUser, "c-1", models.ContainerPermReadConsole)
	if err != nil || !ok {
		t.Errorf("granted read_console denied: ok=%v err=%v", ok, err)
	}

	// Same permission on a different container: denied.
	ok, err = oracle.HasContainerPermission(context.Background(), normalUser, "c-2", models.ContainerPermReadConsole)
	if err != nil {
		t.Fatalf("HasContainerPermission: %v", err)
	}
	if ok {
		t.Error("grant on c-1 leaked to c-2")
	}

	// Different permission on the same container: denied.
	ok, _ = oracle.HasContainerPermission(context.Background(), normalUser, "c-1", models.ContainerPermWriteConsole)
	if ok {
		t.Error("read_console grant satisfied a write_console check")
	}
}

func TestStoreErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.failNext = errors.New("disk error")
	oracle := NewOracle(store, "admin@example.com")

	ok, err := oracle.HasContainerPermission(context.Background(), normalUser, "c-1", models.ContainerPermView)
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
	if ok {
		t.Error("check reported allowed alongside an error")
	}
}

func TestAdminReceivesFullCatalog(t *testing.T) {
	store := newFakeStore()
	oracle := NewOracle(store, "admin@example.com")

	perms, err := oracle.ContainerPermissionsFor(context.Background(), adminUser, "c-1")
	if err != nil {
		t.Fatalf("ContainerPermissionsFor: %v", err)
	}
	if len(perms) != len(store.catalog) {
		t.Errorf("admin catalog size = %d, want %d", len(perms), len(store.catalog))
	}
}

func TestReplaceGrantsAdminImmutable(t *testing.T) {
	oracle := NewOracle(newFakeStore(), "admin@example.com")
	err := oracle.ReplaceGrants(context.Background(), adminUser, []string{"perm-view"})
	if !errors.Is(err, ErrAdminImmutable) {
		t.Errorf("ReplaceGrants on admin = %v, want ErrAdminImmutable", err)
	}
	_, _, err = oracle.ReplaceContainerGrants(context.Background(), normalUser, adminUser, "c-1", []string{"cperm-view"})
	if !errors.Is(err, ErrAdminImmutable) {
		t.Errorf("ReplaceContainerGrants on admin = %v, want ErrAdminImmutable", err)
	}
}

func TestDelegationClamp(t *testing.T) {
	store := newFakeStore()
	// Editor holds view and start on c-1 but not write_console.
	store.grantContainer(normalUser.ID, "c-1", models.ContainerPermView, models.ContainerPermStart)
	oracle := NewOracle(store, "admin@example.com")

	granted, requested, err := oracle.ReplaceContainerGrants(context.Background(), normalUser, targetUser, "c-1",
		[]string{"cperm-view", "cperm-start", "cperm-write-console"})
	if err != nil {
		t.Fatalf("ReplaceContainerGrants: %v", err)
	}
	if requested != 3 {
		t.Errorf("requested = %d, want 3", requested)
	}
	if granted != 2 {
		t.Errorf("granted = %d, want 2", granted)
	}
	if store.replacedUser != targetUser.ID || store.replacedContainer != "c-1" {
		t.Errorf("replacement applied to %s/%s, want %s/c-1", store.replacedUser, store.replacedContainer, targetUser.ID)
	}
	for _, id := range store.replacedIDs {
		if id == "cperm-write-console" {
			t.Error("clamp let through a permission the editor does not hold")
		}
	}
}

func TestDelegationUnknownIDsDropped(t *testing.T) {
	store := newFakeStore()
	store.grantContainer(normalUser.ID, "c-1", models.ContainerPermView)
	oracle := NewOracle(store, "admin@example.com")

	granted, requested, err := oracle.ReplaceContainerGrants(context.Background(), normalUser, targetUser, "c-1",
		[]string{"cperm-view", "cperm-bogus"})
	if err != nil {
		t.Fatalf("ReplaceContainerGrants: %v", err)
	}
	if requested != 2 || granted != 1 {
		t.Errorf("granted/requested = %d/%d, want 1/2", granted, requested)
	}
}

func TestAdminEditorNotClamped(t *testing.T) {
	store := newFakeStore()
	oracle := NewOracle(store, "admin@example.com")

	granted, requested, err := oracle.ReplaceContainerGrants(context.Background(), adminUser, targetUser, "c-1",
		[]string{"cperm-view", "cperm-write-console"})
	if err != nil {
		t.Fatalf("ReplaceContainerGrants: %v", err)
	}
	if granted != 2 || requested != 2 {
		t.Errorf("granted/requested = %d/%d, want 2/2", granted, requested)
	}
}

func TestNilUserDenied(t *testing.T) {
	oracle := NewOracle(newFakeStore(), "admin@example.com")
	ok, err := oracle.HasPermission(context.Background(), nil, models.PermView)
	if err != nil {
		t.Fatalf("HasPermission(nil): %v", err)
	}
	if ok {
		t.Error("nil user passed a permission check")
	}
}
