package groups

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-mdm/meridian-mdm/internal/permissions"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

type mockRepository struct {
	groupsByID  map[int64]PermissionGroup
	nextID      int64
	updateCalls int
	lastUpdate  UpdateGroupRequest
	updateError error
	catalog     map[int64]permissions.Permission
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		groupsByID: make(map[int64]PermissionGroup),
		nextID:     1,
		catalog:    make(map[int64]permissions.Permission),
	}
}

func (m *mockRepository) List(ctx context.Context, req ListGroupsRequest) ([]PermissionGroup, int, error) {
	var result []PermissionGroup
	for _, group := range m.groupsByID {
		result = append(result, group)
	}
	return result, len(result), nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (PermissionGroup, error) {
	group, ok := m.groupsByID[id]
	if !ok {
		return PermissionGroup{}, httpx.ErrNotFound
	}
	return group, nil
}

func (m *mockRepository) Create(ctx context.Context, group PermissionGroup, permissionIDs []int64) (PermissionGroup, error) {
	group.ID = m.nextID
	m.nextID++
	group.Permissions = m.resolve(permissionIDs)
	m.groupsByID[group.ID] = group
	return group, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, req UpdateGroupRequest) (PermissionGroup, error) {
	m.updateCalls++
	m.lastUpdate = req
	if m.updateError != nil {
		return PermissionGroup{}, m.updateError
	}
	group, ok := m.groupsByID[id]
	if !ok {
		return PermissionGroup{}, httpx.ErrNotFound
	}
	if req.Code != nil {
		group.Code = *req.Code
	}
	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.IsActive != nil {
		group.IsActive = *req.IsActive
	}
	if req.Permissions != nil {
		group.Permissions = m.resolve(*req.Permissions)
	}
	m.groupsByID[id] = group
	return group, nil
}

func (m *mockRepository) resolve(ids []int64) []permissions.Permission {
	perms := make([]permissions.Permission, 0, len(ids))
	for _, id := range ids {
		if perm, ok := m.catalog[id]; ok {
			perms = append(perms, perm)
		} else {
			perms = append(perms, permissions.Permission{ID: id})
		}
	}
	return perms
}

type mockAudit struct {
	logs []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockRefresher struct {
	calls int
}

func (m *mockRefresher) PermissionsChanged(ctx context.Context) error {
	m.calls++
	return nil
}

func seedGroup(repo *mockRepository, permissionIDs ...int64) PermissionGroup {
	group, _ := repo.Create(context.Background(), PermissionGroup{
		Code:        "ROLE_MANAGEMENT",
		Name:        "Role management",
		Description: "Everything needed to manage roles",
		IsActive:    true,
	}, permissionIDs)
	return group
}

func TestCreateRequiresCodeAndName(t *testing.T) {
	service := NewService(newMockRepository(), nil, nil)

	_, err := service.Create(context.Background(), CreateGroupRequest{Code: " ", Name: "x", Description: "d"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateMembershipDiffReportsCounts(t *testing.T) {
	repo := newMockRepository()
	group := seedGroup(repo, 1, 3)
	audit := &mockAudit{}
	service := NewService(repo, audit, &mockRefresher{})

	// Draft {p1,p2} against loaded {p1,p3}: one added, one removed.
	submitted := []int64{1, 2}
	_, changes, err := service.Update(context.Background(), group.ID, UpdateGroupRequest{
		Permissions: &submitted,
		Comment:     "swap p3 for p2",
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "Permissions: 1 added, 1 removed", changes[0].Summary)
	assert.NotContains(t, changes[0].Summary, "2")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "swap p3 for p2", audit.logs[0].Comment)
}

func TestUpdateWholeMembershipInOneCall(t *testing.T) {
	repo := newMockRepository()
	group := seedGroup(repo, 1, 2)
	service := NewService(repo, nil, nil)

	submitted := []int64{2, 3, 4}
	updated, _, err := service.Update(context.Background(), group.ID, UpdateGroupRequest{Permissions: &submitted})
	require.NoError(t, err)

	// One repository call carries the whole array.
	assert.Equal(t, 1, repo.updateCalls)
	require.NotNil(t, repo.lastUpdate.Permissions)
	assert.Equal(t, submitted, *repo.lastUpdate.Permissions)
	assert.Len(t, updated.Permissions, 3)
}

func TestUpdateUnchangedMembershipIsNoOp(t *testing.T) {
	repo := newMockRepository()
	group := seedGroup(repo, 1, 2)
	refresher := &mockRefresher{}
	service := NewService(repo, nil, refresher)

	same := []int64{1, 2}
	_, _, err := service.Update(context.Background(), group.ID, UpdateGroupRequest{Permissions: &same})
	assert.ErrorIs(t, err, shared.ErrNoChanges)
	assert.Zero(t, repo.updateCalls)
	assert.Zero(t, refresher.calls)
}

func TestUpdateScalarAndStateChanges(t *testing.T) {
	repo := newMockRepository()
	group := seedGroup(repo)
	service := NewService(repo, nil, nil)

	newName := "Role administration"
	inactive := false
	_, changes, err := service.Update(context.Background(), group.ID, UpdateGroupRequest{
		Name:     &newName,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "Name: Role management → Role administration", changes[0].Summary)
	assert.Equal(t, "Status: Active → Inactive", changes[1].Summary)
}

func TestUpdateFailureSurfacesAndSkipsAudit(t *testing.T) {
	repo := newMockRepository()
	group := seedGroup(repo)
	repo.updateError = httpx.ErrDuplicate
	audit := &mockAudit{}
	service := NewService(repo, audit, nil)

	newCode := "TAKEN"
	_, _, err := service.Update(context.Background(), group.ID, UpdateGroupRequest{Code: &newCode})
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
	assert.Empty(t, audit.logs)
}
