package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

type mockRepository struct {
	perms       map[int64]Permission
	nextID      int64
	updateCalls int
	updateError error
	lastUpdate  UpdatePermissionRequest
}

func newMockRepository() *mockRepository {
	return &mockRepository{perms: make(map[int64]Permission), nextID: 1}
}

func (m *mockRepository) List(ctx context.Context, req ListPermissionsRequest) ([]Permission, int, error) {
	var result []Permission
	for _, perm := range m.perms {
		result = append(result, perm)
	}
	return result, len(result), nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (Permission, error) {
	perm, ok := m.perms[id]
	if !ok {
		return Permission{}, httpx.ErrNotFound
	}
	return perm, nil
}

func (m *mockRepository) Create(ctx context.Context, perm Permission) (Permission, error) {
	for _, existing := range m.perms {
		if existing.Code == perm.Code {
			return Permission{}, httpx.ErrDuplicate
		}
	}
	perm.ID = m.nextID
	m.nextID++
	m.perms[perm.ID] = perm
	return perm, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, req UpdatePermissionRequest) (Permission, error) {
	m.updateCalls++
	m.lastUpdate = req
	if m.updateError != nil {
		return Permission{}, m.updateError
	}
	perm, ok := m.perms[id]
	if !ok {
		return Permission{}, httpx.ErrNotFound
	}
	if req.Code != nil {
		perm.Code = *req.Code
	}
	if req.Name != nil {
		perm.Name = *req.Name
	}
	if req.Description != nil {
		perm.Description = *req.Description
	}
	if req.IsActive != nil {
		perm.IsActive = *req.IsActive
	}
	m.perms[id] = perm
	return perm, nil
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

func seedPermission(repo *mockRepository) Permission {
	perm, _ := repo.Create(context.Background(), Permission{
		Code:        "ROLES_UPDATE",
		Name:        shared.LocalizedText{"en": "Update roles"},
		Description: shared.LocalizedText{"en": "Allows editing roles"},
		IsActive:    true,
	})
	return perm
}

func TestCreateRequiresCode(t *testing.T) {
	service := NewService(newMockRepository(), nil, nil, "en")

	_, err := service.Create(context.Background(), CreatePermissionRequest{
		Code: "   ",
		Name: shared.LocalizedText{"en": "x"},
	})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateDuplicateCode(t *testing.T) {
	repo := newMockRepository()
	seedPermission(repo)
	service := NewService(repo, nil, nil, "en")

	_, err := service.Create(context.Background(), CreatePermissionRequest{
		Code:        "ROLES_UPDATE",
		Name:        shared.LocalizedText{"en": "dup"},
		Description: shared.LocalizedText{"en": "dup"},
	})
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestUpdateEmptyDiffSkipsWrite(t *testing.T) {
	repo := newMockRepository()
	perm := seedPermission(repo)
	audit := &mockAudit{}
	refresher := &mockRefresher{}
	service := NewService(repo, audit, refresher, "en")

	sameCode := perm.Code
	_, _, err := service.Update(context.Background(), perm.ID, UpdatePermissionRequest{Code: &sameCode})

	assert.ErrorIs(t, err, shared.ErrNoChanges)
	assert.Zero(t, repo.updateCalls)
	assert.Empty(t, audit.logs)
	assert.Zero(t, refresher.calls)
}

func TestUpdatePersistsChangedFieldsOnly(t *testing.T) {
	repo := newMockRepository()
	perm := seedPermission(repo)
	audit := &mockAudit{}
	service := NewService(repo, audit, &mockRefresher{}, "en")

	newCode := "ROLES_EDIT"
	sameActive := true
	updated, changes, err := service.Update(context.Background(), perm.ID, UpdatePermissionRequest{
		Code:     &newCode,
		IsActive: &sameActive,
		Comment:  "align naming",
	})
	require.NoError(t, err)
	assert.Equal(t, "ROLES_EDIT", updated.Code)

	require.Len(t, changes, 1)
	assert.Equal(t, "Code: ROLES_UPDATE → ROLES_EDIT", changes[0].Summary)

	// The persisted payload carries only the changed field.
	assert.NotNil(t, repo.lastUpdate.Code)
	assert.Nil(t, repo.lastUpdate.IsActive)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "align naming", audit.logs[0].Comment)
	assert.Equal(t, []string{"Code: ROLES_UPDATE → ROLES_EDIT"}, audit.logs[0].Changes)
}

func TestUpdateStateChangeUsesLabels(t *testing.T) {
	repo := newMockRepository()
	perm := seedPermission(repo)
	service := NewService(repo, nil, nil, "en")

	inactive := false
	_, changes, err := service.Update(context.Background(), perm.ID, UpdatePermissionRequest{IsActive: &inactive})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "Status: Active → Inactive", changes[0].Summary)
}

func TestUpdateEmptyCommentAccepted(t *testing.T) {
	repo := newMockRepository()
	perm := seedPermission(repo)
	service := NewService(repo, nil, nil, "en")

	newCode := "ROLES_MANAGE"
	_, _, err := service.Update(context.Background(), perm.ID, UpdatePermissionRequest{Code: &newCode, Comment: ""})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.updateCalls)
}

func TestUpdateTranslationOnlyChangeIsDetected(t *testing.T) {
	repo := newMockRepository()
	perm := seedPermission(repo)
	service := NewService(repo, nil, nil, "en")

	name := shared.LocalizedText{"en": "Update roles", "tr": "Rolleri güncelle"}
	_, changes, err := service.Update(context.Background(), perm.ID, UpdatePermissionRequest{Name: &name})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "Name translations: 1 added, 0 removed", changes[0].Summary)
}

func TestUpdateRepositoryFailureSurfaces(t *testing.T) {
	repo := newMockRepository()
	perm := seedPermission(repo)
	repo.updateError = httpx.ErrDuplicate
	service := NewService(repo, nil, nil, "en")

	newCode := "TAKEN_CODE"
	_, _, err := service.Update(context.Background(), perm.ID, UpdatePermissionRequest{Code: &newCode})
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}
