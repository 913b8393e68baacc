package users

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

type mockRepository struct {
	mu        sync.Mutex
	usersByID map[int64]User
	nextID    int64
	failSet   map[int64]error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		usersByID: make(map[int64]User),
		nextID:    1,
		failSet:   make(map[int64]error),
	}
}

func (m *mockRepository) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	var result []User
	for _, user := range m.usersByID {
		result = append(result, user)
	}
	return result, len(result), nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return User{}, httpx.ErrNotFound
	}
	return user, nil
}

func (m *mockRepository) GetByEmail(ctx context.Context, email string) (User, string, error) {
	for _, user := range m.usersByID {
		if user.Email == email {
			return user, "", nil
		}
	}
	return User{}, "", httpx.ErrNotFound
}

func (m *mockRepository) Create(ctx context.Context, user User, passwordHash string, roleID *int64) (User, error) {
	user.ID = m.nextID
	m.nextID++
	if roleID != nil {
		user.Role = &RoleRef{ID: *roleID}
	}
	m.usersByID[user.ID] = user
	return user, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, req UpdateUserRequest) (User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return User{}, httpx.ErrNotFound
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	m.usersByID[id] = user
	return user, nil
}

func (m *mockRepository) SetRole(ctx context.Context, userID int64, roleID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failSet[userID]; ok {
		return err
	}
	user, ok := m.usersByID[userID]
	if !ok {
		return httpx.ErrNotFound
	}
	if roleID == nil {
		user.Role = nil
	} else {
		user.Role = &RoleRef{ID: *roleID}
	}
	m.usersByID[userID] = user
	return nil
}

type mockAudit struct {
	logs []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockRefresher struct {
	mu     sync.Mutex
	global int
	users  []int64
}

func (m *mockRefresher) PermissionsChanged(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global++
	return nil
}

func (m *mockRefresher) UserPermissionsChanged(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, userID)
	return nil
}

func seedUsers(repo *mockRepository, n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		user, _ := repo.Create(context.Background(), User{
			Email:    fmt.Sprintf("user%d@meridian.test", i+1),
			Name:     fmt.Sprintf("User %d", i+1),
			IsActive: true,
		}, "x", nil)
		ids[i] = user.ID
	}
	return ids
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, &mockAudit{}, nil)

	user, err := service.Create(context.Background(), CreateUserRequest{
		Email:    "Ana@Meridian.Test",
		Name:     "Ana",
		Password: "long-enough-pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@meridian.test", user.Email)
	assert.True(t, user.IsActive)
}

func TestAssignRoleRefreshesOnlyThatUser(t *testing.T) {
	repo := newMockRepository()
	ids := seedUsers(repo, 2)
	refresher := &mockRefresher{}
	service := NewService(repo, &mockAudit{}, refresher)

	user, err := service.AssignRole(context.Background(), ids[0], AssignRoleRequest{RoleID: 7, Comment: "onboarding"})
	require.NoError(t, err)
	require.NotNil(t, user.Role)
	assert.Equal(t, int64(7), user.Role.ID)
	assert.Equal(t, []int64{ids[0]}, refresher.users)
	assert.Zero(t, refresher.global)
}

func TestRemoveRoleRequiresMatchingRole(t *testing.T) {
	repo := newMockRepository()
	ids := seedUsers(repo, 1)
	service := NewService(repo, nil, &mockRefresher{})

	_, err := service.AssignRole(context.Background(), ids[0], AssignRoleRequest{RoleID: 7})
	require.NoError(t, err)

	_, err = service.RemoveRole(context.Background(), ids[0], 99, "")
	assert.ErrorIs(t, err, httpx.ErrValidation)

	user, err := service.RemoveRole(context.Background(), ids[0], 7, "")
	require.NoError(t, err)
	assert.Nil(t, user.Role)
}

func TestRemoveRoleRecordsComment(t *testing.T) {
	repo := newMockRepository()
	ids := seedUsers(repo, 1)
	audit := &mockAudit{}
	service := NewService(repo, audit, &mockRefresher{})

	_, err := service.AssignRole(context.Background(), ids[0], AssignRoleRequest{RoleID: 7})
	require.NoError(t, err)

	_, err = service.RemoveRole(context.Background(), ids[0], 7, "offboarding")
	require.NoError(t, err)

	require.Len(t, audit.logs, 2)
	removal := audit.logs[1]
	assert.Equal(t, "user.remove_role", removal.Action)
	assert.Equal(t, "offboarding", removal.Comment)
}

func TestBulkAssignSettlesEveryUser(t *testing.T) {
	repo := newMockRepository()
	ids := seedUsers(repo, 4)
	repo.failSet[ids[2]] = httpx.ErrNotFound
	refresher := &mockRefresher{}
	service := NewService(repo, &mockAudit{}, refresher)

	resp, err := service.BulkAssignRole(context.Background(), 7, BulkAssignRequest{UserIDs: ids})
	require.NoError(t, err)

	// One failure never aborts the rest; every id gets its own entry in
	// submission order.
	require.Len(t, resp.Results, 4)
	assert.Equal(t, 3, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	for i, result := range resp.Results {
		assert.Equal(t, ids[i], result.UserID)
	}
	assert.False(t, resp.Results[2].OK)
	assert.NotEmpty(t, resp.Results[2].Error)
	assert.True(t, resp.Results[3].OK)

	// Only the successes get their cached permissions invalidated.
	assert.Len(t, refresher.users, 3)
	assert.NotContains(t, refresher.users, ids[2])
}

func TestBulkAssignRejectsEmptyList(t *testing.T) {
	service := NewService(newMockRepository(), nil, nil)

	_, err := service.BulkAssignRole(context.Background(), 7, BulkAssignRequest{})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateDeactivationInvalidatesUser(t *testing.T) {
	repo := newMockRepository()
	ids := seedUsers(repo, 1)
	refresher := &mockRefresher{}
	service := NewService(repo, &mockAudit{}, refresher)

	inactive := false
	_, changes, err := service.Update(context.Background(), ids[0], UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "Status: Active → Inactive", changes[0].Summary)
	assert.Equal(t, []int64{ids[0]}, refresher.users)
}

func TestUpdateNoChangesIsNoOp(t *testing.T) {
	repo := newMockRepository()
	ids := seedUsers(repo, 1)
	service := NewService(repo, &mockAudit{}, nil)

	active := true
	_, _, err := service.Update(context.Background(), ids[0], UpdateUserRequest{IsActive: &active})
	assert.ErrorIs(t, err, shared.ErrNoChanges)
}
