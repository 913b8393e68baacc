package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-mdm/meridian-mdm/internal/changeset"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// bulkAssignConcurrency caps the in-flight per-user calls of one bulk
// assignment.
const bulkAssignConcurrency = 8

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, req ListUsersRequest) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, string, error)
	Create(ctx context.Context, user User, passwordHash string, roleID *int64) (User, error)
	Update(ctx context.Context, id int64, req UpdateUserRequest) (User, error)
	SetRole(ctx context.Context, userID int64, roleID *int64) error
}

// AuditRecorder persists mutation records.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Refresher invalidates cached authorization state. Role assignment touches
// one user, so the per-user variant avoids logging everyone out.
type Refresher interface {
	PermissionsChanged(ctx context.Context) error
	UserPermissionsChanged(ctx context.Context, userID int64) error
}

// Service handles user business logic.
type Service struct {
	repo      RepositoryPort
	audit     AuditRecorder
	refresher Refresher
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditRecorder, refresher Refresher) *Service {
	return &Service{repo: repo, audit: audit, refresher: refresher}
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, req ListUsersRequest) (ListUsersResponse, error) {
	userList, total, err := s.repo.List(ctx, req)
	if err != nil {
		return ListUsersResponse{}, err
	}
	if userList == nil {
		userList = []User{}
	}
	return ListUsersResponse{
		Users:      userList,
		Total:      total,
		Pagination: shared.NewPagination(req.Page, req.Limit, total),
	}, nil
}

// Get fetches one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create registers an account with a bcrypt hashed password.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || strings.TrimSpace(req.Name) == "" {
		return User{}, fmt.Errorf("%w: email and name are required", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	created, err := s.repo.Create(ctx, User{
		Email:    email,
		Name:     strings.TrimSpace(req.Name),
		IsAdmin:  req.IsAdmin,
		IsActive: true,
	}, string(hash), req.RoleID)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, created.ID, "user.create", []string{"Created " + created.Email}, "")
	return created, nil
}

// Update runs the change-tracked mutation workflow for a user profile.
func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest) (User, []changeset.Change, error) {
	loaded, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, nil, err
	}

	editor := changeset.NewEditor(loaded)
	if err := editor.Edit(); err != nil {
		return User{}, nil, err
	}
	draft := loaded
	if req.Name != nil {
		draft.Name = *req.Name
	}
	if req.IsActive != nil {
		draft.IsActive = *req.IsActive
	}
	if err := editor.SetDraft(draft); err != nil {
		return User{}, nil, err
	}

	var diff changeset.Diff
	if req.Name != nil {
		diff.CompareString("name", "Name", loaded.Name, *req.Name)
	}
	if req.IsActive != nil {
		diff.CompareState("is_active", "Status", loaded.IsActive, *req.IsActive, "Active", "Inactive")
	}
	state, err := editor.Review(&diff)
	if err != nil {
		return User{}, nil, err
	}
	if state == changeset.StateViewing {
		return loaded, nil, shared.ErrNoChanges
	}
	if err := editor.Confirm(req.Comment); err != nil {
		return User{}, nil, err
	}

	updated, err := s.repo.Update(ctx, id, req)
	if err != nil {
		_ = editor.Fail()
		return User{}, nil, err
	}
	if err := editor.Complete(updated); err != nil {
		return User{}, nil, err
	}

	s.recordAudit(ctx, id, "user.update", diff.Lines(), req.Comment)
	if req.IsActive != nil && !*req.IsActive {
		s.notifyUser(ctx, id)
	}
	return updated, diff.Changes(), nil
}

// AssignRole attaches a role to a user and invalidates that user's cached
// permissions.
func (s *Service) AssignRole(ctx context.Context, userID int64, req AssignRoleRequest) (User, error) {
	if err := s.repo.SetRole(ctx, userID, &req.RoleID); err != nil {
		return User{}, err
	}
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, userID, "user.assign_role",
		[]string{"Role: assigned " + strconv.FormatInt(req.RoleID, 10)}, req.Comment)
	s.notifyUser(ctx, userID)
	return user, nil
}

// RemoveRole detaches the given role from a user. Removing a role the user
// does not hold is rejected rather than silently cleared.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64, comment string) (User, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if user.Role == nil || user.Role.ID != roleID {
		return User{}, fmt.Errorf("%w: user does not hold role %d", httpx.ErrValidation, roleID)
	}
	if err := s.repo.SetRole(ctx, userID, nil); err != nil {
		return User{}, err
	}
	user.Role = nil
	s.recordAudit(ctx, userID, "user.remove_role",
		[]string{"Role: removed " + strconv.FormatInt(roleID, 10)}, comment)
	s.notifyUser(ctx, userID)
	return user, nil
}

// BulkAssignRole assigns one role to many users as independent per-user
// calls. All calls settle: one failure never aborts the rest, and every
// submitted id gets a result entry.
func (s *Service) BulkAssignRole(ctx context.Context, roleID int64, req BulkAssignRequest) (BulkAssignResponse, error) {
	if len(req.UserIDs) == 0 {
		return BulkAssignResponse{}, fmt.Errorf("%w: user_ids is required", httpx.ErrValidation)
	}

	settled := shared.SettleAll(ctx, req.UserIDs, bulkAssignConcurrency, func(ctx context.Context, userID int64) error {
		return s.repo.SetRole(ctx, userID, &roleID)
	})

	resp := BulkAssignResponse{Results: make([]BulkAssignResult, len(settled))}
	for i, outcome := range settled {
		result := BulkAssignResult{UserID: outcome.Item, OK: outcome.Err == nil}
		if outcome.Err != nil {
			result.Error = outcome.Err.Error()
			resp.Failed++
		} else {
			resp.Succeeded++
			s.notifyUser(ctx, outcome.Item)
		}
		resp.Results[i] = result
	}

	s.recordAudit(ctx, roleID, "role.bulk_assign",
		[]string{fmt.Sprintf("Members: %d added, 0 removed", resp.Succeeded)}, req.Comment)
	return resp, nil
}

func (s *Service) recordAudit(ctx context.Context, id int64, action string, changes []string, comment string) {
	if s.audit == nil {
		return
	}
	actorID := int64(0)
	if actor := shared.ActorFromContext(ctx); actor != nil {
		actorID = actor.ID
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Changes:  changes,
		Comment:  comment,
	})
}

func (s *Service) notifyUser(ctx context.Context, userID int64) {
	if s.refresher != nil {
		_ = s.refresher.UserPermissionsChanged(ctx, userID)
	}
}
