package roles

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/meridian-mdm/meridian-mdm/internal/changeset"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/selection"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context, req ListRolesRequest) ([]Role, int, error)
	Get(ctx context.Context, id int64) (Role, error)
	Create(ctx context.Context, role Role, groupIDs []int64) (Role, error)
	Update(ctx context.Context, id int64, req UpdateRoleRequest) (Role, error)
	GroupPermissionIDs(ctx context.Context, groupIDs []int64) (map[int64]struct{}, error)
}

// AuditRecorder persists mutation records.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Refresher invalidates cached authorization state after role mutations.
type Refresher interface {
	PermissionsChanged(ctx context.Context) error
}

// Service handles role business logic.
type Service struct {
	repo      RepositoryPort
	audit     AuditRecorder
	refresher Refresher
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditRecorder, refresher Refresher) *Service {
	return &Service{repo: repo, audit: audit, refresher: refresher}
}

// List returns a page of roles.
func (s *Service) List(ctx context.Context, req ListRolesRequest) (ListRolesResponse, error) {
	roleList, total, err := s.repo.List(ctx, req)
	if err != nil {
		return ListRolesResponse{}, err
	}
	if roleList == nil {
		roleList = []Role{}
	}
	return ListRolesResponse{
		Roles:      roleList,
		Total:      total,
		Pagination: shared.NewPagination(req.Page, req.Limit, total),
	}, nil
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a role referencing its groups. All grants start off.
func (s *Service) Create(ctx context.Context, req CreateRoleRequest) (Role, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Role{}, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	created, err := s.repo.Create(ctx, Role{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsActive:    isActive,
	}, req.PermissionGroups)
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, created.ID, "role.create", []string{"Created " + created.Name}, "")
	s.notifyRefresh(ctx)
	return created, nil
}

// Update runs the change-tracked mutation workflow for a role. A grants
// change is summarized as addition/removal counts, never as an id listing.
// Submitted grant ids outside the role's group universe are dropped; a
// permission a role's groups do not contain cannot be granted.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRoleRequest) (Role, []changeset.Change, error) {
	loaded, err := s.repo.Get(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}

	editor := changeset.NewEditor(loaded)
	if err := editor.Edit(); err != nil {
		return Role{}, nil, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return Role{}, nil, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	if req.Permissions != nil {
		// The clamp universe follows the submitted group set, so grants
		// belonging to groups added in the same request survive.
		universe := loaded.universeIDs()
		if req.PermissionGroups != nil {
			universe, err = s.repo.GroupPermissionIDs(ctx, *req.PermissionGroups)
			if err != nil {
				return Role{}, nil, err
			}
		}
		clamped := clampToUniverse(*req.Permissions, universe)
		req.Permissions = &clamped
	}
	if err := editor.SetDraft(applyDraft(loaded, req)); err != nil {
		return Role{}, nil, err
	}

	diff := diffRoles(loaded, req)
	state, err := editor.Review(diff)
	if err != nil {
		return Role{}, nil, err
	}
	if state == changeset.StateViewing {
		return loaded, nil, shared.ErrNoChanges
	}
	if err := editor.Confirm(req.Comment); err != nil {
		return Role{}, nil, err
	}

	updated, err := s.repo.Update(ctx, id, pruneUnchanged(loaded, req))
	if err != nil {
		_ = editor.Fail()
		return Role{}, nil, err
	}
	if err := editor.Complete(updated); err != nil {
		return Role{}, nil, err
	}

	s.recordAudit(ctx, id, "role.update", diff.Lines(), req.Comment)
	s.notifyRefresh(ctx)
	return updated, diff.Changes(), nil
}

func diffRoles(loaded Role, req UpdateRoleRequest) *changeset.Diff {
	var diff changeset.Diff
	if req.Name != nil {
		diff.CompareString("name", "Name", loaded.Name, *req.Name)
	}
	if req.Description != nil {
		diff.CompareString("description", "Description", loaded.Description, *req.Description)
	}
	if req.IsActive != nil {
		diff.CompareState("is_active", "Status", loaded.IsActive, *req.IsActive, "Active", "Inactive")
	}
	if req.PermissionGroups != nil {
		diff.CompareSet("permission_groups", "Permission groups", groupIDStrings(loaded), idStrings(*req.PermissionGroups))
	}
	if req.Permissions != nil {
		diff.CompareSet("permissions", "Granted permissions", idStrings(loaded.GrantedIDs()), idStrings(*req.Permissions))
	}
	return &diff
}

// clampToUniverse keeps only ids the role's groups actually contain,
// preserving the submitted order.
func clampToUniverse(submitted []int64, universe map[int64]struct{}) []int64 {
	kept := make([]int64, 0, len(submitted))
	for _, id := range submitted {
		if _, ok := universe[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}

// groupIDStrings renders the referenced groups as the selection working set
// the editor reconciles against on save.
func groupIDStrings(role Role) []string {
	working := selection.New()
	for _, group := range role.PermissionGroups {
		working.Toggle(strconv.FormatInt(group.Group.ID, 10))
	}
	return working.Values()
}

func idStrings(ids []int64) []string {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = strconv.FormatInt(id, 10)
	}
	return values
}

func applyDraft(loaded Role, req UpdateRoleRequest) Role {
	draft := loaded
	if req.Name != nil {
		draft.Name = *req.Name
	}
	if req.Description != nil {
		draft.Description = *req.Description
	}
	if req.IsActive != nil {
		draft.IsActive = *req.IsActive
	}
	return draft
}

func pruneUnchanged(loaded Role, req UpdateRoleRequest) UpdateRoleRequest {
	pruned := UpdateRoleRequest{Comment: req.Comment}
	if req.Name != nil && *req.Name != loaded.Name {
		pruned.Name = req.Name
	}
	if req.Description != nil && *req.Description != loaded.Description {
		pruned.Description = req.Description
	}
	if req.IsActive != nil && *req.IsActive != loaded.IsActive {
		pruned.IsActive = req.IsActive
	}
	if req.PermissionGroups != nil && !sameIDSet(groupIDs(loaded), *req.PermissionGroups) {
		pruned.PermissionGroups = req.PermissionGroups
	}
	if req.Permissions != nil && !sameIDSet(loaded.GrantedIDs(), *req.Permissions) {
		pruned.Permissions = req.Permissions
	}
	return pruned
}

func groupIDs(role Role) []int64 {
	ids := make([]int64, len(role.PermissionGroups))
	for i, group := range role.PermissionGroups {
		ids[i] = group.Group.ID
	}
	return ids
}

// sameIDSet compares as sets, matching the diff semantics: a reorder-only
// submission produces an empty diff and therefore no write.
func sameIDSet(current, submitted []int64) bool {
	if len(current) != len(submitted) {
		return false
	}
	index := make(map[int64]struct{}, len(current))
	for _, id := range current {
		index[id] = struct{}{}
	}
	for _, id := range submitted {
		if _, ok := index[id]; !ok {
			return false
		}
	}
	return true
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
		Entity:   "role",
		EntityID: strconv.FormatInt(id, 10),
		Changes:  changes,
		Comment:  comment,
	})
}

func (s *Service) notifyRefresh(ctx context.Context) {
	if s.refresher != nil {
		_ = s.refresher.PermissionsChanged(ctx)
	}
}
