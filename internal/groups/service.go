package groups

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

// RepositoryPort defines data access methods for permission groups.
type RepositoryPort interface {
	List(ctx context.Context, req ListGroupsRequest) ([]PermissionGroup, int, error)
	Get(ctx context.Context, id int64) (PermissionGroup, error)
	Create(ctx context.Context, group PermissionGroup, permissionIDs []int64) (PermissionGroup, error)
	Update(ctx context.Context, id int64, req UpdateGroupRequest) (PermissionGroup, error)
}

// AuditRecorder persists mutation records.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Refresher invalidates cached authorization state after group mutations.
type Refresher interface {
	PermissionsChanged(ctx context.Context) error
}

// Service handles permission group business logic.
type Service struct {
	repo      RepositoryPort
	audit     AuditRecorder
	refresher Refresher
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditRecorder, refresher Refresher) *Service {
	return &Service{repo: repo, audit: audit, refresher: refresher}
}

// List returns a page of groups.
func (s *Service) List(ctx context.Context, req ListGroupsRequest) (ListGroupsResponse, error) {
	groupList, total, err := s.repo.List(ctx, req)
	if err != nil {
		return ListGroupsResponse{}, err
	}
	if groupList == nil {
		groupList = []PermissionGroup{}
	}
	return ListGroupsResponse{
		PermissionGroups: groupList,
		Total:            total,
		Pagination:       shared.NewPagination(req.Page, req.Limit, total),
	}, nil
}

// Get fetches one group.
func (s *Service) Get(ctx context.Context, id int64) (PermissionGroup, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a group with its initial membership.
func (s *Service) Create(ctx context.Context, req CreateGroupRequest) (PermissionGroup, error) {
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Name) == "" {
		return PermissionGroup{}, fmt.Errorf("%w: code and name are required", httpx.ErrValidation)
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	created, err := s.repo.Create(ctx, PermissionGroup{
		Code:        strings.TrimSpace(req.Code),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsActive:    isActive,
	}, req.Permissions)
	if err != nil {
		return PermissionGroup{}, err
	}
	s.recordAudit(ctx, created.ID, "permission_group.create", []string{"Created " + created.Code}, "")
	s.notifyRefresh(ctx)
	return created, nil
}

// Update runs the change-tracked mutation workflow for a group. A membership
// change is summarized as addition/removal counts, never as an id listing.
func (s *Service) Update(ctx context.Context, id int64, req UpdateGroupRequest) (PermissionGroup, []changeset.Change, error) {
	loaded, err := s.repo.Get(ctx, id)
	if err != nil {
		return PermissionGroup{}, nil, err
	}

	editor := changeset.NewEditor(loaded)
	if err := editor.Edit(); err != nil {
		return PermissionGroup{}, nil, err
	}

	draft := applyDraft(loaded, req)
	if strings.TrimSpace(draft.Code) == "" || strings.TrimSpace(draft.Name) == "" {
		return PermissionGroup{}, nil, fmt.Errorf("%w: code and name are required", httpx.ErrValidation)
	}
	if err := editor.SetDraft(draft); err != nil {
		return PermissionGroup{}, nil, err
	}

	diff := diffGroups(loaded, req)
	state, err := editor.Review(diff)
	if err != nil {
		return PermissionGroup{}, nil, err
	}
	if state == changeset.StateViewing {
		return loaded, nil, shared.ErrNoChanges
	}
	if err := editor.Confirm(req.Comment); err != nil {
		return PermissionGroup{}, nil, err
	}

	updated, err := s.repo.Update(ctx, id, pruneUnchanged(loaded, req))
	if err != nil {
		_ = editor.Fail()
		return PermissionGroup{}, nil, err
	}
	if err := editor.Complete(updated); err != nil {
		return PermissionGroup{}, nil, err
	}

	s.recordAudit(ctx, id, "permission_group.update", diff.Lines(), req.Comment)
	s.notifyRefresh(ctx)
	return updated, diff.Changes(), nil
}

func diffGroups(loaded PermissionGroup, req UpdateGroupRequest) *changeset.Diff {
	var diff changeset.Diff
	if req.Code != nil {
		diff.CompareString("code", "Code", loaded.Code, *req.Code)
	}
	if req.Name != nil {
		diff.CompareString("name", "Name", loaded.Name, *req.Name)
	}
	if req.Description != nil {
		diff.CompareString("description", "Description", loaded.Description, *req.Description)
	}
	if req.IsActive != nil {
		diff.CompareState("is_active", "Status", loaded.IsActive, *req.IsActive, "Active", "Inactive")
	}
	if req.Permissions != nil {
		diff.CompareSet("permissions", "Permissions", membershipIDs(loaded), idStrings(*req.Permissions))
	}
	return &diff
}

// membershipIDs renders the current membership as the selection working set
// the editor reconciles against on save.
func membershipIDs(group PermissionGroup) []string {
	working := selection.New()
	for _, perm := range group.Permissions {
		working.Toggle(strconv.FormatInt(perm.ID, 10))
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

func applyDraft(loaded PermissionGroup, req UpdateGroupRequest) PermissionGroup {
	draft := loaded
	if req.Code != nil {
		draft.Code = *req.Code
	}
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

func pruneUnchanged(loaded PermissionGroup, req UpdateGroupRequest) UpdateGroupRequest {
	pruned := UpdateGroupRequest{Comment: req.Comment}
	if req.Code != nil && *req.Code != loaded.Code {
		pruned.Code = req.Code
	}
	if req.Name != nil && *req.Name != loaded.Name {
		pruned.Name = req.Name
	}
	if req.Description != nil && *req.Description != loaded.Description {
		pruned.Description = req.Description
	}
	if req.IsActive != nil && *req.IsActive != loaded.IsActive {
		pruned.IsActive = req.IsActive
	}
	if req.Permissions != nil && !sameMembership(loaded, *req.Permissions) {
		pruned.Permissions = req.Permissions
	}
	return pruned
}

// sameMembership compares as sets, matching the diff semantics: a
// reorder-only submission produces an empty diff and therefore no write.
func sameMembership(loaded PermissionGroup, submitted []int64) bool {
	if len(loaded.Permissions) != len(submitted) {
		return false
	}
	current := make(map[int64]struct{}, len(loaded.Permissions))
	for _, perm := range loaded.Permissions {
		current[perm.ID] = struct{}{}
	}
	for _, id := range submitted {
		if _, ok := current[id]; !ok {
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
		Entity:   "permission_group",
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
