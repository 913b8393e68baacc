package permissions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/meridian-mdm/meridian-mdm/internal/changeset"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// RepositoryPort defines data access methods for the permission catalog.
type RepositoryPort interface {
	List(ctx context.Context, req ListPermissionsRequest) ([]Permission, int, error)
	Get(ctx context.Context, id int64) (Permission, error)
	Create(ctx context.Context, perm Permission) (Permission, error)
	Update(ctx context.Context, id int64, req UpdatePermissionRequest) (Permission, error)
}

// AuditRecorder persists mutation records.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Refresher is notified after any mutation that can change effective
// permission sets, so cached authorization state gets invalidated.
type Refresher interface {
	PermissionsChanged(ctx context.Context) error
}

// Service handles permission catalog business logic.
type Service struct {
	repo      RepositoryPort
	audit     AuditRecorder
	refresher Refresher
	locale    string
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditRecorder, refresher Refresher, locale string) *Service {
	if locale == "" {
		locale = "en"
	}
	return &Service{repo: repo, audit: audit, refresher: refresher, locale: locale}
}

// List returns a catalog page.
func (s *Service) List(ctx context.Context, req ListPermissionsRequest) (ListPermissionsResponse, error) {
	perms, total, err := s.repo.List(ctx, req)
	if err != nil {
		return ListPermissionsResponse{}, err
	}
	if perms == nil {
		perms = []Permission{}
	}
	return ListPermissionsResponse{
		Permissions: perms,
		Total:       total,
		Pagination:  shared.NewPagination(req.Page, req.Limit, total),
	}, nil
}

// Get fetches one permission.
func (s *Service) Get(ctx context.Context, id int64) (Permission, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a catalog entry.
func (s *Service) Create(ctx context.Context, req CreatePermissionRequest) (Permission, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return Permission{}, fmt.Errorf("%w: code is required", httpx.ErrValidation)
	}
	if len(req.Name) == 0 {
		return Permission{}, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	created, err := s.repo.Create(ctx, Permission{
		Code:        code,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    isActive,
	})
	if err != nil {
		return Permission{}, err
	}
	s.recordAudit(ctx, created.ID, "permission.create", []string{"Created " + created.Code}, "")
	s.notifyRefresh(ctx)
	return created, nil
}

// Update runs the change-tracked mutation workflow: diff the draft against the
// loaded entity, skip the write entirely when nothing changed, otherwise
// persist only the changed fields together with the comment.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePermissionRequest) (Permission, []changeset.Change, error) {
	loaded, err := s.repo.Get(ctx, id)
	if err != nil {
		return Permission{}, nil, err
	}

	editor := changeset.NewEditor(loaded)
	if err := editor.Edit(); err != nil {
		return Permission{}, nil, err
	}

	draft := applyDraft(loaded, req)
	if strings.TrimSpace(draft.Code) == "" {
		return Permission{}, nil, fmt.Errorf("%w: code is required", httpx.ErrValidation)
	}
	if err := editor.SetDraft(draft); err != nil {
		return Permission{}, nil, err
	}

	diff := s.diff(loaded, draft)
	state, err := editor.Review(diff)
	if err != nil {
		return Permission{}, nil, err
	}
	if state == changeset.StateViewing {
		return loaded, nil, shared.ErrNoChanges
	}
	if err := editor.Confirm(req.Comment); err != nil {
		return Permission{}, nil, err
	}

	updated, err := s.repo.Update(ctx, id, pruneUnchanged(loaded, req))
	if err != nil {
		_ = editor.Fail()
		return Permission{}, nil, err
	}
	if err := editor.Complete(updated); err != nil {
		return Permission{}, nil, err
	}

	s.recordAudit(ctx, id, "permission.update", diff.Lines(), req.Comment)
	s.notifyRefresh(ctx)
	return updated, diff.Changes(), nil
}

func (s *Service) diff(loaded, draft Permission) *changeset.Diff {
	var diff changeset.Diff
	diff.CompareString("code", "Code", loaded.Code, draft.Code)
	s.compareLocalized(&diff, "name", "Name", loaded.Name, draft.Name)
	s.compareLocalized(&diff, "description", "Description", loaded.Description, draft.Description)
	diff.CompareState("is_active", "Status", loaded.IsActive, draft.IsActive, "Active", "Inactive")
	return &diff
}

// compareLocalized renders the change in the service locale; a change that
// only touches other translations is still surfaced as a set change so it
// cannot slip through as an empty diff.
func (s *Service) compareLocalized(diff *changeset.Diff, field, label string, loaded, draft shared.LocalizedText) {
	oldValue := loaded.Resolve(s.locale, "en")
	newValue := draft.Resolve(s.locale, "en")
	if oldValue != newValue {
		diff.CompareString(field, label, oldValue, newValue)
		return
	}
	if !localizedEqual(loaded, draft) {
		diff.CompareSet(field, label+" translations", localizedPairs(loaded), localizedPairs(draft))
	}
}

func localizedPairs(text shared.LocalizedText) []string {
	pairs := make([]string, 0, len(text))
	for key, value := range text {
		pairs = append(pairs, key+"="+value)
	}
	return pairs
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
		Entity:   "permission",
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

func applyDraft(loaded Permission, req UpdatePermissionRequest) Permission {
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

// pruneUnchanged drops fields whose submitted value equals the loaded one so
// the persisted payload carries changed fields only.
func pruneUnchanged(loaded Permission, req UpdatePermissionRequest) UpdatePermissionRequest {
	pruned := UpdatePermissionRequest{Comment: req.Comment}
	if req.Code != nil && *req.Code != loaded.Code {
		pruned.Code = req.Code
	}
	if req.Name != nil && !localizedEqual(*req.Name, loaded.Name) {
		pruned.Name = req.Name
	}
	if req.Description != nil && !localizedEqual(*req.Description, loaded.Description) {
		pruned.Description = req.Description
	}
	if req.IsActive != nil && *req.IsActive != loaded.IsActive {
		pruned.IsActive = req.IsActive
	}
	return pruned
}

func localizedEqual(a, b shared.LocalizedText) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		if b[key] != value {
			return false
		}
	}
	return true
}
