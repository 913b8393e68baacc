package roles

import (
	"time"

	"github.com/meridian-mdm/meridian-mdm/internal/authz"
	"github.com/meridian-mdm/meridian-mdm/internal/permissions"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// Role bundles permission groups with a per-role granted flag on every
// permission the referenced groups contain.
type Role struct {
	ID               int64                 `json:"id"`
	Name             string                `json:"name"`
	Description      string                `json:"description"`
	IsActive         bool                  `json:"is_active"`
	PermissionGroups []RolePermissionGroup `json:"permission_groups"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// GroupRef is the lightweight reference a role holds to a permission group.
type GroupRef struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// GrantedPermission tags one permission of a referenced group with whether
// this role grants it. Every permission of the group appears exactly once;
// one missing from storage is implicitly not granted.
type GrantedPermission struct {
	Permission permissions.Permission `json:"permission"`
	Granted    bool                   `json:"granted"`
}

// RolePermissionGroup is the per-role view of one referenced group.
type RolePermissionGroup struct {
	Group       GroupRef            `json:"permission_group"`
	Permissions []GrantedPermission `json:"permissions"`
}

// Snapshot converts the aggregate into the resolver's input shape.
func (r *Role) Snapshot() *authz.RoleSnapshot {
	if r == nil {
		return nil
	}
	snapshot := &authz.RoleSnapshot{ID: r.ID}
	for _, group := range r.PermissionGroups {
		grants := authz.GroupGrants{GroupID: group.Group.ID}
		for _, entry := range group.Permissions {
			grants.Permissions = append(grants.Permissions, authz.Grant{
				Code:    entry.Permission.Code,
				Granted: entry.Granted,
			})
		}
		snapshot.PermissionGroups = append(snapshot.PermissionGroups, grants)
	}
	return snapshot
}

// GrantedIDs flattens the aggregate into the granted permission id list, the
// same shape the update endpoint accepts.
func (r *Role) GrantedIDs() []int64 {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, group := range r.PermissionGroups {
		for _, entry := range group.Permissions {
			if !entry.Granted {
				continue
			}
			if _, ok := seen[entry.Permission.ID]; ok {
				continue
			}
			seen[entry.Permission.ID] = struct{}{}
			ids = append(ids, entry.Permission.ID)
		}
	}
	return ids
}

// universeIDs is the union of all permission ids across referenced groups.
func (r *Role) universeIDs() map[int64]struct{} {
	universe := make(map[int64]struct{})
	for _, group := range r.PermissionGroups {
		for _, entry := range group.Permissions {
			universe[entry.Permission.ID] = struct{}{}
		}
	}
	return universe
}

// CreateRoleRequest carries a new role and the groups it references. Grants
// start out empty; the role grants nothing until its first update.
type CreateRoleRequest struct {
	Name             string  `json:"name" validate:"required,max=200"`
	Description      string  `json:"description" validate:"required"`
	PermissionGroups []int64 `json:"permission_groups,omitempty"`
	IsActive         *bool   `json:"is_active,omitempty"`
}

// UpdateRoleRequest is the changed-fields-only payload. Permissions is a flat
// list of granted permission ids; the nested per-group shape is re-derived
// from the groups catalog on the next load.
type UpdateRoleRequest struct {
	Name             *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Description      *string  `json:"description,omitempty"`
	IsActive         *bool    `json:"is_active,omitempty"`
	PermissionGroups *[]int64 `json:"permission_groups,omitempty"`
	Permissions      *[]int64 `json:"permissions,omitempty"`
	Comment          string   `json:"comment,omitempty"`
}

// ListRolesRequest filters the paginated listing.
type ListRolesRequest struct {
	Limit int
	Page  int
}

// ListRolesResponse mirrors the listing shape.
type ListRolesResponse struct {
	Roles      []Role            `json:"roles"`
	Total      int               `json:"total"`
	Pagination shared.Pagination `json:"pagination"`
}
