package groups

import (
	"time"

	"github.com/meridian-mdm/meridian-mdm/internal/permissions"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// PermissionGroup is a named, insertion-ordered collection of permissions
// used as a unit of assignment. A permission may belong to many groups.
type PermissionGroup struct {
	ID          int64                    `json:"id"`
	Code        string                   `json:"code"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Permissions []permissions.Permission `json:"permissions"`
	IsActive    bool                     `json:"is_active"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// CreateGroupRequest carries a new group with its initial membership.
type CreateGroupRequest struct {
	Code        string  `json:"code" validate:"required,max=100"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"required"`
	Permissions []int64 `json:"permissions,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// UpdateGroupRequest is the changed-fields-only payload. Permissions, when
// present, carries the whole membership array: one PUT replaces the list, no
// per-item calls.
type UpdateGroupRequest struct {
	Code        *string  `json:"code,omitempty" validate:"omitempty,max=100"`
	Name        *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string  `json:"description,omitempty"`
	Permissions *[]int64 `json:"permissions,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
	Comment     string   `json:"comment,omitempty"`
}

// ListGroupsRequest filters the paginated listing.
type ListGroupsRequest struct {
	Limit int
	Page  int
}

// ListGroupsResponse mirrors the listing shape.
type ListGroupsResponse struct {
	PermissionGroups []PermissionGroup `json:"permission_groups"`
	Total            int               `json:"total"`
	Pagination       shared.Pagination `json:"pagination"`
}
