package permissions

import (
	"time"

	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// Permission is an atomic, named capability identified by a code string.
// Codes are unique system-wide; uniqueness is enforced by the database.
type Permission struct {
	ID          int64                `json:"id"`
	Code        string               `json:"code"`
	Name        shared.LocalizedText `json:"name"`
	Description shared.LocalizedText `json:"description"`
	IsActive    bool                 `json:"is_active"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// CreatePermissionRequest carries a new catalog entry.
type CreatePermissionRequest struct {
	Code        string               `json:"code" validate:"required,max=100"`
	Name        shared.LocalizedText `json:"name" validate:"required"`
	Description shared.LocalizedText `json:"description" validate:"required"`
	IsActive    *bool                `json:"is_active,omitempty"`
}

// UpdatePermissionRequest is the changed-fields-only payload of the mutation
// workflow. Nil fields are untouched; Comment is the optional rationale.
type UpdatePermissionRequest struct {
	Code        *string               `json:"code,omitempty" validate:"omitempty,max=100"`
	Name        *shared.LocalizedText `json:"name,omitempty"`
	Description *shared.LocalizedText `json:"description,omitempty"`
	IsActive    *bool                 `json:"is_active,omitempty"`
	Comment     string                `json:"comment,omitempty"`
}

// ListPermissionsRequest filters the paginated catalog listing.
type ListPermissionsRequest struct {
	Limit  int
	Page   int
	Search string
}

// ListPermissionsResponse mirrors the catalog listing shape.
type ListPermissionsResponse struct {
	Permissions []Permission      `json:"permissions"`
	Total       int               `json:"total"`
	Pagination  shared.Pagination `json:"pagination"`
}
