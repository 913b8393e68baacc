package users

import (
	"time"

	"github.com/meridian-mdm/meridian-mdm/internal/authz"
	"github.com/meridian-mdm/meridian-mdm/internal/roles"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// User represents a console account. A user holds at most one role; admins
// bypass role resolution entirely.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	Role      *RoleRef  `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleRef is the lightweight reference a user holds to its role.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ToSubject converts the user plus its loaded role aggregate into the
// resolver's input shape. A nil user resolves to no permissions at all.
func (u *User) ToSubject(role *roles.Role) *authz.Subject {
	if u == nil {
		return nil
	}
	return &authz.Subject{
		ID:      u.ID,
		IsAdmin: u.IsAdmin,
		Role:    role.Snapshot(),
	}
}

// CreateUserRequest carries a new account.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8"`
	IsAdmin  bool   `json:"is_admin"`
	RoleID   *int64 `json:"role_id,omitempty"`
}

// UpdateUserRequest is the changed-fields-only payload.
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	IsActive *bool   `json:"is_active,omitempty"`
	Comment  string  `json:"comment,omitempty"`
}

// AssignRoleRequest attaches one role to one user.
type AssignRoleRequest struct {
	RoleID  int64  `json:"role_id" validate:"required"`
	Comment string `json:"comment,omitempty"`
}

// RemoveRoleRequest carries the optional rationale for detaching a role. The
// body itself is optional on the wire.
type RemoveRoleRequest struct {
	Comment string `json:"comment,omitempty"`
}

// BulkAssignRequest attaches one role to many users at once.
type BulkAssignRequest struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1"`
	Comment string  `json:"comment,omitempty"`
}

// BulkAssignResult reports the per-user outcome of a bulk assignment. Every
// submitted id appears exactly once whether its call succeeded or not.
type BulkAssignResult struct {
	UserID int64  `json:"user_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// BulkAssignResponse summarizes a settled bulk assignment.
type BulkAssignResponse struct {
	Results   []BulkAssignResult `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// ListUsersRequest filters the paginated listing.
type ListUsersRequest struct {
	Search string
	Limit  int
	Page   int
}

// ListUsersResponse mirrors the listing shape.
type ListUsersResponse struct {
	Users      []User            `json:"users"`
	Total      int               `json:"total"`
	Pagination shared.Pagination `json:"pagination"`
}
