package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-mdm/meridian-mdm/internal/permissions"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/db"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for permission groups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const groupColumns = `id, code, name, description, is_active, created_at, updated_at`

// List returns a page of groups with their ordered memberships.
func (r *Repository) List(ctx context.Context, req ListGroupsRequest) ([]PermissionGroup, int, error) {
	page := shared.NewPagination(req.Page, req.Limit, 0)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permission_groups`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+groupColumns+` FROM permission_groups ORDER BY code LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []PermissionGroup
	for rows.Next() {
		var group PermissionGroup
		if err := rows.Scan(&group.ID, &group.Code, &group.Name, &group.Description, &group.IsActive, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, group)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range result {
		perms, err := r.loadPermissions(ctx, result[i].ID)
		if err != nil {
			return nil, 0, err
		}
		result[i].Permissions = perms
	}
	return result, total, nil
}

// Get fetches one group with its ordered membership.
func (r *Repository) Get(ctx context.Context, id int64) (PermissionGroup, error) {
	var group PermissionGroup
	err := r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM permission_groups WHERE id = $1`, id).
		Scan(&group.ID, &group.Code, &group.Name, &group.Description, &group.IsActive, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PermissionGroup{}, httpx.ErrNotFound
		}
		return PermissionGroup{}, err
	}
	perms, err := r.loadPermissions(ctx, id)
	if err != nil {
		return PermissionGroup{}, err
	}
	group.Permissions = perms
	return group, nil
}

// Create inserts a group and attaches its initial membership in order.
func (r *Repository) Create(ctx context.Context, group PermissionGroup, permissionIDs []int64) (PermissionGroup, error) {
	var created PermissionGroup
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO permission_groups (code, name, description, is_active) VALUES ($1, $2, $3, $4) RETURNING `+groupColumns,
			group.Code, group.Name, group.Description, group.IsActive).
			Scan(&created.ID, &created.Code, &created.Name, &created.Description, &created.IsActive, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			return mapUniqueViolation(err)
		}
		return replaceMembership(ctx, tx, created.ID, permissionIDs)
	})
	if err != nil {
		return PermissionGroup{}, err
	}
	return r.Get(ctx, created.ID)
}

// Update applies only the provided fields; when the membership array is
// present the whole list is replaced inside the same transaction, preserving
// the submitted order.
func (r *Repository) Update(ctx context.Context, id int64, req UpdateGroupRequest) (PermissionGroup, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		sets := []string{"updated_at = NOW()"}
		args := []any{id}
		appendSet := func(column string, value any) {
			args = append(args, value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}
		if req.Code != nil {
			appendSet("code", *req.Code)
		}
		if req.Name != nil {
			appendSet("name", *req.Name)
		}
		if req.Description != nil {
			appendSet("description", *req.Description)
		}
		if req.IsActive != nil {
			appendSet("is_active", *req.IsActive)
		}

		query := fmt.Sprintf(`UPDATE permission_groups SET %s WHERE id = $1`, strings.Join(sets, ", "))
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return mapUniqueViolation(err)
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		if req.Permissions != nil {
			return replaceMembership(ctx, tx, id, *req.Permissions)
		}
		return nil
	})
	if err != nil {
		return PermissionGroup{}, err
	}
	return r.Get(ctx, id)
}

func (r *Repository) loadPermissions(ctx context.Context, groupID int64) ([]permissions.Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.code, p.name, p.description, p.is_active, p.created_at, p.updated_at
		 FROM permission_group_members m
		 JOIN permissions p ON p.id = m.permission_id
		 WHERE m.group_id = $1
		 ORDER BY m.position`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []permissions.Permission{}
	for rows.Next() {
		var perm permissions.Permission
		var nameJSON, descJSON []byte
		if err := rows.Scan(&perm.ID, &perm.Code, &nameJSON, &descJSON, &perm.IsActive, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		if err := perm.Name.Scan(nameJSON); err != nil {
			return nil, err
		}
		if err := perm.Description.Scan(descJSON); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func replaceMembership(ctx context.Context, tx pgx.Tx, groupID int64, permissionIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM permission_group_members WHERE group_id = $1`, groupID); err != nil {
		return err
	}
	for position, permissionID := range permissionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO permission_group_members (group_id, permission_id, position) VALUES ($1, $2, $3)`,
			groupID, permissionID, position); err != nil {
			return err
		}
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: group code already exists", httpx.ErrDuplicate)
	}
	return err
}
