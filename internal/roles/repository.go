package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-mdm/meridian-mdm/internal/platform/db"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for roles. Grants are
// stored as (role_id, permission_id) rows for granted permissions only; the
// nested per-group shape is rebuilt on load from the groups catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, is_active, created_at, updated_at`

// List returns a page of roles with their full grant aggregates.
func (r *Repository) List(ctx context.Context, req ListRolesRequest) ([]Role, int, error) {
	page := shared.NewPagination(req.Page, req.Limit, 0)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles ORDER BY name LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range result {
		groups, err := r.loadAggregate(ctx, result[i].ID)
		if err != nil {
			return nil, 0, err
		}
		result[i].PermissionGroups = groups
	}
	return result, total, nil
}

// Get fetches one role with its full grant aggregate.
func (r *Repository) Get(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	groups, err := r.loadAggregate(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role.PermissionGroups = groups
	return role, nil
}

// Create inserts a role and attaches its referenced groups.
func (r *Repository) Create(ctx context.Context, role Role, groupIDs []int64) (Role, error) {
	var created Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO roles (name, description, is_active) VALUES ($1, $2, $3) RETURNING `+roleColumns,
			role.Name, role.Description, role.IsActive).
			Scan(&created.ID, &created.Name, &created.Description, &created.IsActive, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			return mapUniqueViolation(err)
		}
		return replaceGroups(ctx, tx, created.ID, groupIDs)
	})
	if err != nil {
		return Role{}, err
	}
	return r.Get(ctx, created.ID)
}

// Update applies only the provided fields. A grants array replaces the whole
// grant set inside the same transaction; ids outside the role's group
// universe are rejected by the foreign key on role_permission_grants but the
// service filters them out beforehand.
func (r *Repository) Update(ctx context.Context, id int64, req UpdateRoleRequest) (Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		sets := []string{"updated_at = NOW()"}
		args := []any{id}
		appendSet := func(column string, value any) {
			args = append(args, value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
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

		query := fmt.Sprintf(`UPDATE roles SET %s WHERE id = $1`, strings.Join(sets, ", "))
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return mapUniqueViolation(err)
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		if req.PermissionGroups != nil {
			if err := replaceGroups(ctx, tx, id, *req.PermissionGroups); err != nil {
				return err
			}
		}
		if req.Permissions != nil {
			return replaceGrants(ctx, tx, id, *req.Permissions)
		}
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return r.Get(ctx, id)
}

// loadAggregate rebuilds the nested shape: every permission of every
// referenced group, flagged by presence in role_permission_grants.
func (r *Repository) loadAggregate(ctx context.Context, roleID int64) ([]RolePermissionGroup, error) {
	granted, err := r.loadGrantSet(ctx, roleID)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.code, g.name,
		        p.id, p.code, p.name, p.description, p.is_active, p.created_at, p.updated_at
		 FROM role_permission_groups rg
		 JOIN permission_groups g ON g.id = rg.group_id
		 JOIN permission_group_members m ON m.group_id = g.id
		 JOIN permissions p ON p.id = m.permission_id
		 WHERE rg.role_id = $1
		 ORDER BY rg.position, m.position`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []RolePermissionGroup{}
	index := make(map[int64]int)
	for rows.Next() {
		var ref GroupRef
		var entry GrantedPermission
		var nameJSON, descJSON []byte
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.Name,
			&entry.Permission.ID, &entry.Permission.Code, &nameJSON, &descJSON,
			&entry.Permission.IsActive, &entry.Permission.CreatedAt, &entry.Permission.UpdatedAt); err != nil {
			return nil, err
		}
		if err := entry.Permission.Name.Scan(nameJSON); err != nil {
			return nil, err
		}
		if err := entry.Permission.Description.Scan(descJSON); err != nil {
			return nil, err
		}
		_, entry.Granted = granted[entry.Permission.ID]

		pos, ok := index[ref.ID]
		if !ok {
			pos = len(result)
			index[ref.ID] = pos
			result = append(result, RolePermissionGroup{Group: ref})
		}
		result[pos].Permissions = append(result[pos].Permissions, entry)
	}
	return result, rows.Err()
}

// GroupPermissionIDs returns the distinct permission ids the given groups
// contain, the grant universe of a role referencing exactly those groups.
func (r *Repository) GroupPermissionIDs(ctx context.Context, groupIDs []int64) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	if len(groupIDs) == 0 {
		return ids, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT permission_id FROM permission_group_members WHERE group_id = ANY($1)`, groupIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (r *Repository) loadGrantSet(ctx context.Context, roleID int64) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT permission_id FROM role_permission_grants WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	granted := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		granted[id] = struct{}{}
	}
	return granted, rows.Err()
}

func replaceGroups(ctx context.Context, tx pgx.Tx, roleID int64, groupIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_permission_groups WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for position, groupID := range groupIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permission_groups (role_id, group_id, position) VALUES ($1, $2, $3)`,
			roleID, groupID, position); err != nil {
			return err
		}
	}
	return nil
}

func replaceGrants(ctx context.Context, tx pgx.Tx, roleID int64, permissionIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_permission_grants WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, permissionID := range permissionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permission_grants (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			roleID, permissionID); err != nil {
			return err
		}
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: role name already exists", httpx.ErrDuplicate)
	}
	return err
}
