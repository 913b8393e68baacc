package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the permission catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const permissionColumns = `id, code, name, description, is_active, created_at, updated_at`

// List returns a page of permissions with the total count. Search matches the
// code or any translation of the name.
func (r *Repository) List(ctx context.Context, req ListPermissionsRequest) ([]Permission, int, error) {
	page := shared.NewPagination(req.Page, req.Limit, 0)

	where := ""
	args := []any{}
	if search := strings.TrimSpace(req.Search); search != "" {
		where = `WHERE code ILIKE $1 OR name::text ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permissions `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM permissions %s ORDER BY code LIMIT $%d OFFSET $%d`,
		permissionColumns, where, len(args)+1, len(args)+2)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, 0, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

// Get fetches one permission by id.
func (r *Repository) Get(ctx context.Context, id int64) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	perm, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, httpx.ErrNotFound
		}
		return Permission{}, err
	}
	return perm, nil
}

// Create inserts a new permission. A duplicate code maps to ErrDuplicate.
func (r *Repository) Create(ctx context.Context, perm Permission) (Permission, error) {
	nameJSON, err := perm.Name.Value()
	if err != nil {
		return Permission{}, err
	}
	descJSON, err := perm.Description.Value()
	if err != nil {
		return Permission{}, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (code, name, description, is_active) VALUES ($1, $2, $3, $4) RETURNING `+permissionColumns,
		perm.Code, nameJSON, descJSON, perm.IsActive)
	created, err := scanPermission(row)
	if err != nil {
		return Permission{}, mapUniqueViolation(err)
	}
	return created, nil
}

// Update applies only the provided fields. Returns ErrNotFound when the row
// does not exist.
func (r *Repository) Update(ctx context.Context, id int64, req UpdatePermissionRequest) (Permission, error) {
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
		nameJSON, err := req.Name.Value()
		if err != nil {
			return Permission{}, err
		}
		appendSet("name", nameJSON)
	}
	if req.Description != nil {
		descJSON, err := req.Description.Value()
		if err != nil {
			return Permission{}, err
		}
		appendSet("description", descJSON)
	}
	if req.IsActive != nil {
		appendSet("is_active", *req.IsActive)
	}

	query := fmt.Sprintf(`UPDATE permissions SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), permissionColumns)
	row := r.pool.QueryRow(ctx, query, args...)
	updated, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, httpx.ErrNotFound
		}
		return Permission{}, mapUniqueViolation(err)
	}
	return updated, nil
}

func scanPermission(row pgx.Row) (Permission, error) {
	var perm Permission
	var nameJSON, descJSON []byte
	if err := row.Scan(&perm.ID, &perm.Code, &nameJSON, &descJSON, &perm.IsActive, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
		return Permission{}, err
	}
	if err := perm.Name.Scan(nameJSON); err != nil {
		return Permission{}, err
	}
	if err := perm.Description.Scan(descJSON); err != nil {
		return Permission{}, err
	}
	return perm, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: permission code already exists", httpx.ErrDuplicate)
	}
	return err
}
