package users

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

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userSelect = `SELECT u.id, u.email, u.name, u.is_admin, u.is_active, u.role_id, r.name,
       u.created_at, u.updated_at
FROM users u
LEFT JOIN roles r ON r.id = u.role_id`

// List returns a page of users, optionally filtered by email or name.
func (r *Repository) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	page := shared.NewPagination(req.Page, req.Limit, 0)

	where := ""
	countArgs := []any{}
	if req.Search != "" {
		where = ` WHERE u.email ILIKE $1 OR u.name ILIKE $1`
		countArgs = append(countArgs, "%"+req.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users u`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(countArgs, page.PerPage, page.Offset())
	query := fmt.Sprintf("%s%s ORDER BY u.email LIMIT $%d OFFSET $%d",
		userSelect, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, user)
	}
	return result, total, rows.Err()
}

// Get fetches one user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, httpx.ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// GetByEmail fetches one user with its password hash for authentication.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, string, error) {
	var user User
	var hash string
	var roleID *int64
	var roleName *string
	err := r.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.name, u.is_admin, u.is_active, u.password_hash, u.role_id, r.name,
		        u.created_at, u.updated_at
		 FROM users u
		 LEFT JOIN roles r ON r.id = u.role_id
		 WHERE lower(u.email) = lower($1)`, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.IsAdmin, &user.IsActive, &hash,
			&roleID, &roleName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, "", httpx.ErrNotFound
		}
		return User{}, "", err
	}
	attachRole(&user, roleID, roleName)
	return user, hash, nil
}

// Create inserts an account with a pre-hashed password.
func (r *Repository) Create(ctx context.Context, user User, passwordHash string, roleID *int64) (User, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, is_admin, is_active, role_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		user.Email, user.Name, passwordHash, user.IsAdmin, user.IsActive, roleID).Scan(&id)
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	return r.Get(ctx, id)
}

// Update applies only the provided fields.
func (r *Repository) Update(ctx context.Context, id int64, req UpdateUserRequest) (User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if req.Name != nil {
		appendSet("name", *req.Name)
	}
	if req.IsActive != nil {
		appendSet("is_active", *req.IsActive)
	}

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1`, strings.Join(sets, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, httpx.ErrNotFound
	}
	return r.Get(ctx, id)
}

// SetRole points the user at a role, or clears it with a nil id.
func (r *Repository) SetRole(ctx context.Context, userID int64, roleID *int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	var roleID *int64
	var roleName *string
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.IsAdmin, &user.IsActive,
		&roleID, &roleName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	attachRole(&user, roleID, roleName)
	return user, nil
}

func attachRole(user *User, roleID *int64, roleName *string) {
	if roleID == nil {
		return
	}
	ref := RoleRef{ID: *roleID}
	if roleName != nil {
		ref.Name = *roleName
	}
	user.Role = &ref
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	}
	return err
}
