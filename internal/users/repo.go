package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siakad-core/siakad-core/internal/shared"
)

// Repository defines persistence operations for user management.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, email, passwordHash string, roleID int64) (*User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	AssignRole(ctx context.Context, id, roleID int64) error
	// Delete removes the user atomically and reports how many rows were
	// deleted. Owned sessions and assignments cascade with the row.
	Delete(ctx context.Context, id int64) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `
	u.id, u.email, u.password_hash, u.is_active, u.role_id, r.name,
	u.token_version, u.created_at, u.updated_at`

// GetByID fetches a user by primary key.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id)
	return scanUser(row)
}

// List returns all users ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN roles r ON r.id = u.role_id
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.RoleID,
			&u.RoleName, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Create inserts a user. Email uniqueness is case-insensitive, enforced by
// a lower(email) unique index.
func (r *PGRepository) Create(ctx context.Context, email, passwordHash string, roleID int64) (*User, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, is_active, role_id, token_version)
		VALUES ($1, $2, TRUE, $3, 0)
		RETURNING id`, strings.ToLower(strings.TrimSpace(email)), passwordHash, roleID).Scan(&id)
	if err != nil {
		return nil, mapUserError(err)
	}
	return r.GetByID(ctx, id)
}

// SetActive toggles the account flag.
func (r *PGRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssignRole repoints the user's role reference. Takes effect on the next
// request since permissions are re-read from storage every check.
func (r *PGRepository) AssignRole(ctx context.Context, id, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role_id = $2, updated_at = now() WHERE id = $1`, id, roleID)
	if err != nil {
		return mapUserError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete performs a conditional delete.
func (r *PGRepository) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.RoleID,
		&u.RoleName, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func mapUserError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: email already registered", shared.ErrConflict)
	case "23503":
		return fmt.Errorf("%w: unknown role reference", shared.ErrValidation)
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
