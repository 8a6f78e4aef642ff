package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siakad-core/siakad-core/internal/platform/db"
	"github.com/siakad-core/siakad-core/internal/shared"
)

// PermissionInput is the per-feature flag set supplied when creating or
// updating a role. Missing flags default to false.
type PermissionInput struct {
	FeatureID int64
	CanCreate bool
	CanRead   bool
	CanUpdate bool
	CanDelete bool
	CanPrint  bool
}

// Repository defines persistence operations for roles, features and the
// permission matrix.
type Repository interface {
	GetPermission(ctx context.Context, roleID int64, featureName string) (*Permission, error)
	ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name, description string, perms []PermissionInput) (*Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string, perms []PermissionInput) (*Role, error)
	// DeleteRole removes the role atomically and reports how many rows were
	// deleted, so concurrent deletes resolve to one success and N-1 misses.
	DeleteRole(ctx context.Context, id int64) (int64, error)
	ListFeatures(ctx context.Context) ([]Feature, error)
	// EnsureFeatures upserts the feature catalog by unique name.
	EnsureFeatures(ctx context.Context, names []string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetPermission loads the permission row for (role, feature name).
func (r *PGRepository) GetPermission(ctx context.Context, roleID int64, featureName string) (*Permission, error) {
	var perm Permission
	err := r.pool.QueryRow(ctx, `
		SELECT p.feature_id, f.name, p.can_create, p.can_read, p.can_update, p.can_delete, p.can_print
		FROM permissions p
		JOIN features f ON f.id = p.feature_id
		WHERE p.role_id = $1 AND f.name = $2`, roleID, featureName).
		Scan(&perm.FeatureID, &perm.FeatureName, &perm.CanCreate, &perm.CanRead,
			&perm.CanUpdate, &perm.CanDelete, &perm.CanPrint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &perm, nil
}

// ListRolePermissions returns the full permission matrix of a role.
func (r *PGRepository) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.feature_id, f.name, p.can_create, p.can_read, p.can_update, p.can_delete, p.can_print
		FROM permissions p
		JOIN features f ON f.id = p.feature_id
		WHERE p.role_id = $1
		ORDER BY f.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.FeatureID, &perm.FeatureName, &perm.CanCreate, &perm.CanRead,
			&perm.CanUpdate, &perm.CanDelete, &perm.CanPrint); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts the role and its permission rows in one transaction.
func (r *PGRepository) CreateRole(ctx context.Context, name, description string, perms []PermissionInput) (*Role, error) {
	var role Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (name, description) VALUES ($1, $2)
			RETURNING id, name, description, created_at, updated_at`, name, description).
			Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
		if err != nil {
			return err
		}
		return insertPermissions(ctx, tx, role.ID, perms)
	})
	if err != nil {
		return nil, mapRoleError(err)
	}
	return &role, nil
}

// UpdateRole updates role fields and replaces its permission set.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, name, description string, perms []PermissionInput) (*Role, error) {
	var role Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE roles SET name = $2, description = $3, updated_at = now()
			WHERE id = $1
			RETURNING id, name, description, created_at, updated_at`, id, name, description).
			Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		return insertPermissions(ctx, tx, id, perms)
	})
	if err != nil {
		return nil, mapRoleError(err)
	}
	return &role, nil
}

// DeleteRole performs a conditional delete. A role still referenced by any
// user is kept by the foreign key and reported as a conflict.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return 0, mapRoleError(err)
	}
	return tag.RowsAffected(), nil
}

// ListFeatures returns all features ordered by name.
func (r *PGRepository) ListFeatures(ctx context.Context) ([]Feature, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM features ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var features []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.ID, &f.Name, &f.Description); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// EnsureFeatures inserts any missing feature rows. Existing rows are left
// untouched, so boot-time seeding is safe to repeat.
func (r *PGRepository) EnsureFeatures(ctx context.Context, names []string) error {
	for _, name := range names {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO features (name) VALUES ($1)
			ON CONFLICT (name) DO NOTHING`, name)
		if err != nil {
			return fmt.Errorf("rbac: ensure feature %s: %w", name, err)
		}
	}
	return nil
}

func insertPermissions(ctx context.Context, tx pgx.Tx, roleID int64, perms []PermissionInput) error {
	for _, p := range perms {
		_, err := tx.Exec(ctx, `
			INSERT INTO permissions (role_id, feature_id, can_create, can_read, can_update, can_delete, can_print)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			roleID, p.FeatureID, p.CanCreate, p.CanRead, p.CanUpdate, p.CanDelete, p.CanPrint)
		if err != nil {
			return err
		}
	}
	return nil
}

// mapRoleError translates postgres constraint violations into the domain
// taxonomy: unique violations are conflicts, a missing feature reference is
// a validation failure, a role still in use blocks deletion.
func mapRoleError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", shared.ErrConflict, pgErr.ConstraintName)
	case "23503":
		if pgErr.TableName == "users" || pgErr.ConstraintName == "users_role_id_fkey" {
			return fmt.Errorf("%w: role is in use", shared.ErrConflict)
		}
		return fmt.Errorf("%w: unknown feature reference", shared.ErrValidation)
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
