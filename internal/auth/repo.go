package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siakad-core/siakad-core/internal/platform/db"
	"github.com/siakad-core/siakad-core/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	CreateSession(ctx context.Context, sess RefreshSession) error
	GetSession(ctx context.Context, id string) (*RefreshSession, error)
	RevokeSession(ctx context.Context, id string) error
	// RevokeAllSessions flags every session of the user revoked and bumps
	// the user's token version in a single transaction.
	RevokeAllSessions(ctx context.Context, userID int64) error
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
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

// FindUserByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE lower(u.email) = lower($1)`, email)
	return scanUser(row)
}

// FindUserByID fetches a user by primary key.
func (r *PGRepository) FindUserByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id)
	return scanUser(row)
}

// CreateSession persists a new refresh session row.
func (r *PGRepository) CreateSession(ctx context.Context, sess RefreshSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.UserID, sess.ExpiresAt.UTC(), sess.Revoked, sess.CreatedAt.UTC())
	return err
}

// GetSession loads a refresh session by id.
func (r *PGRepository) GetSession(ctx context.Context, id string) (*RefreshSession, error) {
	var sess RefreshSession
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, expires_at, revoked, created_at
		FROM refresh_sessions
		WHERE id = $1`, id).
		Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.Revoked, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// RevokeSession flags a single session revoked. Revoking an unknown or
// already-revoked session is a no-op so logout stays idempotent.
func (r *PGRepository) RevokeSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_sessions SET revoked = TRUE WHERE id = $1`, id)
	return err
}

// RevokeAllSessions revokes every session of the user and bumps the token
// version atomically. Safe to retry: revocation is idempotent and a further
// increment still invalidates all prior tokens.
func (r *PGRepository) RevokeAllSessions(ctx context.Context, userID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE refresh_sessions SET revoked = TRUE WHERE user_id = $1`, userID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE users SET token_version = token_version + 1, updated_at = now() WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// DeleteExpiredSessions removes sessions past their expiry, revoked or not.
// Revoked but unexpired rows are kept for replay detection.
func (r *PGRepository) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_sessions WHERE expires_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.IsActive, &user.RoleID,
		&user.RoleName, &user.TokenVersion, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
