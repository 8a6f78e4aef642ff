package positions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siakad-core/siakad-core/internal/platform/db"
	"github.com/siakad-core/siakad-core/internal/shared"
)

// Repository defines persistence for positions and assignments. Mutations
// that must honor the single-seat invariant run through WithTx so the seat
// check and the write commit together.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPosition(ctx context.Context, id int64) (*Position, error)
	ListPositions(ctx context.Context) ([]Position, error)
	GetAssignment(ctx context.Context, id int64) (*Assignment, error)
	ListAssignmentsByUser(ctx context.Context, userID int64) ([]Assignment, error)
	// DeleteAssignment removes a row and reports how many were deleted.
	DeleteAssignment(ctx context.Context, id int64) (int64, error)
}

// TxRepository is the transaction-scoped view used by the assignment guard.
type TxRepository interface {
	// GetPositionForUpdate loads the position and locks its row, so
	// concurrent assignment writes for the same position serialize on it.
	GetPositionForUpdate(ctx context.Context, id int64) (*Position, error)
	CountActiveSeatHolders(ctx context.Context, positionID int64, scope ScopeType, scopeID int64, excludeID int64) (int64, error)
	CreateAssignment(ctx context.Context, a Assignment) (*Assignment, error)
	UpdateAssignment(ctx context.Context, a Assignment) (*Assignment, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a read-committed transaction. The isolation
// level matters: the seat check waits on the position row lock, and under
// read committed the count statement takes a fresh snapshot once the lock
// is acquired, so it observes an assignment committed by the lock's
// previous holder. A repeatable-read snapshot would predate that commit and
// let both writers pass the guard.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxReadCommitted(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const positionColumns = `id, name, scope_type, is_single_seat, created_at, updated_at`

// GetPosition fetches a position by id.
func (r *repository) GetPosition(ctx context.Context, id int64) (*Position, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = $1`, id)
	return scanPosition(row)
}

// ListPositions returns all positions ordered by name.
func (r *repository) ListPositions(ctx context.Context) ([]Position, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+positionColumns+` FROM positions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.Name, &p.ScopeType, &p.IsSingleSeat, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const assignmentColumns = `
	id, user_id, position_id, faculty_id, study_program_id,
	start_date, end_date, is_active, created_at, updated_at`

// GetAssignment fetches an assignment by id.
func (r *repository) GetAssignment(ctx context.Context, id int64) (*Assignment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM position_assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

// ListAssignmentsByUser returns all assignments held by a user.
func (r *repository) ListAssignmentsByUser(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM position_assignments
		WHERE user_id = $1
		ORDER BY start_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.PositionID, &a.FacultyID, &a.StudyProgramID,
			&a.StartDate, &a.EndDate, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAssignment performs a conditional delete.
func (r *repository) DeleteAssignment(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM position_assignments WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetPositionForUpdate loads and row-locks the position.
func (t *txRepository) GetPositionForUpdate(ctx context.Context, id int64) (*Position, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1 FOR UPDATE`, id)
	return scanPosition(row)
}

// CountActiveSeatHolders counts active assignments for (position, scope
// value), optionally excluding one assignment id so updates do not
// conflict with themselves. The scope value column follows the position's
// scope type.
func (t *txRepository) CountActiveSeatHolders(ctx context.Context, positionID int64, scope ScopeType, scopeID int64, excludeID int64) (int64, error) {
	scopeColumn := "faculty_id"
	if scope == ScopeStudyProgram {
		scopeColumn = "study_program_id"
	}
	var count int64
	err := t.tx.QueryRow(ctx, `
		SELECT count(*)
		FROM position_assignments
		WHERE position_id = $1
		  AND is_active
		  AND `+scopeColumn+` = $2
		  AND id <> $3`,
		positionID, scopeID, excludeID).Scan(&count)
	return count, err
}

// CreateAssignment inserts an assignment row.
func (t *txRepository) CreateAssignment(ctx context.Context, a Assignment) (*Assignment, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO position_assignments (
			user_id, position_id, faculty_id, study_program_id,
			start_date, end_date, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+assignmentColumns,
		a.UserID, a.PositionID, a.FacultyID, a.StudyProgramID,
		a.StartDate, a.EndDate, a.IsActive)
	return scanAssignment(row)
}

// UpdateAssignment rewrites an assignment row.
func (t *txRepository) UpdateAssignment(ctx context.Context, a Assignment) (*Assignment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE position_assignments SET
			user_id = $2, position_id = $3, faculty_id = $4, study_program_id = $5,
			start_date = $6, end_date = $7, is_active = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+assignmentColumns,
		a.ID, a.UserID, a.PositionID, a.FacultyID, a.StudyProgramID,
		a.StartDate, a.EndDate, a.IsActive)
	return scanAssignment(row)
}

func scanPosition(row pgx.Row) (*Position, error) {
	var p Position
	err := row.Scan(&p.ID, &p.Name, &p.ScopeType, &p.IsSingleSeat, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.UserID, &a.PositionID, &a.FacultyID, &a.StudyProgramID,
		&a.StartDate, &a.EndDate, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
