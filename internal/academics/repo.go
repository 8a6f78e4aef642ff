// Package academics exposes read-only lookups over faculties and study
// programs. The position assignment guard uses it to verify scope
// references; full CRUD over these records lives outside this service.
package academics

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the organizational lookups needed by scope checks.
type Repository interface {
	FacultyExists(ctx context.Context, id int64) (bool, error)
	StudyProgramExists(ctx context.Context, id int64) (bool, error)
	// StudyProgramBelongsTo reports whether the study program is part of
	// the given faculty.
	StudyProgramBelongsTo(ctx context.Context, studyProgramID, facultyID int64) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FacultyExists checks a faculty id.
func (r *PGRepository) FacultyExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM faculties WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// StudyProgramExists checks a study program id.
func (r *PGRepository) StudyProgramExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM study_programs WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// StudyProgramBelongsTo checks the faculty link of a study program.
func (r *PGRepository) StudyProgramBelongsTo(ctx context.Context, studyProgramID, facultyID int64) (bool, error) {
	var belongs bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM study_programs WHERE id = $1 AND faculty_id = $2)`,
		studyProgramID, facultyID).Scan(&belongs)
	return belongs, err
}

var _ Repository = (*PGRepository)(nil)
