package positions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siakad-core/siakad-core/internal/academics"
	"github.com/siakad-core/siakad-core/internal/shared"
)

// AssignmentInput is the payload for creating or updating an assignment.
type AssignmentInput struct {
	UserID         int64
	PositionID     int64
	FacultyID      *int64
	StudyProgramID *int64
	StartDate      time.Time
	EndDate        *time.Time
	IsActive       bool
}

// Service enforces the organizational-scope and single-seat rules around
// position assignments. The guard runs inside the same transaction as the
// write, with the position row locked, so two concurrent requests cannot
// both pass the seat check.
type Service struct {
	repo      Repository
	academics academics.Repository
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, academicsRepo academics.Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, academics: academicsRepo, logger: logger}
}

// Create validates and inserts a new assignment.
func (s *Service) Create(ctx context.Context, input AssignmentInput) (*Assignment, error) {
	var created *Assignment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.validate(ctx, tx, input, 0); err != nil {
			return err
		}
		a, err := tx.CreateAssignment(ctx, Assignment{
			UserID:         input.UserID,
			PositionID:     input.PositionID,
			FacultyID:      input.FacultyID,
			StudyProgramID: input.StudyProgramID,
			StartDate:      input.StartDate,
			EndDate:        input.EndDate,
			IsActive:       input.IsActive,
		})
		if err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update validates and rewrites an existing assignment. The record being
// updated is excluded from the seat check so it never conflicts with
// itself.
func (s *Service) Update(ctx context.Context, id int64, input AssignmentInput) (*Assignment, error) {
	existing, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	var updated *Assignment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.validate(ctx, tx, input, existing.ID); err != nil {
			return err
		}
		a, err := tx.UpdateAssignment(ctx, Assignment{
			ID:             existing.ID,
			UserID:         input.UserID,
			PositionID:     input.PositionID,
			FacultyID:      input.FacultyID,
			StudyProgramID: input.StudyProgramID,
			StartDate:      input.StartDate,
			EndDate:        input.EndDate,
			IsActive:       input.IsActive,
		})
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// End closes an assignment: sets the end date and deactivates it, freeing
// the seat.
func (s *Service) End(ctx context.Context, id int64, endDate time.Time) (*Assignment, error) {
	existing, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if endDate.Before(existing.StartDate) {
		return nil, fmt.Errorf("%w: end date before start date", shared.ErrValidation)
	}
	var updated *Assignment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a := *existing
		a.EndDate = &endDate
		a.IsActive = false
		result, err := tx.UpdateAssignment(ctx, a)
		if err != nil {
			return err
		}
		updated = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an assignment. Exactly one of N concurrent deletes
// succeeds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	deleted, err := s.repo.DeleteAssignment(ctx, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Get fetches one assignment.
func (s *Service) Get(ctx context.Context, id int64) (*Assignment, error) {
	return s.repo.GetAssignment(ctx, id)
}

// ListByUser returns all assignments held by a user.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Assignment, error) {
	return s.repo.ListAssignmentsByUser(ctx, userID)
}

// ListPositions returns all appointable positions.
func (s *Service) ListPositions(ctx context.Context) ([]Position, error) {
	return s.repo.ListPositions(ctx)
}

func (s *Service) validate(ctx context.Context, tx TxRepository, input AssignmentInput, excludeID int64) error {
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		return fmt.Errorf("%w: end date before start date", shared.ErrValidation)
	}

	position, err := tx.GetPositionForUpdate(ctx, input.PositionID)
	if err != nil {
		return fmt.Errorf("position: %w", err)
	}

	var scopeID int64
	switch position.ScopeType {
	case ScopeFaculty:
		if input.FacultyID == nil {
			return fmt.Errorf("%w: faculty is required for a faculty-scoped position", shared.ErrValidation)
		}
		exists, err := s.academics.FacultyExists(ctx, *input.FacultyID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: unknown faculty", shared.ErrValidation)
		}
		if input.StudyProgramID != nil {
			belongs, err := s.academics.StudyProgramBelongsTo(ctx, *input.StudyProgramID, *input.FacultyID)
			if err != nil {
				return err
			}
			if !belongs {
				return fmt.Errorf("%w: study program does not belong to the faculty", shared.ErrValidation)
			}
		}
		scopeID = *input.FacultyID
	case ScopeStudyProgram:
		if input.StudyProgramID == nil {
			return fmt.Errorf("%w: study program is required for a program-scoped position", shared.ErrValidation)
		}
		if input.FacultyID != nil {
			return fmt.Errorf("%w: faculty must not be set for a program-scoped position", shared.ErrValidation)
		}
		exists, err := s.academics.StudyProgramExists(ctx, *input.StudyProgramID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: unknown study program", shared.ErrValidation)
		}
		scopeID = *input.StudyProgramID
	default:
		return fmt.Errorf("%w: unknown scope type %q", shared.ErrValidation, position.ScopeType)
	}

	if position.IsSingleSeat && input.IsActive {
		occupied, err := tx.CountActiveSeatHolders(ctx, position.ID, position.ScopeType, scopeID, excludeID)
		if err != nil {
			return err
		}
		if occupied > 0 {
			return fmt.Errorf("%w: position seat is already occupied", shared.ErrValidation)
		}
	}
	return nil
}
