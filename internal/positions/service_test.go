package positions_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siakad-core/siakad-core/internal/positions"
	"github.com/siakad-core/siakad-core/internal/shared"
)

type memoryAcademics struct {
	// studyProgramFaculty maps study program id to its owning faculty.
	faculties           map[int64]bool
	studyProgramFaculty map[int64]int64
}

func (m *memoryAcademics) FacultyExists(ctx context.Context, id int64) (bool, error) {
	return m.faculties[id], nil
}

func (m *memoryAcademics) StudyProgramExists(ctx context.Context, id int64) (bool, error) {
	_, ok := m.studyProgramFaculty[id]
	return ok, nil
}

func (m *memoryAcademics) StudyProgramBelongsTo(ctx context.Context, studyProgramID, facultyID int64) (bool, error) {
	owner, ok := m.studyProgramFaculty[studyProgramID]
	return ok && owner == facultyID, nil
}

type memoryPositionsRepo struct {
	// mu serializes guard transactions the way the position row lock does;
	// reads inside the callback see prior commits, matching read committed.
	mu          sync.Mutex
	nextID      int64
	positions   map[int64]*positions.Position
	assignments map[int64]*positions.Assignment
}

func newMemoryPositionsRepo() *memoryPositionsRepo {
	return &memoryPositionsRepo{
		nextID:      1,
		positions:   make(map[int64]*positions.Position),
		assignments: make(map[int64]*positions.Assignment),
	}
}

func (r *memoryPositionsRepo) addPosition(id int64, name string, scope positions.ScopeType, singleSeat bool) {
	r.positions[id] = &positions.Position{ID: id, Name: name, ScopeType: scope, IsSingleSeat: singleSeat}
}

func (r *memoryPositionsRepo) WithTx(ctx context.Context, fn func(context.Context, positions.TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, r)
}

func (r *memoryPositionsRepo) GetPosition(ctx context.Context, id int64) (*positions.Position, error) {
	p, ok := r.positions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memoryPositionsRepo) GetPositionForUpdate(ctx context.Context, id int64) (*positions.Position, error) {
	return r.GetPosition(ctx, id)
}

func (r *memoryPositionsRepo) ListPositions(ctx context.Context) ([]positions.Position, error) {
	out := make([]positions.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memoryPositionsRepo) GetAssignment(ctx context.Context, id int64) (*positions.Assignment, error) {
	a, ok := r.assignments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memoryPositionsRepo) ListAssignmentsByUser(ctx context.Context, userID int64) ([]positions.Assignment, error) {
	var out []positions.Assignment
	for _, a := range r.assignments {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memoryPositionsRepo) DeleteAssignment(ctx context.Context, id int64) (int64, error) {
	if _, ok := r.assignments[id]; !ok {
		return 0, nil
	}
	delete(r.assignments, id)
	return 1, nil
}

func (r *memoryPositionsRepo) CountActiveSeatHolders(ctx context.Context, positionID int64, scope positions.ScopeType, scopeID int64, excludeID int64) (int64, error) {
	var count int64
	for _, a := range r.assignments {
		if a.PositionID != positionID || !a.IsActive || a.ID == excludeID {
			continue
		}
		switch scope {
		case positions.ScopeFaculty:
			if a.FacultyID != nil && *a.FacultyID == scopeID {
				count++
			}
		case positions.ScopeStudyProgram:
			if a.StudyProgramID != nil && *a.StudyProgramID == scopeID {
				count++
			}
		}
	}
	return count, nil
}

func (r *memoryPositionsRepo) CreateAssignment(ctx context.Context, a positions.Assignment) (*positions.Assignment, error) {
	a.ID = r.nextID
	r.nextID++
	r.assignments[a.ID] = &a
	copied := a
	return &copied, nil
}

func (r *memoryPositionsRepo) UpdateAssignment(ctx context.Context, a positions.Assignment) (*positions.Assignment, error) {
	if _, ok := r.assignments[a.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	r.assignments[a.ID] = &a
	copied := a
	return &copied, nil
}

func int64Ptr(v int64) *int64 { return &v }

func newPositionsService(t *testing.T) (*positions.Service, *memoryPositionsRepo) {
	t.Helper()
	repo := newMemoryPositionsRepo()
	repo.addPosition(1, "Dean", positions.ScopeFaculty, true)
	repo.addPosition(2, "Head of Program", positions.ScopeStudyProgram, true)
	repo.addPosition(3, "Faculty Senate Member", positions.ScopeFaculty, false)
	academicsRepo := &memoryAcademics{
		faculties: map[int64]bool{10: true, 11: true},
		// Programs 100 and 101 belong to faculty 10, 102 to faculty 11.
		studyProgramFaculty: map[int64]int64{100: 10, 101: 10, 102: 11},
	}
	return positions.NewService(repo, academicsRepo, nil), repo
}

func deanInput(userID int64, facultyID int64) positions.AssignmentInput {
	return positions.AssignmentInput{
		UserID:     userID,
		PositionID: 1,
		FacultyID:  int64Ptr(facultyID),
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:   true,
	}
}

func TestCreateAssignment(t *testing.T) {
	service, _ := newPositionsService(t)

	created, err := service.Create(context.Background(), deanInput(1, 10))
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.True(t, created.IsActive)
}

func TestSingleSeatOccupied(t *testing.T) {
	service, _ := newPositionsService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, deanInput(1, 10))
	require.NoError(t, err)

	// Second active dean of the same faculty is rejected.
	_, err = service.Create(ctx, deanInput(2, 10))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorContains(t, err, "occupied")

	// A different faculty is a different seat.
	_, err = service.Create(ctx, deanInput(2, 11))
	require.NoError(t, err)
}

func TestConcurrentSingleSeatCreates(t *testing.T) {
	service, repo := newPositionsService(t)
	ctx := context.Background()

	// Both writers race for the same dean seat. The guard counts holders
	// after acquiring the position lock, so exactly one insert commits.
	const writers = 2
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for userID := int64(1); userID <= writers; userID++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := service.Create(ctx, deanInput(userID, 10))
			errs <- err
		}(userID)
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, shared.ErrValidation)
		require.ErrorContains(t, err, "occupied")
		rejected++
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)

	var active int
	for _, a := range repo.assignments {
		if a.IsActive {
			active++
		}
	}
	require.Equal(t, 1, active)
}

func TestSingleSeatIgnoresInactiveHolders(t *testing.T) {
	service, _ := newPositionsService(t)
	ctx := context.Background()

	first, err := service.Create(ctx, deanInput(1, 10))
	require.NoError(t, err)

	_, err = service.End(ctx, first.ID, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// The seat is free after its holder is ended.
	_, err = service.Create(ctx, deanInput(2, 10))
	require.NoError(t, err)
}

func TestMultiSeatPositionAllowsManyHolders(t *testing.T) {
	service, _ := newPositionsService(t)
	ctx := context.Background()

	for userID := int64(1); userID <= 3; userID++ {
		_, err := service.Create(ctx, positions.AssignmentInput{
			UserID:     userID,
			PositionID: 3,
			FacultyID:  int64Ptr(10),
			StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			IsActive:   true,
		})
		require.NoError(t, err)
	}
}

func TestUpdateDoesNotConflictWithItself(t *testing.T) {
	service, _ := newPositionsService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, deanInput(1, 10))
	require.NoError(t, err)

	input := deanInput(1, 10)
	input.StartDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	updated, err := service.Update(ctx, created.ID, input)
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
}

func TestUpdateIntoOccupiedSeatRejected(t *testing.T) {
	service, _ := newPositionsService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, deanInput(1, 10))
	require.NoError(t, err)
	other, err := service.Create(ctx, deanInput(2, 11))
	require.NoError(t, err)

	// Moving the faculty 11 dean onto faculty 10 collides with its holder.
	_, err = service.Update(ctx, other.ID, deanInput(2, 10))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorContains(t, err, "occupied")
}

func TestScopeValidation(t *testing.T) {
	service, _ := newPositionsService(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		input   positions.AssignmentInput
		errIs   error
		errText string
	}{
		{
			name:    "faculty scope requires faculty",
			input:   positions.AssignmentInput{UserID: 1, PositionID: 1, StartDate: start, IsActive: true},
			errIs:   shared.ErrValidation,
			errText: "faculty is required",
		},
		{
			name:    "unknown faculty",
			input:   positions.AssignmentInput{UserID: 1, PositionID: 1, FacultyID: int64Ptr(99), StartDate: start, IsActive: true},
			errIs:   shared.ErrValidation,
			errText: "unknown faculty",
		},
		{
			name: "study program outside faculty",
			input: positions.AssignmentInput{
				UserID: 1, PositionID: 1,
				FacultyID: int64Ptr(10), StudyProgramID: int64Ptr(102),
				StartDate: start, IsActive: true,
			},
			errIs:   shared.ErrValidation,
			errText: "does not belong",
		},
		{
			name:    "program scope requires study program",
			input:   positions.AssignmentInput{UserID: 1, PositionID: 2, StartDate: start, IsActive: true},
			errIs:   shared.ErrValidation,
			errText: "study program is required",
		},
		{
			name: "program scope forbids faculty",
			input: positions.AssignmentInput{
				UserID: 1, PositionID: 2,
				FacultyID: int64Ptr(10), StudyProgramID: int64Ptr(100),
				StartDate: start, IsActive: true,
			},
			errIs:   shared.ErrValidation,
			errText: "faculty must not be set",
		},
		{
			name: "unknown study program",
			input: positions.AssignmentInput{
				UserID: 1, PositionID: 2, StudyProgramID: int64Ptr(999),
				StartDate: start, IsActive: true,
			},
			errIs:   shared.ErrValidation,
			errText: "unknown study program",
		},
		{
			name:  "unknown position",
			input: positions.AssignmentInput{UserID: 1, PositionID: 99, FacultyID: int64Ptr(10), StartDate: start},
			errIs: shared.ErrNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Create(ctx, tc.input)
			require.ErrorIs(t, err, tc.errIs)
			if tc.errText != "" {
				require.ErrorContains(t, err, tc.errText)
			}
		})
	}
}

func TestEndDateBeforeStartDateRejected(t *testing.T) {
	service, _ := newPositionsService(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	input := deanInput(1, 10)
	input.StartDate = start
	input.EndDate = &end
	_, err := service.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input.EndDate = nil
	created, err := service.Create(ctx, input)
	require.NoError(t, err)

	_, err = service.End(ctx, created.ID, start.AddDate(0, 0, -1))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestEndClosesAssignment(t *testing.T) {
	service, repo := newPositionsService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, deanInput(1, 10))
	require.NoError(t, err)

	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	updated, err := service.End(ctx, created.ID, end)
	require.NoError(t, err)
	require.False(t, updated.IsActive)
	require.NotNil(t, updated.EndDate)
	require.True(t, updated.EndDate.Equal(end))

	require.False(t, repo.assignments[created.ID].IsActive)
}

func TestDeleteAssignment(t *testing.T) {
	service, _ := newPositionsService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, deanInput(1, 10))
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, created.ID))
	require.ErrorIs(t, service.Delete(ctx, created.ID), shared.ErrNotFound)
}
