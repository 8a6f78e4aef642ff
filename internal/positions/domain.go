package positions

import "time"

// ScopeType is the organizational boundary a position applies to.
type ScopeType string

const (
	ScopeFaculty      ScopeType = "FACULTY"
	ScopeStudyProgram ScopeType = "STUDY_PROGRAM"
)

// Position is an appointable organizational role, e.g. dean or head of
// study program. A single-seat position admits at most one active
// assignment per scope value.
type Position struct {
	ID           int64
	Name         string
	ScopeType    ScopeType
	IsSingleSeat bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Assignment appoints a user to a position within one scope. Exactly one
// of FacultyID/StudyProgramID is set, matching the position's scope type.
type Assignment struct {
	ID             int64
	UserID         int64
	PositionID     int64
	FacultyID      *int64
	StudyProgramID *int64
	StartDate      time.Time
	EndDate        *time.Time
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
