package users

import "time"

// User is a managed user account. Sessions and position assignments are
// owned by the user and removed with it; the role is only referenced.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	RoleID       int64
	RoleName     string
	TokenVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
