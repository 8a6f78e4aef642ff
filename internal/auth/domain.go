package auth

import "time"

// User represents an authenticated user account. TokenVersion is bumped on
// logout-all so every previously issued access token stops validating.
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

// RefreshSession is the persisted registry row behind a refresh token. One
// row per login; multiple concurrent rows per user are expected. Logout
// flags the row revoked instead of deleting it so replayed tokens remain
// detectable until the prune job removes the expired row.
type RefreshSession struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// TokenPair is the credential pair returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
