package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/siakad-core/siakad-core/internal/shared"
)

// Service wraps the token lifecycle rules: credential verification, token
// pair issuance, refresh, revocation and validation.
type Service struct {
	repo   Repository
	codec  *Codec
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service. now defaults to time.Now when nil.
func NewService(repo Repository, codec *Codec, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, codec: codec, logger: logger, now: now}
}

// Login verifies credentials and issues a fresh token pair. Each call
// creates an independent refresh session row, so concurrent devices hold
// separate revocable sessions.
func (s *Service) Login(ctx context.Context, email, password string) (*User, TokenPair, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, TokenPair{}, fmt.Errorf("auth: find user: %w", err)
		}
		// Burn a comparison on a static hash so unknown emails cost the
		// same as wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, TokenPair{}, shared.ErrAccountDisabled
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh mints a new access token from the session referenced by the
// refresh token. The refresh token is not rotated: it stays valid until its
// own expiry or explicit logout. The access token is built from the current
// user record, so role and token-version changes take effect immediately.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	sessionID, err := s.codec.DecodeRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("auth: load session: %w", err)
		}
		return TokenPair{}, shared.ErrInvalidRefreshToken
	}
	if sess.Revoked || !sess.ExpiresAt.After(s.now()) {
		return TokenPair{}, shared.ErrInvalidRefreshToken
	}

	user, err := s.repo.FindUserByID(ctx, sess.UserID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("auth: load user: %w", err)
		}
		return TokenPair{}, shared.ErrInvalidRefreshToken
	}
	if !user.IsActive {
		return TokenPair{}, shared.ErrAccountDisabled
	}

	access, err := s.codec.EncodeAccess(user)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}

// Logout revokes the session referenced by the refresh token. Idempotent:
// an already-revoked or already-pruned session still reports success. Only
// a token that fails decoding is an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	sessionID, err := s.codec.DecodeRefresh(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: malformed refresh token", shared.ErrValidation)
	}
	return s.repo.RevokeSession(ctx, sessionID)
}

// LogoutAll revokes every session of the user and bumps the token version,
// invalidating all previously issued access and refresh tokens. Concurrent
// calls may all succeed; the combined end state is the same.
func (s *Service) LogoutAll(ctx context.Context, userID int64) error {
	return s.repo.RevokeAllSessions(ctx, userID)
}

// Validate decodes a bearer access token and cross-checks it against the
// live user record: the user must still exist, carry the same token version
// and be active.
func (s *Service) Validate(ctx context.Context, accessToken string) (*shared.Principal, error) {
	claims, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("auth: load user: %w", err)
		}
		return nil, fmt.Errorf("%w: unknown subject", shared.ErrUnauthorized)
	}
	if claims.TokenVersion != user.TokenVersion {
		return nil, fmt.Errorf("%w: stale token version", shared.ErrUnauthorized)
	}
	if !user.IsActive {
		return nil, shared.ErrAccountDisabled
	}
	return &shared.Principal{
		UserID:       user.ID,
		Email:        user.Email,
		RoleID:       user.RoleID,
		RoleName:     user.RoleName,
		TokenVersion: user.TokenVersion,
	}, nil
}

// Prune deletes sessions whose expiry is before now. Revoked but unexpired
// rows survive so replayed refresh tokens keep failing loudly.
func (s *Service) Prune(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.repo.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return 0, err
	}
	if deleted > 0 && s.logger != nil {
		s.logger.Info("pruned refresh sessions", slog.Int64("deleted", deleted))
	}
	return deleted, nil
}

func (s *Service) issue(ctx context.Context, user *User) (TokenPair, error) {
	now := s.now()
	sess := RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.codec.RefreshTTL()),
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return TokenPair{}, fmt.Errorf("auth: create session: %w", err)
	}

	access, err := s.codec.EncodeAccess(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.EncodeRefresh(sess.ID, sess.ExpiresAt)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// bcrypt hash of an unguessable constant, used to equalize timing on
// unknown-email login attempts.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
