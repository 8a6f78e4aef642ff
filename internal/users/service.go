package users

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/siakad-core/siakad-core/internal/shared"
)

// RoleLookup resolves role names, used to enforce the protected-role rules
// without importing the rbac module.
type RoleLookup interface {
	RoleName(ctx context.Context, roleID int64) (string, error)
}

// Service handles user administration rules: the protected system account
// cannot be disabled, duplicated or deleted, and an actor can never delete
// or deactivate themselves.
type Service struct {
	repo   Repository
	roles  RoleLookup
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, roles RoleLookup, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, logger: logger}
}

// Create registers a user with a bcrypt-hashed password. Creating a second
// holder of the protected role is rejected.
func (s *Service) Create(ctx context.Context, email, password string, roleID int64) (*User, error) {
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
	}
	roleName, err := s.roles.RoleName(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown role reference", shared.ErrValidation)
	}
	if roleName == shared.SuperAdminRole {
		return nil, fmt.Errorf("%w: %s cannot be duplicated", shared.ErrProtectedResource, shared.SuperAdminRole)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.Create(ctx, email, string(hash), roleID)
}

// GetByID fetches a user.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// SetActive toggles the account flag. The protected account cannot be
// deactivated, and actors cannot deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) error {
	if !active {
		if actorID == id {
			return fmt.Errorf("%w: cannot deactivate yourself", shared.ErrForbidden)
		}
		target, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if target.RoleName == shared.SuperAdminRole {
			return fmt.Errorf("%w: %s cannot be deactivated", shared.ErrProtectedResource, shared.SuperAdminRole)
		}
	}
	return s.repo.SetActive(ctx, id, active)
}

// AssignRole repoints a user's role. The protected account keeps its role.
func (s *Service) AssignRole(ctx context.Context, id, roleID int64) error {
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if target.RoleName == shared.SuperAdminRole {
		return fmt.Errorf("%w: %s role cannot be changed", shared.ErrProtectedResource, shared.SuperAdminRole)
	}
	return s.repo.AssignRole(ctx, id, roleID)
}

// Delete removes a user together with their sessions and assignments.
// Exactly one of N concurrent deletes succeeds; the rest observe 404.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return fmt.Errorf("%w: cannot delete yourself", shared.ErrForbidden)
	}
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if target.RoleName == shared.SuperAdminRole {
		return fmt.Errorf("%w: %s cannot be deleted", shared.ErrProtectedResource, shared.SuperAdminRole)
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}
	if s.logger != nil {
		s.logger.Info("user deleted", slog.Int64("user_id", id), slog.Int64("actor_id", actorID))
	}
	return nil
}
