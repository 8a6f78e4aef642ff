package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siakad-core/siakad-core/internal/shared"
)

// Service implements the permission evaluator and role management rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Authorize resolves whether the role may perform action on the feature. It
// never returns an error to the caller: unknown features, missing
// permission rows and repository failures all evaluate to false.
func (s *Service) Authorize(ctx context.Context, roleID int64, featureName string, action Action) bool {
	perm, err := s.repo.GetPermission(ctx, roleID, featureName)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) && s.logger != nil {
			s.logger.Error("permission lookup",
				slog.Int64("role_id", roleID),
				slog.String("feature", featureName),
				slog.Any("error", err))
		}
		return false
	}
	return perm.Allows(action)
}

// RoleInput is the payload for creating or updating a role.
type RoleInput struct {
	Name        string
	Description string
	Permissions []PermissionInput
}

// CreateRole inserts a new role with its permission matrix. A request
// naming the same feature twice is rejected before touching storage.
func (s *Service) CreateRole(ctx context.Context, input RoleInput) (*Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	if err := rejectDuplicateFeatures(input.Permissions); err != nil {
		return nil, err
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(input.Description), input.Permissions)
}

// UpdateRole renames a role and replaces its permission set. The protected
// system role cannot be renamed.
func (s *Service) UpdateRole(ctx context.Context, id int64, input RoleInput) (*Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	if err := rejectDuplicateFeatures(input.Permissions); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Name == shared.SuperAdminRole && name != shared.SuperAdminRole {
		return nil, fmt.Errorf("%w: %s cannot be renamed", shared.ErrProtectedResource, shared.SuperAdminRole)
	}

	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(input.Description), input.Permissions)
}

// DeleteRole removes a role. The protected system role is never deletable;
// a role referenced by users is reported as a conflict. Exactly one of N
// concurrent deletes succeeds, the rest observe not-found.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.Name == shared.SuperAdminRole {
		return fmt.Errorf("%w: %s cannot be deleted", shared.ErrProtectedResource, shared.SuperAdminRole)
	}
	deleted, err := s.repo.DeleteRole(ctx, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetRole fetches a role with its permission matrix.
func (s *Service) GetRole(ctx context.Context, id int64) (*RoleWithPermissions, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := s.repo.ListRolePermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RoleWithPermissions{Role: *role, Permissions: perms}, nil
}

// RolePermissions returns the permission matrix of a role.
func (s *Service) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.repo.ListRolePermissions(ctx, roleID)
}

// RoleName resolves a role id to its name.
func (s *Service) RoleName(ctx context.Context, roleID int64) (string, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return "", err
	}
	return role.Name, nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListFeatures returns all features.
func (s *Service) ListFeatures(ctx context.Context) ([]Feature, error) {
	return s.repo.ListFeatures(ctx)
}

// EnsureCoreFeatures seeds the feature catalog on boot. Idempotent.
func (s *Service) EnsureCoreFeatures(ctx context.Context) error {
	return s.repo.EnsureFeatures(ctx, shared.CoreFeatures())
}

func rejectDuplicateFeatures(perms []PermissionInput) error {
	seen := make(map[int64]struct{}, len(perms))
	for _, p := range perms {
		if _, ok := seen[p.FeatureID]; ok {
			return fmt.Errorf("%w: duplicate permission for feature %d", shared.ErrConflict, p.FeatureID)
		}
		seen[p.FeatureID] = struct{}{}
	}
	return nil
}
