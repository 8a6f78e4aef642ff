package rbac

import "time"

// Role groups a set of per-feature permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Feature is a named protectable resource area, e.g. user_management.
type Feature struct {
	ID          int64
	Name        string
	Description string
}

// Permission is the five-flag authorization record for a (role, feature)
// pair. At most one row exists per pair.
type Permission struct {
	FeatureID   int64
	FeatureName string
	CanCreate   bool
	CanRead     bool
	CanUpdate   bool
	CanDelete   bool
	CanPrint    bool
}

// RoleWithPermissions is a role plus its full permission matrix.
type RoleWithPermissions struct {
	Role
	Permissions []Permission
}

// Action enumerates the permission flags.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionPrint  Action = "print"
)

// Allows reports whether the permission grants the action. Unknown actions
// are never granted.
func (p Permission) Allows(action Action) bool {
	switch action {
	case ActionCreate:
		return p.CanCreate
	case ActionRead:
		return p.CanRead
	case ActionUpdate:
		return p.CanUpdate
	case ActionDelete:
		return p.CanDelete
	case ActionPrint:
		return p.CanPrint
	}
	return false
}
