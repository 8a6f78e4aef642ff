package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/siakad-core/siakad-core/internal/platform/httpx"
	"github.com/siakad-core/siakad-core/internal/shared"
)

// Handler manages role and feature endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	guard     Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), guard: guard}
}

// MountRoutes registers rbac routes. The router group is expected to sit
// behind the authentication middleware; /roles/me needs nothing more.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles/me", h.currentRole)

	r.Group(func(r chi.Router) {
		r.With(h.guard.Require(shared.FeatureRoleManagement, ActionRead)).Get("/roles", h.listRoles)
		r.With(h.guard.Require(shared.FeatureRoleManagement, ActionRead)).Get("/roles/{id}", h.getRole)
		r.With(h.guard.Require(shared.FeatureRoleManagement, ActionCreate)).Post("/roles", h.createRole)
		r.With(h.guard.Require(shared.FeatureRoleManagement, ActionUpdate)).Put("/roles/{id}", h.updateRole)
		r.With(h.guard.Require(shared.FeatureRoleManagement, ActionDelete)).Delete("/roles/{id}", h.deleteRole)
		r.With(h.guard.Require(shared.FeatureRoleManagement, ActionRead)).Get("/features", h.listFeatures)
	})
}

type permissionPayload struct {
	FeatureID   int64  `json:"feature_id" validate:"required"`
	FeatureName string `json:"feature_name,omitempty"`
	CanCreate   bool   `json:"can_create"`
	CanRead     bool   `json:"can_read"`
	CanUpdate   bool   `json:"can_update"`
	CanDelete   bool   `json:"can_delete"`
	CanPrint    bool   `json:"can_print"`
}

type rolePayload struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Permissions []permissionPayload `json:"permissions,omitempty"`
}

type roleRequest struct {
	Name        string              `json:"name" validate:"required"`
	Description string              `json:"description"`
	Permissions []permissionPayload `json:"permissions" validate:"dive"`
}

func (h *Handler) currentRole(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	perms, err := h.service.RolePermissions(r.Context(), principal.RoleID)
	if err != nil {
		h.logger.Error("list role permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := struct {
		RoleName    string              `json:"roleName"`
		Permissions []permissionPayload `json:"permissions"`
	}{
		RoleName:    principal.RoleName,
		Permissions: toPermissionPayloads(perms),
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]rolePayload, 0, len(roles))
	for _, role := range roles {
		out = append(out, rolePayload{ID: role.ID, Name: role.Name, Description: role.Description})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rolePayload{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: toPermissionPayloads(role.Permissions),
	})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeRoleRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rolePayload{ID: role.ID, Name: role.Name, Description: role.Description})
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeRoleRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rolePayload{ID: role.ID, Name: role.Name, Description: role.Description})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := h.service.ListFeatures(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, features)
}

func (h *Handler) decodeRoleRequest(r *http.Request) (RoleInput, error) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return RoleInput{}, shared.ErrValidation
	}
	if err := h.validator.Struct(req); err != nil {
		return RoleInput{}, shared.ErrValidation
	}
	perms := make([]PermissionInput, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, PermissionInput{
			FeatureID: p.FeatureID,
			CanCreate: p.CanCreate,
			CanRead:   p.CanRead,
			CanUpdate: p.CanUpdate,
			CanDelete: p.CanDelete,
			CanPrint:  p.CanPrint,
		})
	}
	return RoleInput{Name: req.Name, Description: req.Description, Permissions: perms}, nil
}

func toPermissionPayloads(perms []Permission) []permissionPayload {
	out := make([]permissionPayload, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionPayload{
			FeatureID:   p.FeatureID,
			FeatureName: p.FeatureName,
			CanCreate:   p.CanCreate,
			CanRead:     p.CanRead,
			CanUpdate:   p.CanUpdate,
			CanDelete:   p.CanDelete,
			CanPrint:    p.CanPrint,
		})
	}
	return out
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrValidation
	}
	return id, nil
}
