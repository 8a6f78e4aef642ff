package positions

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/siakad-core/siakad-core/internal/platform/httpx"
	"github.com/siakad-core/siakad-core/internal/rbac"
	"github.com/siakad-core/siakad-core/internal/shared"
)

// Handler manages position assignment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	guard     rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), guard: guard}
}

// MountRoutes registers position routes behind the position_management
// feature permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.Require(shared.FeaturePositionManagement, rbac.ActionRead)).Get("/", h.listPositions)
	r.With(h.guard.Require(shared.FeaturePositionManagement, rbac.ActionRead)).Get("/assignments/{id}", h.getAssignment)
	r.With(h.guard.Require(shared.FeaturePositionManagement, rbac.ActionRead)).Get("/assignments/user/{id}", h.listByUser)
	r.With(h.guard.Require(shared.FeaturePositionManagement, rbac.ActionCreate)).Post("/assignments", h.createAssignment)
	r.With(h.guard.Require(shared.FeaturePositionManagement, rbac.ActionUpdate)).Put("/assignments/{id}", h.updateAssignment)
	r.With(h.guard.Require(shared.FeaturePositionManagement, rbac.ActionUpdate)).Post("/assignments/{id}/end", h.endAssignment)
	r.With(h.guard.Require(shared.FeaturePositionManagement, rbac.ActionDelete)).Delete("/assignments/{id}", h.deleteAssignment)
}

type assignmentRequest struct {
	UserID         int64  `json:"user_id" validate:"required"`
	PositionID     int64  `json:"position_id" validate:"required"`
	FacultyID      *int64 `json:"faculty_id"`
	StudyProgramID *int64 `json:"study_program_id"`
	StartDate      string `json:"start_date" validate:"required"`
	EndDate        string `json:"end_date"`
	IsActive       bool   `json:"is_active"`
}

type assignmentPayload struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	PositionID     int64  `json:"position_id"`
	FacultyID      *int64 `json:"faculty_id,omitempty"`
	StudyProgramID *int64 `json:"study_program_id,omitempty"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date,omitempty"`
	IsActive       bool   `json:"is_active"`
}

func (h *Handler) listPositions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPositions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) getAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssignmentPayload(a))
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListByUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]assignmentPayload, 0, len(list))
	for i := range list {
		out = append(out, toAssignmentPayload(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeAssignment(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAssignmentPayload(a))
}

func (h *Handler) updateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := h.decodeAssignment(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssignmentPayload(a))
}

type endRequest struct {
	EndDate string `json:"end_date" validate:"required"`
}

func (h *Handler) endAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req endRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.End(r.Context(), id, endDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssignmentPayload(a))
}

func (h *Handler) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeAssignment(r *http.Request) (AssignmentInput, error) {
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return AssignmentInput{}, shared.ErrValidation
	}
	if err := h.validator.Struct(req); err != nil {
		return AssignmentInput{}, shared.ErrValidation
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return AssignmentInput{}, err
	}
	input := AssignmentInput{
		UserID:         req.UserID,
		PositionID:     req.PositionID,
		FacultyID:      req.FacultyID,
		StudyProgramID: req.StudyProgramID,
		StartDate:      start,
		IsActive:       req.IsActive,
	}
	if req.EndDate != "" {
		end, err := parseDate(req.EndDate)
		if err != nil {
			return AssignmentInput{}, err
		}
		input.EndDate = &end
	}
	return input, nil
}

func toAssignmentPayload(a *Assignment) assignmentPayload {
	p := assignmentPayload{
		ID:             a.ID,
		UserID:         a.UserID,
		PositionID:     a.PositionID,
		FacultyID:      a.FacultyID,
		StudyProgramID: a.StudyProgramID,
		StartDate:      a.StartDate.Format(time.DateOnly),
		IsActive:       a.IsActive,
	}
	if a.EndDate != nil {
		p.EndDate = a.EndDate.Format(time.DateOnly)
	}
	return p
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, shared.ErrValidation
	}
	return t, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrValidation
	}
	return id, nil
}
