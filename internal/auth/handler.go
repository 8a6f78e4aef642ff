package auth

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/siakad-core/siakad-core/internal/platform/httpx"
	"github.com/siakad-core/siakad-core/internal/shared"
)

const refreshCookieName = "refresh_token"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	throttle     *Throttle
	validator    *validator.Validate
	refreshTTL   time.Duration
	secureCookie bool
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, throttle *Throttle, refreshTTL time.Duration, secureCookie bool) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		throttle:     throttle,
		validator:    validator.New(),
		refreshTTL:   refreshTTL,
		secureCookie: secureCookie,
	}
}

// MountRoutes registers auth routes on the provided router. logout/all is
// the only route requiring a valid access token.
func (h *Handler) MountRoutes(r chi.Router, mw Middleware) {
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Post("/logout/all", h.handleLogoutAll)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userPayload struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *userPayload `json:"user,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}

	ip := clientIP(r)
	if !h.throttle.Allow(r.Context(), req.Email, ip) {
		httpx.RespondError(w, shared.ErrTooManyAttempts)
		return
	}

	user, pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.throttle.RecordFailure(r.Context(), req.Email, ip)
		}
		httpx.RespondError(w, err)
		return
	}
	h.throttle.Reset(r.Context(), req.Email, ip)

	h.setRefreshCookie(w, pair.RefreshToken)
	httpx.JSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         &userPayload{ID: user.ID, Email: user.Email, Role: user.RoleName},
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFromRequest(r)
	if token == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing refresh token")
		return
	}
	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFromRequest(r)
	if token == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing refresh token")
		return
	}
	if err := h.service.Logout(r.Context(), token); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	if token := h.refreshTokenFromRequest(r); token == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing refresh token")
		return
	}
	if err := h.service.LogoutAll(r.Context(), principal.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) refreshTokenFromRequest(r *http.Request) string {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
