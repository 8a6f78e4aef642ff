package rbac

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/siakad-core/siakad-core/internal/platform/httpx"
	"github.com/siakad-core/siakad-core/internal/shared"
)

// Middleware wires permission checks for HTTP handlers. It expects the
// authentication middleware to have placed a principal in the context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require guards a route behind a single (feature, action) permission.
func (m Middleware) Require(feature string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if !m.Service.Authorize(r.Context(), principal.RoleID, feature, action) {
				if m.Logger != nil {
					m.Logger.Warn("permission denied",
						slog.Int64("user_id", principal.UserID),
						slog.String("feature", feature),
						slog.String("action", string(action)))
				}
				httpx.RespondError(w, fmt.Errorf("%w: %s.%s", shared.ErrForbidden, feature, action))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
