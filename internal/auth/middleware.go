package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/siakad-core/siakad-core/internal/platform/httpx"
	"github.com/siakad-core/siakad-core/internal/shared"
)

// Middleware validates bearer access tokens and attaches the resulting
// principal to the request context. A disabled account is rejected with 403
// even when its token is otherwise valid.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate guards a route group behind access-token validation.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		principal, err := m.Service.Validate(r.Context(), token)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: missing bearer token", shared.ErrUnauthorized)
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("%w: malformed authorization header", shared.ErrUnauthorized)
	}
	return strings.TrimSpace(token), nil
}
