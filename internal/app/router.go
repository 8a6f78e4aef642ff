package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/siakad-core/siakad-core/internal/auth"
	"github.com/siakad-core/siakad-core/internal/positions"
	"github.com/siakad-core/siakad-core/internal/rbac"
	"github.com/siakad-core/siakad-core/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	AuthMiddleware   auth.Middleware
	RBACHandler      *rbac.Handler
	UsersHandler     *users.Handler
	PositionsHandler *positions.Handler
}

// NewRouter constructs the chi.Router. Auth routes are public; everything
// else sits behind bearer-token authentication, with per-route permission
// guards mounted by the handlers themselves.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r, params.AuthMiddleware)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)
		r.Route("/rbac", params.RBACHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/positions", params.PositionsHandler.MountRoutes)
	})

	return r
}
