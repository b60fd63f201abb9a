package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/itchan-dev/usuarios/internal/middleware"
	"github.com/itchan-dev/usuarios/internal/setup"
)

// New creates a chi router with all the routes.
func New(deps *setup.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(deps.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{deps.Config.Public.Cors.Origin},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(middleware.APIHeaders(deps.Config.HSTSMaxAge()))

	h := deps.Handler

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Post("/registro", h.Register)
	r.Get("/usuarios", h.Users)

	// Credential endpoints, limited per client IP when configured
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(middleware.RateLimit(deps.RateLimiter, middleware.GetIP))
		}
		r.Post("/login", h.Login)
		r.Put("/recuperar", h.Recover)
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMiddleware.NeedAuth())
		r.Get("/perfil", h.Me)
	})

	return r
}
