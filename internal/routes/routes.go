package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/prendaria/backoffice/internal/auth"
	"github.com/prendaria/backoffice/internal/handlers"
	"github.com/prendaria/backoffice/internal/middleware"
)

// RegisterRoutes registers all application routes under /v1. Permission
// gates mirror the catalog: user and permission management both sit behind
// the usuarios module.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	permissionHandler *handlers.PermissionHandler,
	tokenManager *auth.TokenManager,
	revocationChecker auth.TokenRevocationChecker,
	users auth.UserFetcher,
	checker auth.PermissionChecker,
) {
	loginLimit := middleware.DefaultAuthRateLimit()
	apiLimit := middleware.DefaultAPIRateLimit()

	router.Route("/v1", func(r chi.Router) {
		// Public routes, limited per source IP.
		r.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/login", authHandler.Login)
		r.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/refresh-token", authHandler.RefreshToken)

		// Everything else requires a live access token.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokenManager, revocationChecker))
			r.Use(middleware.RateLimitByUser(apiLimit))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/auth/logout-all", authHandler.LogoutAll)
			r.Post("/auth/change-password", authHandler.ChangePassword)

			// Catalog browsing requires only the ver action.
			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(users, checker, "usuarios", "ver"))
				r.Get("/permisos", permissionHandler.ListCatalog)
				r.Get("/permisos/rol/{rol}", permissionHandler.RoleDefaults)
				r.Get("/usuarios", userHandler.List)
				r.Get("/usuarios/{id}", userHandler.Get)
				r.Get("/usuarios/{id}/permisos", permissionHandler.UserPermissions)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(users, checker, "usuarios", "crear"))
				r.Post("/usuarios", userHandler.Create)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(users, checker, "usuarios", "editar"))
				r.Put("/usuarios/{id}", userHandler.Update)
				r.Post("/usuarios/{id}/toggle-activo", userHandler.ToggleActive)
				r.Post("/usuarios/{id}/cambiar-password", userHandler.ResetPassword)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(users, checker, "usuarios", "eliminar"))
				r.Delete("/usuarios/{id}", userHandler.Delete)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(users, checker, "usuarios", "asignar_permisos"))
				r.Put("/usuarios/{id}/permisos", permissionHandler.SyncUserPermissions)
				r.Post("/usuarios/{id}/permisos/reset", permissionHandler.ResetUserPermissions)
			})
		})
	})
}
