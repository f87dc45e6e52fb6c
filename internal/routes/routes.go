package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/rcallister/taskgate/internal/auth"
	"github.com/rcallister/taskgate/internal/cache"
	"github.com/rcallister/taskgate/internal/config"
	"github.com/rcallister/taskgate/internal/handlers"
	"github.com/rcallister/taskgate/internal/middleware"
)

// RegisterRoutes registers all application routes. Each route class
// carries its own rate limiter; everything behind /admin and
// /superadmin additionally passes the role guards.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	oauthHandler *handlers.OAuthHandler,
	adminHandler *handlers.AdminHandler,
	superAdminHandler *handlers.SuperAdminHandler,
	tokenService *auth.TokenService,
	users auth.UserFetcher,
	userCache cache.UserCache,
	limits *config.RateLimitConfig,
	authCfg *config.AuthConfig,
) {
	authLimit := middleware.RateLimitConfig{RequestsPerWindow: limits.AuthPerWindow, Window: limits.AuthWindow}
	superAdminLimit := middleware.RateLimitConfig{RequestsPerWindow: limits.SuperAdminPerWindow, Window: limits.SuperAdminWindow}
	resetLimit := middleware.RateLimitConfig{RequestsPerWindow: limits.ResetPerWindow, Window: limits.ResetWindow}
	apiLimit := middleware.RateLimitConfig{RequestsPerWindow: limits.APIPerWindow, Window: limits.APIWindow}

	// Rate limiting runs first in every class, then sanitization, then
	// the structural token screen. The sanitizer skips /auth/google
	// paths itself.
	sanitize := middleware.SanitizeInput(middleware.DefaultSanitizeConfig())
	tokenGuard := middleware.JWTStructureGuard(middleware.JWTGuardConfig{MaxTokenAge: authCfg.MaxSessionTokenAge})

	// Public auth surface
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(authLimit))
		r.Use(sanitize)

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/admin/register", authHandler.RegisterAdmin)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/admin/login", authHandler.AdminLogin)

		r.Get("/auth/google", oauthHandler.GoogleLogin)
		r.Get("/auth/google/callback", oauthHandler.GoogleCallback)
		r.Post("/auth/select-role", oauthHandler.SelectRole)
		r.Post("/auth/complete-account", oauthHandler.CompleteAccount)
	})

	// Password recovery gets the tightest budget
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(resetLimit))
		r.Use(sanitize)

		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
	})

	// Authenticated surface
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(apiLimit))
		r.Use(sanitize)
		r.Use(tokenGuard)
		r.Use(auth.SessionMiddleware(tokenService, users, userCache))

		r.Get("/auth/profile", authHandler.Profile)
		r.Post("/auth/change-password", authHandler.ChangePassword)
		r.Get("/users/directory", authHandler.Directory)

		// Tenant admin routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/admin/pending-users", adminHandler.PendingUsers)
			r.Post("/admin/user-action", adminHandler.UserAction)
		})
	})

	// Superadmin routes get their own rate limit class
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(superAdminLimit))
		r.Use(sanitize)
		r.Use(tokenGuard)
		r.Use(auth.SessionMiddleware(tokenService, users, userCache))
		r.Use(auth.RequireSuperAdmin)

		r.Get("/superadmin/pending-admins", superAdminHandler.PendingAdmins)
		r.Post("/superadmin/admin-action", superAdminHandler.AdminAction)
		r.Post("/superadmin/create-company-admin", superAdminHandler.CreateAdmin)
		r.Delete("/superadmin/delete-company/{code}", superAdminHandler.DeleteCompany)
	})
}
