package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/handlers"
	"github.com/mfontaine/aegis/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	totpHandler *handlers.TOTPHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	accounts auth.AccountFetcher,
	rateLimitConfig middleware.RateLimitConfig,
) {
	// Public credential endpoints, rate limited per client IP
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/verify-otp", authHandler.VerifyOTP)
	})

	// Authenticated endpoints
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Get("/auth/me", authHandler.Me)

		r.Post("/auth/totp/enroll", totpHandler.Enroll)
		r.Post("/auth/totp/activate", totpHandler.Activate)
		r.Delete("/auth/totp", totpHandler.Disable)

		// Admin review surface
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(accounts, "admin"))

			r.Get("/admin/attempts", adminHandler.ListAttempts)
			r.Get("/admin/attempts/{id}", adminHandler.GetAttempt)
			r.Get("/admin/stats", adminHandler.Stats)
			r.Get("/admin/locations", adminHandler.Locations)
			r.Get("/admin/accounts", adminHandler.GetAccountDetail)
			r.Get("/admin/events", adminHandler.ListEvents)
			r.Get("/admin/events/{id}", adminHandler.GetEvent)
			r.Post("/admin/events/{id}/resolve", adminHandler.ResolveEvent)
			r.Post("/admin/accounts/unlock", adminHandler.UnlockAccount)
		})
	})
}
