package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"connectez-backend/internal/handlers"
	"connectez-backend/internal/middleware"
	"connectez-backend/internal/notifier"
)

func New(
	jwtAuth *middleware.JWTAuth,
	apiKeyAuth *middleware.APIKeyAuth,
	authHandler *handlers.AuthHandler,
	trackingHandler *handlers.TrackingHandler,
	dashboardHandler *handlers.DashboardHandler,
	extensionHandler *handlers.ExtensionHandler,
	adminHandler *handlers.AdminHandler,
	hub *notifier.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		// ──── Tracking Routes (extension-facing, API key) ────
		r.Route("/track", func(r chi.Router) {
			// The browser opens the uninstall URL directly, so it cannot
			// send the API key header.
			r.Get("/uninstall", trackingHandler.Uninstall)

			r.Group(func(r chi.Router) {
				r.Use(apiKeyAuth.Middleware)
				r.Post("/install", trackingHandler.Install)
				r.Post("/heartbeat", trackingHandler.Heartbeat)
				r.Post("/opt-in", trackingHandler.OptIn)
			})
		})

		// ──── Dashboard Routes ────
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/stats", dashboardHandler.Stats)
			r.Get("/details", dashboardHandler.Details)
			r.Get("/installations/{installID}", dashboardHandler.InstallationDetail)
		})

		// ──── Extension Routes ────
		r.Route("/extensions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", extensionHandler.Create)
			r.Get("/", extensionHandler.List)
			r.Delete("/{extensionID}", extensionHandler.Delete)
			r.Get("/{extensionID}/stats", extensionHandler.Stats)
		})

		// ──── Admin Routes ────
		r.Route("/admin", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.AdminOnly)
			r.Get("/users", adminHandler.Users)
			r.Get("/installations", adminHandler.Installations)
			r.Get("/history/{referralCode}", adminHandler.HistoryByReferral)
			r.Get("/history/install/{installID}", adminHandler.HistoryByInstall)
		})

		// ──── WebSocket ────
		r.Get("/ws", hub.HandleWebSocket)
	})

	return r
}
