package handlers

import (
	"net/http"
	"time"

	"massa-backend/internal/middleware"
	"massa-backend/internal/prefs"
	"massa-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the services and settings behind the HTTP API
type RouterConfig struct {
	Auth     *services.AuthService
	Sessions *services.SessionManager
	Hub      *services.WSHub
	// Media is nil when uploads are disabled
	Media *services.MediaService
	// Limiter guards the public auth routes; nil disables it
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	Preferences    prefs.Preferences
	HandleCooldown time.Duration
}

// NewRouter builds the /api/v1 and /ws routes
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth, cfg.Sessions)
	postHandler := NewPostHandler(cfg.Sessions)
	relationHandler := NewRelationHandler(cfg.Sessions)
	profileHandler := NewProfileHandler(cfg.Sessions)
	mediaHandler := NewMediaHandler(cfg.Media)
	wsHandler := NewWebSocketHandler(cfg.Hub, cfg.Auth, cfg.Sessions)

	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(withDefaultLanguage(cfg.Preferences.Language))

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Limit)
			}
			r.Post("/auth/signup", authHandler.SignUp)
			r.Post("/auth/signin", authHandler.SignIn)
			r.Post("/auth/password/reset", authHandler.RequestReset)
			r.Post("/auth/password/confirm", authHandler.ConfirmReset)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.Auth))
			r.Get("/posts", postHandler.List)
			r.Get("/posts/binder", postHandler.Binder)
			r.Get("/posts/{id}", postHandler.Get)
			r.Get("/users/{handle}", profileHandler.Get)
		})
		r.Get("/config", ConfigHandler(
			cfg.Preferences,
			int64(cfg.HandleCooldown.Seconds()),
			cfg.Media != nil,
		))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.Auth))
			r.Post("/auth/signout", authHandler.SignOut)
			r.Get("/session", authHandler.Session)
			r.Put("/profile", profileHandler.Update)
			r.Post("/posts", postHandler.Create)
			r.Put("/posts/{id}", postHandler.Update)
			r.Delete("/posts/{id}", postHandler.Delete)
			r.Post("/posts/{id}/like", postHandler.Like)
			r.Post("/posts/{id}/replies", postHandler.Reply)
			r.Post("/relations/{kind}/{target}/toggle", relationHandler.Toggle)
			r.Get("/connections", relationHandler.Connections)
			r.Get("/users/{handle}/posts", profileHandler.Posts)
			r.Post("/media/upload", mediaHandler.Upload)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}
