package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/relaykit/relay/internal/api/middleware"
	"github.com/relaykit/relay/internal/auth"
	"github.com/relaykit/relay/internal/handlers"
)

// RouterConfig carries the pieces the router needs beyond the handlers
// themselves.
type RouterConfig struct {
	Logger      zerolog.Logger
	Tokens      *auth.TokenManager
	RedisClient *redis.Client // nil disables rate limiting
	RateLimit   middleware.RateLimiterConfig
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg RouterConfig, h *handlers.Handler, ws *handlers.WSHandler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(cfg.RedisClient, cfg.Logger, cfg.RateLimit)
	r.Use(limiter.Middleware)

	// CORS for the HTTP surface; WebSocket origins are enforced separately
	// during the upgrade handshake.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authmw := middleware.NewAuthMiddleware(cfg.Tokens)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/users/{id}", h.GetUser)
	r.Get("/rooms", h.ListRooms)
	r.Get("/rooms/{id}/messages", h.GetRoomMessages)

	// WebSocket endpoint authenticates the token itself during upgrade.
	r.Get("/ws", ws.Serve)

	// Authenticated routes (require bearer token)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Post("/rooms", h.CreateRoom)
	})

	return r
}
