package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/relaykit/relay/internal/api"
	"github.com/relaykit/relay/internal/api/middleware"
	"github.com/relaykit/relay/internal/auth"
	"github.com/relaykit/relay/internal/config"
	"github.com/relaykit/relay/internal/handlers"
	"github.com/relaykit/relay/internal/relay"
	"github.com/relaykit/relay/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the durable store: Postgres if configured, otherwise SQLite.
	var data store.DataStore
	switch {
	case cfg.DatabaseURL != "":
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pg.Close()
		logger.Info().Msg("connected to PostgreSQL")
		data = pg
	case cfg.SQLitePath != "":
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sq.Close()
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite database")
		data = sq
	default:
		sq, err := store.NewSQLiteStore(ctx, "relay.db")
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sq.Close()
		logger.Warn().Msg("no DATABASE_URL or SQLITE_PATH set, using ./relay.db")
		data = sq
	}

	// Initialize the message log: Redis if configured, otherwise in-memory.
	// The in-memory log loses history on restart but keeps the relay usable.
	var msgLog store.MessageLog
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		rl, err := store.NewRedisLog(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rl.Close()
		logger.Info().Msg("connected to Redis")
		msgLog = rl
		redisClient = rl.Client()
	} else {
		logger.Warn().Msg("no REDIS_URL set, message history is in-memory only")
		msgLog = store.NewMemoryLog()
	}

	// Relay core
	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)
	presence := relay.NewPresenceTable(cfg.MultiRoom)
	caster := relay.NewBroadcaster(presence, logger)
	ctrl := relay.NewController(presence, caster, msgLog, data, logger, relay.ControllerConfig{
		HistoryLimit:   cfg.HistoryLimit,
		MaxMessageSize: int(cfg.MaxMessageSize),
	})

	// HTTP surface
	h := handlers.NewHandler(data, msgLog, tokens, presence)
	h.HistoryLimit = cfg.HistoryLimit
	ws := handlers.NewWSHandler(ctrl, tokens, logger, relay.ClientConfig{
		MaxFrameSize:  cfg.MaxMessageSize + 1024,
		MessageBurst:  cfg.MessageBurst,
		MessageRefill: cfg.MessageRefill,
	}, cfg.AllowedOrigins)

	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Tokens:      tokens,
		RedisClient: redisClient,
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: !cfg.IsDevelopment(),
		},
	}, h, ws)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting relay server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Stop accepting new connections, then drain the relay.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	if err := ctrl.Shutdown(10 * time.Second); err != nil {
		logger.Warn().Err(err).Msg("relay connections did not drain cleanly")
	}

	logger.Info().Msg("server stopped")
}
