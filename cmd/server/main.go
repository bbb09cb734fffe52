package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gamewake/gamewake/internal/api"
	"github.com/gamewake/gamewake/internal/auth"
	"github.com/gamewake/gamewake/internal/config"
	"github.com/gamewake/gamewake/internal/engine"
	"github.com/gamewake/gamewake/internal/feed"
	"github.com/gamewake/gamewake/internal/metrics"
	"github.com/gamewake/gamewake/internal/store"
	"github.com/gamewake/gamewake/internal/transport"
	"github.com/gamewake/gamewake/internal/vapid"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	keys := signingKeys(cfg, logger)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	hub := feed.NewHub(logger)
	go hub.Run()

	sender := transport.NewWebPush(keys, cfg.PushTTLSeconds)
	limiter := engine.NewRateLimiter(redisStore.Client(), cfg.RateLimit, cfg.RateLimitWindow, logger)
	guard := engine.NewIdempotencyGuard(redisStore.Client(), cfg.SendDedupTTL, logger)

	dispatcher := engine.NewDispatcher(
		pgStore,
		sender,
		engine.ClassifyWebPush,
		cfg.NumWorkers,
		cfg.DeliveryTimeout,
		logger,
		engine.WithLimiter(limiter),
		engine.WithFeed(hub),
		engine.WithMetrics(m),
	)

	pushHandler := api.NewPushHandler(pgStore, dispatcher, keys, guard, cfg.DefaultRadiusKm, logger)

	router := api.NewRouter(api.RouterDeps{
		Push:      pushHandler,
		Verifier:  auth.NewVerifier(cfg.JWTSecret),
		Hub:       hub,
		Registry:  registry,
		StaticDir: "web/static",
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// signingKeys builds the VAPID manager from config. Missing keys leave
// push sending disabled unless DEV_MODE generates a throwaway pair.
func signingKeys(cfg *config.Config, logger *slog.Logger) *vapid.Manager {
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		return vapid.NewStaticManager(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	}

	if cfg.DevMode {
		return vapid.NewManager(func() (string, string, string) {
			priv, pub, err := vapid.GenerateKeys()
			if err != nil {
				logger.Error("failed to generate dev VAPID keys", "error", err)
				return "", "", ""
			}
			logger.Info("generated throwaway VAPID key pair", "public_key", pub)
			return pub, priv, cfg.VAPIDSubscriber
		})
	}

	logger.Warn("no VAPID keys configured, push sending is disabled")
	return vapid.NewStaticManager("", "", "")
}
