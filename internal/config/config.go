package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// Fanout tuning.
	NumWorkers      int
	DeliveryTimeout time.Duration
	DefaultRadiusKm float64

	// Push message TTL handed to the push service, in seconds.
	PushTTLSeconds int

	// Per-endpoint delivery rate limit. Zero disables limiting.
	RateLimit       int
	RateLimitWindow time.Duration

	// How long a sent event id blocks a duplicate send.
	SendDedupTTL time.Duration

	// Bearer-token verification secret.
	JWTSecret string

	// VAPID signing identity. Both keys empty means push sending runs
	// degraded (disabled) rather than failing startup.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	// DevMode generates a throwaway VAPID key pair at startup when none
	// is configured, instead of running degraded.
	DevMode bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		NumWorkers:      getEnvInt("NUM_WORKERS", 20),
		DeliveryTimeout: time.Duration(getEnvInt("DELIVERY_TIMEOUT_SECONDS", 10)) * time.Second,
		DefaultRadiusKm: getEnvFloat("DEFAULT_RADIUS_KM", 10),
		PushTTLSeconds:  getEnvInt("PUSH_TTL_SECONDS", 60),
		RateLimit:       getEnvInt("RATE_LIMIT_PER_ENDPOINT", 30),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		SendDedupTTL:    time.Duration(getEnvInt("SEND_DEDUP_TTL_SECONDS", 120)) * time.Second,
		JWTSecret:       getEnv("JWT_SECRET", ""),
		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber: getEnv("VAPID_SUBSCRIBER", "mailto:ops@gamewake.app"),
		DevMode:         getEnv("DEV_MODE", "") == "true",
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}
