package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything cmd/main.go needs to wire the server.
type Config struct {
	HTTPPort    int
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	// Challenge invitations stay acceptable for ChallengeTTL; ones left
	// unanswered past that are expired by a background sweeper running
	// at ChallengeSweepInterval.
	ChallengeTTL           time.Duration
	ChallengeSweepInterval time.Duration

	// S3-compatible object storage for avatars (Cloudflare R2).
	R2AccountID     string
	R2AccessKeyID   string
	R2SecretKey     string
	R2Bucket        string
	R2PublicBaseURL string
}

// Load reads the environment, after an optional .env file. A missing
// .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		R2AccountID:     os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:   os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretKey:     os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2Bucket:        os.Getenv("R2_BUCKET"),
		R2PublicBaseURL: os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	port, err := intEnv("HTTP_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.HTTPPort = port

	cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.ChallengeTTL, err = durationEnv("CHALLENGE_TTL", 72*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.ChallengeSweepInterval, err = durationEnv("CHALLENGE_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// AvatarStorageConfigured reports whether every R2 credential needed by
// the uploader is present.
func (c *Config) AvatarStorageConfigured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretKey != "" && c.R2Bucket != ""
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}
