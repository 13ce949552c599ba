package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth for write endpoints
	WikiAPIKey string

	// Page store
	WikiRoot     string // directory to load from and save to; empty keeps pages in memory
	WikiRootName string

	// Virtual wiki resolution
	RemoteTimeout     time.Duration
	RemoteMaxRetries  int
	RemoteStatsWindow time.Duration

	// Upload limits
	MaxUploadBytes int64

	// Rendering
	RegraceDefault bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		WikiAPIKey: os.Getenv("WIKI_API_KEY"),

		WikiRoot:     os.Getenv("WIKI_ROOT"),
		WikiRootName: envOr("WIKI_ROOT_NAME", "RooT"),

		RemoteTimeout:     envDuration("REMOTE_TIMEOUT", 10*time.Second),
		RemoteMaxRetries:  envInt("REMOTE_MAX_RETRIES", 3),
		RemoteStatsWindow: envDuration("REMOTE_STATS_WINDOW", time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		RegraceDefault: envBool("REGRACE_DEFAULT", false),
	}

	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 10 * time.Second
	}
	if cfg.RemoteMaxRetries < 0 {
		cfg.RemoteMaxRetries = 3
	}
	if cfg.RemoteStatsWindow <= 0 {
		cfg.RemoteStatsWindow = time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}

	return cfg
}

func (c Config) Validate() error {
	if c.WikiAPIKey == "" {
		return fmt.Errorf("WIKI_API_KEY is required")
	}
	if c.WikiRootName == "" {
		return fmt.Errorf("WIKI_ROOT_NAME must not be empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
