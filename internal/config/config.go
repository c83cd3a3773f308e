package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds server + prober + refresh settings.
// Load from env; call LoadEnvFile(".env") before Load() to use a .env file.
type Config struct {
	// HTTP API
	ListenAddr string // e.g. :8080

	// Store
	DBPath string // SQLite database file, e.g. /var/lib/streamsentry/playlists.db

	// Refresh orchestrator
	RefreshInterval    time.Duration // default 1h
	RefreshTimeout     time.Duration // per-playlist fetch timeout, default 30s
	RefreshConcurrency int           // parallel playlist fetches per batch, default 4
	RefreshRatePerSec  float64       // upstream request pacing across the batch, default 2/s

	// Probers
	ProbeTimeout     time.Duration // lightweight probe, default 10s
	DeepProbeTimeout time.Duration // hard cap around the media inspector, default 15s
	FFprobePath      string        // path to ffprobe binary (default: "ffprobe")

	// Account API
	AccountTimeout time.Duration // default 10s

	// Outbound identification
	UserAgent string
}

// Load reads config from environment with defaults suitable for a
// single-instance deployment.
func Load() *Config {
	c := &Config{
		ListenAddr:         getEnv("STREAMSENTRY_LISTEN", ":8080"),
		DBPath:             getEnv("STREAMSENTRY_DB", "./playlists.db"),
		RefreshInterval:    getEnvDuration("STREAMSENTRY_REFRESH_INTERVAL", time.Hour),
		RefreshTimeout:     getEnvDuration("STREAMSENTRY_REFRESH_TIMEOUT", 30*time.Second),
		RefreshConcurrency: getEnvInt("STREAMSENTRY_REFRESH_CONCURRENCY", 4),
		RefreshRatePerSec:  getEnvFloat("STREAMSENTRY_REFRESH_RATE", 2),
		ProbeTimeout:       getEnvDuration("STREAMSENTRY_PROBE_TIMEOUT", 10*time.Second),
		DeepProbeTimeout:   getEnvDuration("STREAMSENTRY_DEEP_PROBE_TIMEOUT", 15*time.Second),
		FFprobePath:        getEnv("STREAMSENTRY_FFPROBE", "ffprobe"),
		AccountTimeout:     getEnvDuration("STREAMSENTRY_ACCOUNT_TIMEOUT", 10*time.Second),
		UserAgent:          getEnv("STREAMSENTRY_USER_AGENT", "StreamSentry/1.0"),
	}
	if c.RefreshConcurrency <= 0 {
		c.RefreshConcurrency = 4
	}
	if c.RefreshRatePerSec <= 0 {
		c.RefreshRatePerSec = 2
	}
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
