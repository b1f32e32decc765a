package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only BACKEND_BASE_URL is required.
type Config struct {
	// Local status server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Durable queue store (SQLite file on the device)
	DBPath string

	// Session token file maintained by the client's auth flow
	TokenPath string

	// Analysis backend
	BackendBaseURL string
	UploadTimeout  time.Duration

	// Connectivity probe
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	// Retry policy: upload attempts per item before the queue stops retrying it
	MaxAttempts int

	// Rate limiting: maximum uploads per second against the backend
	UploadsPerSecond int
}

func Load() (*Config, error) {
	backendURL := os.Getenv("BACKEND_BASE_URL")
	if backendURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8090"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DBPath:    getEnv("DB_PATH", "data/offline-queue.db"),
		TokenPath: getEnv("TOKEN_PATH", "data/session-token.json"),

		BackendBaseURL: backendURL,
		UploadTimeout:  getDuration("UPLOAD_TIMEOUT", 60*time.Second),

		ProbeInterval: getDuration("PROBE_INTERVAL", 10*time.Second),
		ProbeTimeout:  getDuration("PROBE_TIMEOUT", 3*time.Second),

		MaxAttempts:      getInt("MAX_ATTEMPTS", 3),
		UploadsPerSecond: getInt("UPLOADS_PER_SECOND", 2),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
