// Package config loads CLI configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the CLI needs to reach the service.
type Config struct {
	Endpoint string // Quanta API base URL
	Token    string // API token

	Bucket      string // artifact bucket
	S3Region    string
	S3Endpoint  string // optional, for S3-compatible stores
	S3AccessKey string
	S3SecretKey string

	DataDir      string // local data (history database)
	LogLevel     string
	PollSeconds  int
	MaxTimeLimit int // minutes; 0 = ask the service
}

// Load reads configuration from the environment, loading .env first when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("QUANTA_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".quanta")
	}

	cfg := &Config{
		Endpoint:     getEnv("QUANTA_ENDPOINT", ""),
		Token:        getEnv("QUANTA_TOKEN", ""),
		Bucket:       getEnv("QUANTA_BUCKET", ""),
		S3Region:     getEnv("QUANTA_S3_REGION", "auto"),
		S3Endpoint:   getEnv("QUANTA_S3_ENDPOINT", ""),
		S3AccessKey:  getEnv("QUANTA_S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("QUANTA_S3_SECRET_KEY", ""),
		DataDir:      dataDir,
		LogLevel:     getEnv("QUANTA_LOG_LEVEL", "info"),
		PollSeconds:  getEnvInt("QUANTA_POLL_SECONDS", 1),
		MaxTimeLimit: getEnvInt("QUANTA_MAX_TIMELIMIT", 0),
	}

	return cfg, nil
}

// getEnv retrieves an environment variable, returning fallback when unset
// or empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
