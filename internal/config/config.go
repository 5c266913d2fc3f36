// Package config loads the service configuration from the environment.
//
// A .env file in the working directory is loaded automatically; real
// environment variables take precedence.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
)

// StorageConfig holds the local directories the service reads and writes.
type StorageConfig struct {
	UploadDir    string
	ProcessedDir string
	SealsDir     string
	SealsFile    string
	IndexDir     string
}

// MinIOConfig holds the optional object storage archive settings.
// The archive is disabled when Endpoint is empty.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Config struct {
	Port        int
	LogLevel    string
	LogFormat   string
	MaxUploadMB int64
	Storage     StorageConfig
	MinIO       MinIOConfig
}

func Load() *Config {
	dataDir := getEnv("DATA_DIR", "data")
	return &Config{
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		MaxUploadMB: int64(getEnvInt("MAX_UPLOAD_MB", 25)),
		Storage: StorageConfig{
			UploadDir:    getEnv("UPLOAD_DIR", filepath.Join(dataDir, "uploads")),
			ProcessedDir: getEnv("PROCESSED_DIR", filepath.Join(dataDir, "processed")),
			SealsDir:     getEnv("SEALS_DIR", filepath.Join(dataDir, "seals")),
			SealsFile:    getEnv("SEALS_FILE", filepath.Join(dataDir, "seals.json")),
			IndexDir:     getEnv("INDEX_DIR", filepath.Join(dataDir, "index")),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "contracts"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
