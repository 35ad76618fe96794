package config

import (
	"os"
	"time"
)

type Config struct {
	Addr       string
	RedisURL   string
	DataDir    string
	BackupsDir string
	CORSOrigin string

	MeiliURL       string
	MeiliMasterKey string

	// MinIO Configuration - blob storage for gallery images.
	// Empty endpoint means images are stored on the local filesystem.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// UndoWindow bounds how long a deleted gallery entry stays recoverable.
	UndoWindow time.Duration
}

func Load() Config {
	return Config{
		Addr:       getenv("PULSEBOARD_ADDR", "127.0.0.1:8686"),
		RedisURL:   getenv("REDIS_URL", "redis://localhost:6379/0"),
		DataDir:    getenv("PULSEBOARD_DATA_DIR", "./data"),
		BackupsDir: getenv("PULSEBOARD_BACKUPS_DIR", "./data/backups"),
		CORSOrigin: getenv("PULSEBOARD_CORS_ORIGIN", "*"),

		// Meilisearch - optional, local substring search used when absent
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "pulseboard-gallery"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "") == "true",

		UndoWindow: getduration("PULSEBOARD_UNDO_WINDOW", 5*time.Second),
	}
}

func getduration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
