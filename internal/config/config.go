// Package config loads service configuration from the environment. A .env
// file is honored when present so local runs don't need exported variables.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string

	// Metadata store: "sqlite", "postgres" or "dynamodb".
	StoreType    string
	StoreOptions string // db path, connection string or table name

	// Blob store: "fs" or "s3".
	BlobType    string
	BlobOptions string // base dir or bucket name
	BlobBaseURL string // public URL prefix for fs blobs

	JWTSecret string

	RedisAddr   string
	SQSQueueURL string
	AWSRegion   string

	ScratchDir string

	// Upload limits.
	MaxUploadBytes int64
}

func Load() Config {
	// Best effort: absent .env just means plain env vars.
	_ = godotenv.Load()

	return Config{
		ListenAddr:     envOr("LISTEN_ADDR", "localhost:8080"),
		StoreType:      envOr("STORE_TYPE", "sqlite"),
		StoreOptions:   envOr("STORE_OPTIONS", "reelai.db"),
		BlobType:       envOr("BLOB_TYPE", "fs"),
		BlobOptions:    envOr("BLOB_OPTIONS", "./blobs"),
		BlobBaseURL:    envOr("BLOB_BASE_URL", "http://localhost:8080/content"),
		JWTSecret:      envOr("JWT_SECRET", "dev-secret-change-me"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		SQSQueueURL:    os.Getenv("SQS_QUEUE_URL"),
		AWSRegion:      envOr("AWS_REGION", "us-west-1"),
		ScratchDir:     envOr("SCRATCH_DIR", os.TempDir()),
		MaxUploadBytes: envOrInt64("MAX_UPLOAD_BYTES", 100<<20),
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envOrInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
